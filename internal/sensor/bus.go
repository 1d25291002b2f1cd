package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// OpenBus initializes the host drivers and opens the named I2C bus.
// An empty name opens the first available bus.
func OpenBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	return bus, nil
}

// regVal is one entry of a register table
type regVal struct {
	reg uint16
	val uint8
}

// registers addresses a sensor with 16-bit register numbers and 8-bit values
type registers struct {
	dev *i2c.Dev
}

func newRegisters(bus i2c.Bus, addr uint16) (*registers, error) {
	if bus == nil {
		return nil, ErrNoBus
	}
	return &registers{dev: &i2c.Dev{Bus: bus, Addr: addr}}, nil
}

func (r *registers) read(reg uint16) (uint8, error) {
	buf := make([]byte, 1)
	if err := r.dev.Tx([]byte{byte(reg >> 8), byte(reg)}, buf); err != nil {
		return 0, fmt.Errorf("read 0x%04x: %w", reg, err)
	}
	return buf[0], nil
}

func (r *registers) write(reg uint16, val uint8) error {
	if err := r.dev.Tx([]byte{byte(reg >> 8), byte(reg), val}, nil); err != nil {
		return fmt.Errorf("write 0x%04x: %w", reg, err)
	}
	return nil
}

func (r *registers) writeTable(table []regVal) error {
	for _, rv := range table {
		if err := r.write(rv.reg, rv.val); err != nil {
			return err
		}
	}
	return nil
}

// readID16 reads a big-endian 16-bit ID split across two registers
func (r *registers) readID16(hi, lo uint16) (uint16, error) {
	h, err := r.read(hi)
	if err != nil {
		return 0, err
	}
	l, err := r.read(lo)
	if err != nil {
		return 0, err
	}
	return uint16(h)<<8 | uint16(l), nil
}

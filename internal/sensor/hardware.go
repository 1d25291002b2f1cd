package sensor

import (
	"sync"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// model describes a register-programmed sensor
type model struct {
	name     string
	pid      uint16
	addr     uint16
	idHi     uint16
	idLo     uint16
	width    int
	height   int
	lanes    int
	bitrate  int
	bayer    BayerPattern
	init     []regVal
	streamOn []regVal
	streamOf []regVal

	// brightness returns the register writes for a validated level
	brightness func(level int) []regVal
}

// hwSensor drives a sensor over its register bus
type hwSensor struct {
	m    model
	regs *registers

	mu         sync.Mutex
	brightness int
}

func newHardware(m model, opts Options) (*hwSensor, error) {
	addr := m.addr
	if opts.Addr != 0 {
		addr = opts.Addr
	}
	regs, err := newRegisters(opts.Bus, addr)
	if err != nil {
		return nil, err
	}
	return &hwSensor{m: m, regs: regs, brightness: DefaultBrightness}, nil
}

func (s *hwSensor) Name() string               { return s.m.name }
func (s *hwSensor) PID() uint16                { return s.m.pid }
func (s *hwSensor) Width() int                 { return s.m.width }
func (s *hwSensor) Height() int                { return s.m.height }
func (s *hwSensor) LaneCount() int             { return s.m.lanes }
func (s *hwSensor) BayerPattern() BayerPattern { return s.m.bayer }
func (s *hwSensor) LaneBitrateMbps() int       { return s.m.bitrate }

func (s *hwSensor) ReadID() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs.readID16(s.m.idHi, s.m.idLo)
}

func (s *hwSensor) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.regs.writeTable(s.m.init); err != nil {
		return err
	}
	logger.WithComponent("sensor").Debug().
		Str("sensor", s.m.name).
		Int("registers", len(s.m.init)).
		Msg("Mode registers written")
	return s.regs.writeTable(s.m.brightness(s.brightness))
}

func (s *hwSensor) StartStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs.writeTable(s.m.streamOn)
}

func (s *hwSensor) StopStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs.writeTable(s.m.streamOf)
}

func (s *hwSensor) SetBrightness(level int) error {
	if err := checkBrightness(level); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.regs.writeTable(s.m.brightness(level)); err != nil {
		return err
	}
	s.brightness = level
	return nil
}

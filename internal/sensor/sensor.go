// Package sensor defines the capability surface of an image sensor driver and
// the closed set of drivers this build knows about.
package sensor

import (
	"errors"
	"fmt"
	"image/color"
	"sort"

	"periph.io/x/conn/v3/i2c"
)

// BayerPattern is the color-filter order of a raw sensor
type BayerPattern uint8

const (
	BayerRGGB BayerPattern = iota
	BayerGRBG
	BayerGBRG
	BayerBGGR
)

func (b BayerPattern) String() string {
	switch b {
	case BayerRGGB:
		return "RGGB"
	case BayerGRBG:
		return "GRBG"
	case BayerGBRG:
		return "GBRG"
	case BayerBGGR:
		return "BGGR"
	default:
		return fmt.Sprintf("Bayer(%d)", uint8(b))
	}
}

// Brightness range accepted by SetBrightness
const (
	MinBrightness     = 0
	MaxBrightness     = 10
	DefaultBrightness = 5
)

var (
	ErrUnknownSensor     = errors.New("unknown sensor")
	ErrInvalidBrightness = errors.New("brightness out of range")
	ErrNoBus             = errors.New("sensor requires an i2c bus")
)

// Driver is the register-level driver for one sensor model
type Driver interface {
	// Name returns the sensor model name
	Name() string

	// PID returns the product ID the sensor is expected to report
	PID() uint16

	// Geometry and link parameters
	Width() int
	Height() int
	LaneCount() int
	BayerPattern() BayerPattern
	LaneBitrateMbps() int

	// ReadID reads the product ID from the sensor
	ReadID() (uint16, error)

	// Init programs the sensor's mode registers
	Init() error

	// StartStream and StopStream toggle sensor output
	StartStream() error
	StopStream() error

	// SetBrightness forwards a 0-10 brightness level to the sensor's
	// exposure controls
	SetBrightness(level int) error
}

// Info is a serializable snapshot of a driver's fixed parameters
type Info struct {
	Name            string `json:"name" yaml:"name"`
	PID             uint16 `json:"pid" yaml:"pid"`
	Width           int    `json:"width" yaml:"width"`
	Height          int    `json:"height" yaml:"height"`
	LaneCount       int    `json:"lane_count" yaml:"lane_count"`
	BayerPattern    string `json:"bayer_pattern" yaml:"bayer_pattern"`
	LaneBitrateMbps int    `json:"lane_bitrate_mbps" yaml:"lane_bitrate_mbps"`
}

// Describe collects a driver's fixed parameters
func Describe(d Driver) Info {
	return Info{
		Name:            d.Name(),
		PID:             d.PID(),
		Width:           d.Width(),
		Height:          d.Height(),
		LaneCount:       d.LaneCount(),
		BayerPattern:    d.BayerPattern().String(),
		LaneBitrateMbps: d.LaneBitrateMbps(),
	}
}

// Options configures driver construction
type Options struct {
	// Bus is the register bus for hardware sensors
	Bus i2c.Bus
	// Addr overrides the sensor's default bus address when non-zero
	Addr uint16

	// Width and Height override the test pattern geometry
	Width  int
	Height int
	// Pattern selects the test pattern ("bars" or "solid")
	Pattern string
	// Color is the solid pattern color
	Color color.RGBA
}

type factory func(Options) (Driver, error)

var drivers = map[string]factory{
	"sc202cs":     newSC202CS,
	"ov5647":      newOV5647,
	"testpattern": func(o Options) (Driver, error) { return NewTestPattern(o), nil },
}

// New constructs the named driver
func New(name string, opts Options) (Driver, error) {
	f, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSensor, name)
	}
	return f(opts)
}

// Names returns the supported sensor names in sorted order
func Names() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkBrightness(level int) error {
	if level < MinBrightness || level > MaxBrightness {
		return fmt.Errorf("%w: %d (expected %d-%d)", ErrInvalidBrightness, level, MinBrightness, MaxBrightness)
	}
	return nil
}

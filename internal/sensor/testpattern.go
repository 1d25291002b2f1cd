package sensor

import (
	"image/color"
	"sync/atomic"

	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

// TestPatternPID is the ID reported by the synthetic sensor
const TestPatternPID uint16 = 0x7E57

var colorBars = []color.RGBA{
	{255, 255, 255, 255},
	{255, 255, 0, 255},
	{0, 255, 255, 255},
	{0, 255, 0, 255},
	{255, 0, 255, 255},
	{255, 0, 0, 255},
	{0, 0, 255, 255},
	{0, 0, 0, 255},
}

// TestPattern is a synthetic sensor that renders RGB565 frames itself. It
// is paired with the simulated capture controller, which calls Fill for every
// transfer.
type TestPattern struct {
	width   int
	height  int
	pattern string
	color   color.RGBA

	brightness atomic.Int32
	streaming  atomic.Bool
}

// NewTestPattern creates a synthetic sensor, defaulting to 640x480 color bars
func NewTestPattern(opts Options) *TestPattern {
	tp := &TestPattern{
		width:   opts.Width,
		height:  opts.Height,
		pattern: opts.Pattern,
		color:   opts.Color,
	}
	if tp.width <= 0 {
		tp.width = 640
	}
	if tp.height <= 0 {
		tp.height = 480
	}
	if tp.pattern == "" {
		tp.pattern = "bars"
	}
	tp.brightness.Store(DefaultBrightness)
	return tp
}

func (s *TestPattern) Name() string               { return "testpattern" }
func (s *TestPattern) PID() uint16                { return TestPatternPID }
func (s *TestPattern) Width() int                 { return s.width }
func (s *TestPattern) Height() int                { return s.height }
func (s *TestPattern) LaneCount() int             { return 1 }
func (s *TestPattern) BayerPattern() BayerPattern { return BayerRGGB }
func (s *TestPattern) LaneBitrateMbps() int       { return 0 }

func (s *TestPattern) ReadID() (uint16, error) { return TestPatternPID, nil }
func (s *TestPattern) Init() error             { return nil }

func (s *TestPattern) StartStream() error {
	s.streaming.Store(true)
	return nil
}

func (s *TestPattern) StopStream() error {
	s.streaming.Store(false)
	return nil
}

func (s *TestPattern) SetBrightness(level int) error {
	if err := checkBrightness(level); err != nil {
		return err
	}
	s.brightness.Store(int32(level))
	return nil
}

// Brightness returns the current brightness level
func (s *TestPattern) Brightness() int {
	return int(s.brightness.Load())
}

// Fill renders frame seq into dst as RGB565. Bars scroll by four pixels per
// frame so consecutive frames differ.
func (s *TestPattern) Fill(dst []byte, seq uint64) int {
	rowBytes := s.width * 2
	size := rowBytes * s.height
	if len(dst) < size {
		return 0
	}

	offset := int(s.brightness.Load()-DefaultBrightness) * 16

	row := dst[:rowBytes]
	for x := 0; x < s.width; x++ {
		c := s.color
		if s.pattern != "solid" {
			shifted := (x + int(seq%uint64(s.width))*4) % s.width
			c = colorBars[shifted*len(colorBars)/s.width]
		}
		p := pixfmt.Pack565(adjust(c.R, offset), adjust(c.G, offset), adjust(c.B, offset))
		row[x*2] = byte(p)
		row[x*2+1] = byte(p >> 8)
	}
	for y := 1; y < s.height; y++ {
		copy(dst[y*rowBytes:(y+1)*rowBytes], row)
	}
	return size
}

func adjust(v uint8, offset int) uint8 {
	n := int(v) + offset
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

package sensor

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

func TestNewUnknownSensor(t *testing.T) {
	_, err := New("imx9000", Options{})
	assert.ErrorIs(t, err, ErrUnknownSensor)
}

func TestHardwareSensorRequiresBus(t *testing.T) {
	_, err := New("sc202cs", Options{})
	assert.ErrorIs(t, err, ErrNoBus)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"ov5647", "sc202cs", "testpattern"}, Names())
}

func TestSC202CSReadID(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x36, W: []byte{0x31, 0x07}, R: []byte{0xEB}},
			{Addr: 0x36, W: []byte{0x31, 0x08}, R: []byte{0x52}},
		},
		DontPanic: true,
	}
	d, err := New("sc202cs", Options{Bus: bus})
	require.NoError(t, err)

	id, err := d.ReadID()
	require.NoError(t, err)
	assert.Equal(t, d.PID(), id)
	assert.NoError(t, bus.Close())
}

func TestOV5647AddressOverride(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x10, W: []byte{0x30, 0x0A}, R: []byte{0x56}},
			{Addr: 0x10, W: []byte{0x30, 0x0B}, R: []byte{0x47}},
		},
		DontPanic: true,
	}
	d, err := New("ov5647", Options{Bus: bus, Addr: 0x10})
	require.NoError(t, err)

	id, err := d.ReadID()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5647), id)
	assert.Equal(t, 800, d.Width())
	assert.Equal(t, 2, d.LaneCount())
}

func TestSetBrightnessWritesExposure(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x36, W: []byte{0x3e, 0x00, 0x00}},
			{Addr: 0x36, W: []byte{0x3e, 0x01, 0x38}},
			{Addr: 0x36, W: []byte{0x3e, 0x02, 0x00}},
		},
		DontPanic: true,
	}
	d, err := New("sc202cs", Options{Bus: bus})
	require.NoError(t, err)

	require.NoError(t, d.SetBrightness(5))
	assert.NoError(t, bus.Close())
}

func TestSetBrightnessRejectsOutOfRange(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	d, err := New("sc202cs", Options{Bus: bus})
	require.NoError(t, err)

	assert.ErrorIs(t, d.SetBrightness(11), ErrInvalidBrightness)
	assert.ErrorIs(t, d.SetBrightness(-1), ErrInvalidBrightness)
}

func TestStreamToggle(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x36, W: []byte{0x01, 0x00, 0x01}},
			{Addr: 0x36, W: []byte{0x01, 0x00, 0x00}},
		},
		DontPanic: true,
	}
	d, err := New("sc202cs", Options{Bus: bus})
	require.NoError(t, err)

	require.NoError(t, d.StartStream())
	require.NoError(t, d.StopStream())
	assert.NoError(t, bus.Close())
}

func TestTestPatternSolidFill(t *testing.T) {
	tp := NewTestPattern(Options{Width: 4, Height: 2, Pattern: "solid", Color: color.RGBA{255, 0, 0, 255}})
	buf := make([]byte, pixfmt.RGB565.FrameSize(4, 2))

	n := tp.Fill(buf, 0)
	require.Equal(t, len(buf), n)
	for i := 0; i < len(buf); i += 2 {
		assert.Equal(t, []byte{0x00, 0xF8}, buf[i:i+2])
	}
}

func TestTestPatternBrightnessShiftsColor(t *testing.T) {
	tp := NewTestPattern(Options{Width: 1, Height: 1, Pattern: "solid", Color: color.RGBA{128, 128, 128, 255}})
	buf := make([]byte, 2)

	require.NoError(t, tp.SetBrightness(MaxBrightness))
	tp.Fill(buf, 0)
	r, _, _ := pixfmt.Unpack565(uint16(buf[1])<<8 | uint16(buf[0]))
	assert.Greater(t, r, uint8(128))
	assert.Equal(t, MaxBrightness, tp.Brightness())
}

func TestTestPatternBarsScroll(t *testing.T) {
	tp := NewTestPattern(Options{Width: 64, Height: 1})
	a := make([]byte, 128)
	b := make([]byte, 128)

	tp.Fill(a, 0)
	tp.Fill(b, 1)
	assert.NotEqual(t, a, b)
	assert.Zero(t, tp.Fill(make([]byte, 10), 0), "short buffer is rejected")
}

func TestDescribe(t *testing.T) {
	info := Describe(NewTestPattern(Options{}))
	assert.Equal(t, "testpattern", info.Name)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, "RGGB", info.BayerPattern)
}

package display

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/CamStreamer/internal/capture"
	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

func solidFrame(width, height int, r, g, b uint8) []byte {
	buf := make([]byte, width*height*2)
	p := pixfmt.Pack565(r, g, b)
	for i := 0; i < len(buf); i += 2 {
		buf[i] = byte(p)
		buf[i+1] = byte(p >> 8)
	}
	return buf
}

var red = color.RGBA{255, 0, 0, 255}

func TestCanvasFullscreen(t *testing.T) {
	c := NewCanvas(CanvasOptions{Width: 64, Height: 48})
	require.NoError(t, c.Update(solidFrame(32, 24, 255, 0, 0), 32, 24, pixfmt.RGB565))

	img := c.Image()
	assert.Equal(t, red, img.RGBAAt(0, 0))
	assert.Equal(t, red, img.RGBAAt(32, 24))
	assert.Equal(t, red, img.RGBAAt(63, 47))
	assert.Equal(t, uint64(1), c.Updates())
	assert.Equal(t, Fullscreen, c.Mode())
}

func TestCanvasLetterboxes(t *testing.T) {
	c := NewCanvas(CanvasOptions{Width: 64, Height: 48})
	require.NoError(t, c.Update(solidFrame(32, 8, 255, 0, 0), 32, 8, pixfmt.RGB565))

	img := c.Image()
	assert.Equal(t, background, img.RGBAAt(0, 0))
	assert.Equal(t, red, img.RGBAAt(32, 24))
}

func TestCanvasMinimized(t *testing.T) {
	c := NewCanvas(CanvasOptions{Width: 64, Height: 48, Minimized: true})
	require.NoError(t, c.Update(solidFrame(32, 24, 255, 0, 0), 32, 24, pixfmt.RGB565))

	img := c.Image()
	assert.Equal(t, background, img.RGBAAt(0, 0))
	assert.Equal(t, borderColor, img.RGBAAt(5, 18))
	assert.Equal(t, red, img.RGBAAt(20, 30))

	c.SetMode(Fullscreen)
	assert.Equal(t, red, c.Image().RGBAAt(0, 0))
	assert.Equal(t, "fullscreen", c.Mode().String())
}

func TestCanvasLabel(t *testing.T) {
	c := NewCanvas(CanvasOptions{Width: 64, Height: 48})
	c.SetLabel("hi")

	img := c.Image()
	lit := false
	for y := 25; y < 48; y++ {
		for x := 0; x < 24; x++ {
			if img.RGBAAt(x, y).R > 200 {
				lit = true
			}
		}
	}
	assert.True(t, lit, "label text is drawn")

	c.SetLabel("")
	assert.Equal(t, background, c.Image().RGBAAt(6, 40))
}

func TestCanvasRejectsBadInput(t *testing.T) {
	c := NewCanvas(CanvasOptions{Width: 8, Height: 8})
	assert.Error(t, c.Update(make([]byte, 4), 4, 4, pixfmt.RGB565))
	assert.Error(t, c.Update(make([]byte, 48), 4, 4, pixfmt.RGB888))
	assert.NoError(t, c.Update(make([]byte, 64), 4, 4, pixfmt.RGBA))
}

func TestCanvasPNG(t *testing.T) {
	c := NewCanvas(CanvasOptions{Width: 16, Height: 16})
	require.NoError(t, c.Update(solidFrame(16, 16, 255, 0, 0), 16, 16, pixfmt.RGB565))

	data, err := c.PNG()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.Equal(t, []uint32{0xFFFF, 0, 0}, []uint32{r, g, b})
}

func TestPackZPixmap(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	img.SetRGBA(2, 0, color.RGBA{7, 8, 9, 255})

	data, err := packZPixmap(img, 4, 4, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 0, 0, 0, 0, 0, 9, 8, 7, 0}, data)

	data, err = packZPixmap(img, 3, 4, false)
	require.NoError(t, err)
	assert.Len(t, data, 12, "9 bytes padded to a 4 byte scanline")
	assert.Equal(t, []byte{3, 2, 1}, data[:3])

	_, err = packZPixmap(img, 2, 4, false)
	assert.Error(t, err)
}

type scriptedSource struct {
	results []error
}

func (s *scriptedSource) TryCapture() (*capture.Frame, error) {
	err := s.results[0]
	s.results = s.results[1:]
	if err != nil {
		return nil, err
	}
	return &capture.Frame{Data: solidFrame(4, 4, 0, 255, 0), Width: 4, Height: 4, Format: pixfmt.RGB565}, nil
}

type recordingSink struct {
	updates int
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Update(buf []byte, width, height int, format pixfmt.Format) error {
	s.updates++
	return s.err
}

func TestLoopCountsFramesAndDrops(t *testing.T) {
	src := &scriptedSource{results: []error{capture.ErrNotStreaming, capture.ErrNoFrame, nil, nil}}
	sink := &recordingSink{}
	l := NewLoop(src, sink, 0)

	for i := 0; i < 4; i++ {
		l.Tick()
	}

	assert.Equal(t, 2, sink.updates)
	assert.Equal(t, LoopStats{Frames: 2, Dropped: 1}, l.Stats())
}

func TestLoopSinkFailureCountsAsDrop(t *testing.T) {
	src := &scriptedSource{results: []error{nil}}
	sink := &recordingSink{err: errors.New("window gone")}
	l := NewLoop(src, sink, 0)

	l.Tick()
	assert.Equal(t, LoopStats{Frames: 0, Dropped: 1}, l.Stats())
}

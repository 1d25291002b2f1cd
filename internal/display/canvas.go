package display

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

// Mode selects how the camera frame is placed on the canvas
type Mode int

const (
	// Fullscreen scales the frame to fill the canvas, keeping aspect ratio
	Fullscreen Mode = iota
	// Minimized draws a bordered thumbnail in the top-right corner
	Minimized
)

func (m Mode) String() string {
	if m == Minimized {
		return "minimized"
	}
	return "fullscreen"
}

const (
	thumbMargin = 20
	thumbBorder = 2
	labelPad    = 5
	labelHeight = 13 // basicfont.Face7x13
)

var (
	background  = color.RGBA{0, 0, 0, 255}
	borderColor = color.RGBA{0x21, 0x96, 0xF3, 255}
	labelColor  = color.RGBA{255, 255, 255, 255}
	labelBg     = color.RGBA{0, 0, 0, 160}
)

// CanvasOptions configures a CanvasSink
type CanvasOptions struct {
	Width     int
	Height    int
	Minimized bool
}

// CanvasSink composes frames onto an in-memory RGBA canvas
type CanvasSink struct {
	mu      sync.RWMutex
	canvas  *image.RGBA
	frame   *image.RGBA
	mode    Mode
	label   string
	updates uint64
}

// NewCanvas creates a canvas sink, 1280x720 unless configured otherwise
func NewCanvas(opts CanvasOptions) *CanvasSink {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}

	c := &CanvasSink{
		canvas: image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}
	if opts.Minimized {
		c.mode = Minimized
	}
	draw.Draw(c.canvas, c.canvas.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	return c
}

func (c *CanvasSink) Name() string {
	return "canvas"
}

// Update converts the frame and composes it onto the canvas
func (c *CanvasSink) Update(buf []byte, width, height int, format pixfmt.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frame == nil || c.frame.Bounds().Dx() != width || c.frame.Bounds().Dy() != height {
		c.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	}

	switch format {
	case pixfmt.RGB565:
		if err := pixfmt.RGB565ToRGBA(c.frame, buf); err != nil {
			return err
		}
	case pixfmt.RGBA:
		if len(buf) < width*height*4 {
			return fmt.Errorf("frame too short: %d bytes for %dx%d", len(buf), width, height)
		}
		copy(c.frame.Pix, buf)
	default:
		return fmt.Errorf("unsupported frame format %s", format)
	}

	c.compose()
	c.updates++
	return nil
}

// compose redraws the canvas from the current frame. Callers hold mu.
func (c *CanvasSink) compose() {
	bounds := c.canvas.Bounds()
	draw.Draw(c.canvas, bounds, &image.Uniform{background}, image.Point{}, draw.Src)

	if c.frame != nil {
		dst := c.placement()
		if c.mode == Minimized {
			border := dst.Inset(-thumbBorder)
			draw.Draw(c.canvas, border, &image.Uniform{borderColor}, image.Point{}, draw.Src)
		}
		draw.ApproxBiLinear.Scale(c.canvas, dst, c.frame, c.frame.Bounds(), draw.Src, nil)
	}

	if c.label != "" {
		c.drawLabel()
	}
}

// placement returns where the frame lands on the canvas for the current mode
func (c *CanvasSink) placement() image.Rectangle {
	cw, ch := c.canvas.Bounds().Dx(), c.canvas.Bounds().Dy()
	fw, fh := c.frame.Bounds().Dx(), c.frame.Bounds().Dy()

	boxW, boxH := cw, ch
	if c.mode == Minimized {
		boxW, boxH = cw*3/5, ch*3/5
	}

	// fit inside the box while maintaining aspect ratio
	scale := float64(boxW) / float64(fw)
	if s := float64(boxH) / float64(fh); s < scale {
		scale = s
	}
	dw, dh := int(float64(fw)*scale), int(float64(fh)*scale)

	if c.mode == Minimized {
		x := cw - dw - thumbMargin
		return image.Rect(x, thumbMargin, x+dw, thumbMargin+dh)
	}
	x, y := (cw-dw)/2, (ch-dh)/2
	return image.Rect(x, y, x+dw, y+dh)
}

// drawLabel renders the status message in the bottom-left corner
func (c *CanvasSink) drawLabel() {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  c.canvas,
		Src:  image.NewUniform(labelColor),
		Face: face,
	}

	textWidth := d.MeasureString(c.label).Ceil()
	ch := c.canvas.Bounds().Dy()
	box := image.Rect(0, ch-labelHeight-labelPad*2, textWidth+labelPad*2, ch)
	draw.Draw(c.canvas, box, &image.Uniform{labelBg}, image.Point{}, draw.Over)

	d.Dot = fixed.P(box.Min.X+labelPad, box.Max.Y-labelPad-face.Descent)
	d.DrawString(c.label)
}

// SetMode switches between fullscreen and minimized placement
func (c *CanvasSink) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	c.compose()
}

// Mode returns the current placement mode
func (c *CanvasSink) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SetLabel sets the status message drawn over the canvas; empty hides it
func (c *CanvasSink) SetLabel(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = text
	c.compose()
}

// Image returns a copy of the canvas
func (c *CanvasSink) Image() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()

	img := image.NewRGBA(c.canvas.Bounds())
	copy(img.Pix, c.canvas.Pix)
	return img
}

// Updates returns the number of frames drawn
func (c *CanvasSink) Updates() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updates
}

// PNG encodes the canvas as PNG
func (c *CanvasSink) PNG() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.canvas); err != nil {
		return nil, fmt.Errorf("failed to encode canvas: %w", err)
	}
	return buf.Bytes(), nil
}

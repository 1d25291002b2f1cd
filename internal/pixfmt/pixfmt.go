// Package pixfmt converts between the sensor's packed 16-bit pixel encoding
// and the unpacked 24/32-bit encodings used by the encoder and display.
package pixfmt

import (
	"fmt"
	"image"
	"image/color"
)

// Format identifies a pixel encoding
type Format int

const (
	// RGB565 is 16 bits per pixel, little-endian, 5/6/5 bits R/G/B
	RGB565 Format = iota
	// RGB888 is 24 bits per pixel, one byte each for R, G, B
	RGB888
	// RGBA is 32 bits per pixel, image.RGBA layout
	RGBA
)

// BytesPerPixel returns the storage size of one pixel
func (f Format) BytesPerPixel() int {
	switch f {
	case RGB565:
		return 2
	case RGB888:
		return 3
	case RGBA:
		return 4
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case RGB565:
		return "RGB565"
	case RGB888:
		return "RGB888"
	case RGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FrameSize returns the number of bytes needed for a width x height frame
func (f Format) FrameSize(width, height int) int {
	return width * height * f.BytesPerPixel()
}

// Unpack565 expands one RGB565 pixel to 8 bits per channel.
// Expansion replicates the high bits into the low bits so 0 maps to 0 and
// the maximum component value maps to 255.
func Unpack565(pixel uint16) (r, g, b uint8) {
	r5 := uint8(pixel>>11) & 0x1F
	g6 := uint8(pixel>>5) & 0x3F
	b5 := uint8(pixel) & 0x1F

	r = r5<<3 | r5>>2
	g = g6<<2 | g6>>4
	b = b5<<3 | b5>>2
	return r, g, b
}

// Pack565 truncates 8-bit components to one RGB565 pixel
func Pack565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// RGB565ToRGB888 converts pixels RGB565 pixels from src into dst.
// dst must hold pixels*3 bytes and src pixels*2 bytes.
func RGB565ToRGB888(dst, src []byte, pixels int) error {
	if len(src) < pixels*2 {
		return fmt.Errorf("source too short: %d bytes for %d pixels", len(src), pixels)
	}
	if len(dst) < pixels*3 {
		return fmt.Errorf("destination too short: %d bytes for %d pixels", len(dst), pixels)
	}

	for i := 0; i < pixels; i++ {
		pixel := uint16(src[i*2+1])<<8 | uint16(src[i*2])
		r, g, b := Unpack565(pixel)
		dst[i*3] = r
		dst[i*3+1] = g
		dst[i*3+2] = b
	}
	return nil
}

// RGB888ToRGB565 packs pixels RGB888 pixels from src into dst
func RGB888ToRGB565(dst, src []byte, pixels int) error {
	if len(src) < pixels*3 {
		return fmt.Errorf("source too short: %d bytes for %d pixels", len(src), pixels)
	}
	if len(dst) < pixels*2 {
		return fmt.Errorf("destination too short: %d bytes for %d pixels", len(dst), pixels)
	}

	for i := 0; i < pixels; i++ {
		p := Pack565(src[i*3], src[i*3+1], src[i*3+2])
		dst[i*2] = byte(p)
		dst[i*2+1] = byte(p >> 8)
	}
	return nil
}

// RGB565ToRGBA converts an RGB565 frame into img, which must already have
// the frame's dimensions
func RGB565ToRGBA(img *image.RGBA, src []byte) error {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if len(src) < width*height*2 {
		return fmt.Errorf("source too short: %d bytes for %dx%d", len(src), width, height)
	}

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			i := (y*width + x) * 2
			pixel := uint16(src[i+1])<<8 | uint16(src[i])
			r, g, b := Unpack565(pixel)
			row[x*4] = r
			row[x*4+1] = g
			row[x*4+2] = b
			row[x*4+3] = 0xFF
		}
	}
	return nil
}

// RGB888Image wraps a packed RGB888 buffer as an image.Image so encoders
// can read it without another copy
type RGB888Image struct {
	Pix    []byte
	Width  int
	Height int
}

// ColorModel implements image.Image
func (m *RGB888Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image
func (m *RGB888Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image
func (m *RGB888Image) At(x, y int) color.Color {
	return m.RGBAAt(x, y)
}

// RGBAAt returns the pixel at (x, y) without boxing it in an interface
func (m *RGB888Image) RGBAAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	i := (y*m.Width + x) * 3
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xFF}
}

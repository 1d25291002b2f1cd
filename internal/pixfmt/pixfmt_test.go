package pixfmt

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le(p uint16) []byte {
	return []byte{byte(p), byte(p >> 8)}
}

func TestUnpack565Endpoints(t *testing.T) {
	tests := []struct {
		name    string
		pixel   uint16
		r, g, b uint8
	}{
		{"black", 0x0000, 0, 0, 0},
		{"white", 0xFFFF, 255, 255, 255},
		{"red", 0xF800, 255, 0, 0},
		{"green", 0x07E0, 0, 255, 0},
		{"blue", 0x001F, 0, 0, 255},
		{"lowest red step", 0x0800, 8, 0, 0},
		{"mid green", 0x0400, 0, 130, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := Unpack565(tt.pixel)
			assert.Equal(t, tt.r, r, "red")
			assert.Equal(t, tt.g, g, "green")
			assert.Equal(t, tt.b, b, "blue")
		})
	}
}

func TestRGB565ToRGB888(t *testing.T) {
	src := append(append(le(0xF800), le(0x0000)...), le(0xFFFF)...)
	dst := make([]byte, 9)

	require.NoError(t, RGB565ToRGB888(dst, src, 3))
	assert.Equal(t, []byte{255, 0, 0, 0, 0, 0, 255, 255, 255}, dst)
}

func TestRGB565ToRGB888ShortBuffers(t *testing.T) {
	assert.Error(t, RGB565ToRGB888(make([]byte, 3), make([]byte, 1), 1))
	assert.Error(t, RGB565ToRGB888(make([]byte, 2), make([]byte, 2), 1))
}

func TestPackRoundTripIsExactForRepresentableValues(t *testing.T) {
	for p := 0; p <= 0xFFFF; p += 7 {
		r, g, b := Unpack565(uint16(p))
		assert.Equal(t, uint16(p), Pack565(r, g, b))
	}
}

func TestRGB888ToRGB565(t *testing.T) {
	dst := make([]byte, 4)
	require.NoError(t, RGB888ToRGB565(dst, []byte{255, 0, 0, 0, 0, 255}, 2))
	assert.Equal(t, append(le(0xF800), le(0x001F)...), dst)
}

func TestRGB565ToRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	require.NoError(t, RGB565ToRGBA(img, append(le(0x07E0), le(0x001F)...)))

	assert.Equal(t, []byte{0, 255, 0, 255, 0, 0, 255, 255}, img.Pix)
	assert.Error(t, RGB565ToRGBA(img, le(0x07E0)))
}

func TestRGB888Image(t *testing.T) {
	m := &RGB888Image{Pix: []byte{1, 2, 3, 4, 5, 6}, Width: 2, Height: 1}

	assert.Equal(t, image.Rect(0, 0, 2, 1), m.Bounds())
	c := m.RGBAAt(1, 0)
	assert.Equal(t, [4]uint8{4, 5, 6, 255}, [4]uint8{c.R, c.G, c.B, c.A})
	assert.Zero(t, m.RGBAAt(5, 5).A)
}

func TestFormatSizes(t *testing.T) {
	assert.Equal(t, 2, RGB565.BytesPerPixel())
	assert.Equal(t, 3, RGB888.BytesPerPixel())
	assert.Equal(t, 4, RGBA.BytesPerPixel())
	assert.Equal(t, 640*480*2, RGB565.FrameSize(640, 480))
	assert.Equal(t, "RGB565", RGB565.String())
}

package display

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

// X11Sink shows the composed canvas in an X11 window
type X11Sink struct {
	canvas *CanvasSink

	conn          *xgb.Conn
	screen        *xproto.ScreenInfo
	displayWindow xproto.Window
	gc            xproto.Gcontext
	width         int
	height        int
	running       bool
	mu            sync.Mutex
}

// NewX11Sink connects to the X server. Frames are composed by canvas and the
// window takes the canvas size.
func NewX11Sink(canvas *CanvasSink) (*X11Sink, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	bounds := canvas.Image().Bounds()

	return &X11Sink{
		canvas: canvas,
		conn:   conn,
		screen: setup.DefaultScreen(conn),
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}, nil
}

func (x *X11Sink) Name() string {
	return "x11"
}

// Start creates and shows the display window
func (x *X11Sink) Start() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.running {
		return fmt.Errorf("display already running")
	}

	windowID, err := xproto.NewWindowId(x.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	x.displayWindow = windowID

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000, // Black background
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}

	err = xproto.CreateWindowChecked(
		x.conn,
		x.screen.RootDepth,
		x.displayWindow,
		x.screen.Root,
		0, 0,
		uint16(x.width), uint16(x.height),
		0,
		xproto.WindowClassInputOutput,
		x.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	if err := x.setWindowTitle("CamStreamer"); err != nil {
		logger.WithComponent("display").Warn().Err(err).Msg("Failed to set window title")
	}

	if err := xproto.MapWindowChecked(x.conn, x.displayWindow).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(x.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(x.conn, gc, xproto.Drawable(x.displayWindow), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	x.gc = gc
	x.conn.Sync()

	x.running = true
	logger.WithComponent("display").Info().
		Int("width", x.width).
		Int("height", x.height).
		Uint32("window_id", uint32(x.displayWindow)).
		Msg("Display window created")
	return nil
}

// Stop closes the display window and the X connection
func (x *X11Sink) Stop() {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.running {
		return
	}

	if x.gc != 0 {
		xproto.FreeGC(x.conn, x.gc)
	}
	if x.displayWindow != 0 {
		xproto.DestroyWindow(x.conn, x.displayWindow)
		x.conn.Sync()
	}
	x.conn.Close()

	x.running = false
	logger.WithComponent("display").Info().Msg("Display window closed")
}

// Update composes the frame on the canvas and pushes the result to the window
func (x *X11Sink) Update(buf []byte, width, height int, format pixfmt.Format) error {
	if err := x.canvas.Update(buf, width, height, format); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.running {
		return fmt.Errorf("display not running")
	}
	return x.putImage(x.canvas.Image())
}

// putImage sends an image to the X server to be displayed
func (x *X11Sink) putImage(img *image.RGBA) error {
	depth := x.screen.RootDepth
	setup := xproto.Setup(x.conn)

	var bitsPerPixel, scanlinePad uint8
	for _, format := range setup.PixmapFormats {
		if format.Depth == depth {
			bitsPerPixel = format.BitsPerPixel
			scanlinePad = format.ScanlinePad
			break
		}
	}
	if bitsPerPixel == 0 {
		return fmt.Errorf("no format found for depth %d", depth)
	}

	data, err := packZPixmap(img, int(bitsPerPixel)/8, int(scanlinePad)/8, depth == 32)
	if err != nil {
		return err
	}

	err = xproto.PutImageChecked(
		x.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(x.displayWindow),
		x.gc,
		uint16(x.width),
		uint16(x.height),
		0, 0,
		0,
		depth,
		data,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to put image: %w", err)
	}

	x.conn.Sync()
	return nil
}

// packZPixmap converts RGBA into BGR(x) scanlines padded to padBytes
func packZPixmap(img *image.RGBA, bytesPerPixel, padBytes int, alpha bool) ([]byte, error) {
	if bytesPerPixel != 3 && bytesPerPixel != 4 {
		return nil, fmt.Errorf("unsupported bytes per pixel: %d", bytesPerPixel)
	}
	if padBytes <= 0 {
		padBytes = 1
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	unpadded := w * bytesPerPixel
	stride := ((unpadded + padBytes - 1) / padBytes) * padBytes

	data := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := data[y*stride:]
		for px := 0; px < w; px++ {
			s := px * 4
			d := px * bytesPerPixel
			dst[d] = src[s+2]
			dst[d+1] = src[s+1]
			dst[d+2] = src[s]
			if bytesPerPixel == 4 && alpha {
				dst[d+3] = src[s+3]
			}
		}
	}
	return data, nil
}

func (x *X11Sink) setWindowTitle(title string) error {
	titleAtom, err := x.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := x.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}

	return xproto.ChangePropertyChecked(
		x.conn,
		xproto.PropModeReplace,
		x.displayWindow,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

func (x *X11Sink) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(x.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryanchriswhite/CamStreamer/internal/api"
	"github.com/bryanchriswhite/CamStreamer/internal/capture"
	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/csi"
	"github.com/bryanchriswhite/CamStreamer/internal/display"
	"github.com/bryanchriswhite/CamStreamer/internal/encode"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
	"github.com/bryanchriswhite/CamStreamer/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CamStreamer server",
	Long: `Initialize the camera and start the HTTP server.

Snapshots are served on /snapshot and /camera.jpg, the motion JPEG stream on
/stream and /camera_stream.mjpg. The same routes are available over WebSocket
under /ws.`,
	Example: `  # Start with the synthetic test pattern on the default port (8080)
  camstreamer serve

  # Start on a custom port with debug logging
  camstreamer serve --port 9090 --log-level debug

  # Use a real sensor through V4L2
  camstreamer serve --sensor ov5647 --controller v4l2`,
	RunE: runServe,
}

var (
	serveSensor     string
	serveController string
	serveNoDisplay  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveSensor, "sensor", "", "sensor driver (overrides camera.sensor)")
	serveCmd.Flags().StringVar(&serveController, "controller", "", "capture controller: sim, gstreamer or v4l2 (overrides camera.controller)")
	serveCmd.Flags().BoolVar(&serveNoDisplay, "no-display", false, "disable the local display")
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	if serveSensor != "" {
		cfg.Camera.Sensor = serveSensor
	}
	if serveController != "" {
		cfg.Camera.Controller = serveController
	}
	if serveNoDisplay {
		cfg.Display.Enabled = false
	}
	logger.Init(cfg.LogLevel, logPretty)

	log := logger.WithComponent("main")
	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("sensor", cfg.Camera.Sensor).
		Str("controller", cfg.Camera.Controller).
		Msg("Starting CamStreamer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, bus, err := openSensor(cfg.Camera)
	if err != nil {
		return err
	}
	if bus != nil {
		defer bus.Close()
	}

	ctrl, err := openController(cfg.Camera, drv)
	if err != nil {
		return err
	}

	engineOpts := capture.DefaultOptions()
	if cfg.Camera.Slots > 0 {
		engineOpts.Slots = cfg.Camera.Slots
	}
	if cfg.Camera.FPS > 0 {
		engineOpts.FPS = cfg.Camera.FPS
	}
	engine := capture.NewEngine(drv, ctrl, engineOpts)
	defer engine.Close()

	if err := engine.Init(); err != nil {
		return fmt.Errorf("camera init: %w", err)
	}
	if cfg.Camera.AutoStart {
		if err := engine.Start(); err != nil {
			return fmt.Errorf("camera start: %w", err)
		}
	}

	gateway := encode.NewGateway(encode.Options{BufferSize: cfg.Encoder.BufferSize})
	dispatcher := stream.NewDispatcher(engine, gateway, dispatcherOptions(cfg))

	deps := api.Deps{
		Camera:        engine,
		Dispatcher:    dispatcher,
		Gateway:       gateway,
		StreamEnabled: cfg.Stream.Enabled,
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Display.Enabled {
		canvas := display.NewCanvas(display.CanvasOptions{
			Width:     cfg.Display.Width,
			Height:    cfg.Display.Height,
			Minimized: cfg.Display.Minimized,
		})
		canvas.SetLabel(fmt.Sprintf("%s via %s", drv.Name(), ctrl.Name()))
		deps.Canvas = canvas

		var sink display.Sink = canvas
		if cfg.Display.X11 {
			x11, err := display.NewX11Sink(canvas)
			if err != nil {
				return err
			}
			if err := x11.Start(); err != nil {
				return err
			}
			defer x11.Stop()
			sink = x11
		}

		loop := display.NewLoop(engine, sink, time.Duration(cfg.Display.UpdateIntervalMs)*time.Millisecond)
		g.Go(func() error {
			return loop.Run(ctx)
		})
	}

	g.Go(func() error {
		engine.RunStats(ctx, 0)
		return nil
	})

	server := api.NewServer(api.NewRoutes(deps))
	g.Go(func() error {
		return server.Serve(ctx, cfg.ServerPort)
	})

	log.Info().
		Int("port", cfg.ServerPort).
		Bool("streaming", engine.Streaming()).
		Msgf("CamStreamer is running on http://localhost:%d", cfg.ServerPort)

	err = g.Wait()
	log.Info().Msg("Shutting down gracefully")
	engine.Stop()
	return err
}

// openSensor builds the configured driver. Hardware sensors get the I2C bus,
// which the caller closes.
func openSensor(cc config.CameraConfig) (sensor.Driver, io.Closer, error) {
	opts := sensor.Options{
		Addr:    cc.I2CAddr,
		Pattern: cc.Pattern,
	}

	var bus io.Closer
	if cc.Sensor != "testpattern" {
		b, err := sensor.OpenBus(cc.I2CBus)
		if err != nil {
			return nil, nil, err
		}
		opts.Bus = b
		bus = b
	}

	drv, err := sensor.New(cc.Sensor, opts)
	if err != nil {
		if bus != nil {
			bus.Close()
		}
		return nil, nil, err
	}
	return drv, bus, nil
}

// openController builds the configured capture controller. The simulated
// controller renders frames from the driver when it can produce them.
func openController(cc config.CameraConfig, drv sensor.Driver) (csi.Controller, error) {
	opts := csi.Options{
		Pipeline: cc.GstSource,
		Device:   cc.Device,
	}
	if src, ok := drv.(csi.Source); ok {
		opts.Source = src
	}
	return csi.New(cc.Controller, opts)
}

func dispatcherOptions(cfg *config.Config) stream.Options {
	return stream.Options{
		SnapshotQuality: cfg.Encoder.SnapshotQuality,
		SnapshotWait:    time.Duration(cfg.Encoder.SnapshotWaitMs) * time.Millisecond,
		StreamQuality:   cfg.Encoder.StreamQuality,
		StreamWait:      time.Duration(cfg.Encoder.StreamWaitMs) * time.Millisecond,
		Interval:        time.Duration(cfg.Stream.IntervalMs) * time.Millisecond,
	}
}

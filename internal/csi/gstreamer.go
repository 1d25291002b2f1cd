package csi

import (
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// DefaultPipeline is the source used when no pipeline is configured
const DefaultPipeline = "videotestsrc is-live=true pattern=smpte"

// GStreamer is a controller backed by a GStreamer pipeline ending in an
// appsink that produces RGB565 frames at the sensor geometry
type GStreamer struct {
	source string

	mu       sync.RWMutex
	cfg      Config
	handler  Handler
	pipeline *gst.Pipeline
	appsink  *app.Sink
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewGStreamer creates a GStreamer controller for the given source description
func NewGStreamer(source string) *GStreamer {
	if source == "" {
		source = DefaultPipeline
	}
	return &GStreamer{source: source}
}

func (g *GStreamer) Name() string {
	return "gstreamer"
}

func (g *GStreamer) Enable(cfg Config, h Handler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.handler != nil {
		return ErrAlreadyEnabled
	}
	if h == nil {
		return fmt.Errorf("nil transfer handler")
	}

	gst.Init(nil)

	// Polling mode with emit-signals=false keeps frame delivery off CGO callbacks
	pipelineStr := fmt.Sprintf(
		"%s ! videoconvert ! videoscale ! "+
			"video/x-raw,format=RGB16,width=%d,height=%d,framerate=%d/1 ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=true",
		g.source, cfg.Width, cfg.Height, cfg.fps(),
	)

	logger.WithComponent("gstreamer").Debug().Str("pipeline", pipelineStr).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to get appsink: %w", err)
	}

	g.pipeline = pipeline
	g.appsink = app.SinkFromElement(sinkElement)
	g.cfg = cfg
	g.handler = h
	return nil
}

func (g *GStreamer) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.handler == nil {
		return ErrNotEnabled
	}
	if g.running {
		return nil
	}

	if err := g.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	g.running = true
	g.stopChan = make(chan struct{})
	g.wg.Add(1)
	go g.pollSamples(g.stopChan)

	logger.WithComponent("gstreamer").Info().
		Int("width", g.cfg.Width).
		Int("height", g.cfg.Height).
		Msg("GStreamer pipeline started")
	return nil
}

func (g *GStreamer) Stop() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	close(g.stopChan)
	g.mu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.pipeline.SetState(gst.StatePaused); err != nil {
		return fmt.Errorf("failed to pause pipeline: %w", err)
	}

	logger.WithComponent("gstreamer").Info().Msg("GStreamer pipeline stopped")
	return nil
}

func (g *GStreamer) Close() error {
	if err := g.Stop(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pipeline != nil {
		g.pipeline.SetState(gst.StateNull)
		g.pipeline.Unref()
		g.pipeline = nil
		g.appsink = nil
	}
	g.handler = nil
	return nil
}

func (g *GStreamer) pollSamples(stop <-chan struct{}) {
	defer g.wg.Done()

	interval := time.Second / time.Duration(g.cfg.fps()*2)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			logger.WithComponent("gstreamer").Debug().Msg("Sample polling stopped")
			return
		case <-ticker.C:
			g.mu.RLock()
			appsink := g.appsink
			g.mu.RUnlock()
			if appsink == nil {
				continue
			}

			sample := appsink.TryPullSample(time.Millisecond)
			if sample == nil {
				continue
			}

			// go-gst owns the sample reference; unreferencing here double-frees
			g.transfer(sample)
		}
	}
}

// transfer copies one sample into the handler's buffer and completes the
// transfer with the number of bytes copied
func (g *GStreamer) transfer(sample *gst.Sample) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return
	}
	defer buffer.Unmap()

	dst := g.handler.NewTransfer()
	n := copy(dst, mapInfo.Bytes())
	if n < g.cfg.frameSize() {
		// short sample, let the handler recycle the slot
		n = 0
	}
	g.handler.TransferDone(n)
}

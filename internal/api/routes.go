package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/capture"
	"github.com/bryanchriswhite/CamStreamer/internal/encode"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
	"github.com/bryanchriswhite/CamStreamer/internal/stream"
	"github.com/bryanchriswhite/CamStreamer/internal/transport"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// Camera is the engine surface the routes drive
type Camera interface {
	Start() error
	Stop()
	Streaming() bool
	Stats() capture.Stats
	Sensor() sensor.Driver
}

// Canvas renders the current display contents as PNG
type Canvas interface {
	PNG() ([]byte, error)
}

// Deps are the collaborators behind the route table
type Deps struct {
	Camera     Camera
	Dispatcher *stream.Dispatcher
	Gateway    *encode.Gateway
	// Canvas is nil when the display is disabled
	Canvas Canvas
	// StreamEnabled registers the motion JPEG routes
	StreamEnabled bool
}

// Routes is the route table shared by every transport
type Routes struct {
	deps    Deps
	started time.Time
}

// NewRoutes creates the route table
func NewRoutes(deps Deps) *Routes {
	return &Routes{deps: deps, started: time.Now()}
}

// Register adds every route to r
func (rt *Routes) Register(r transport.Router) {
	r.Route(http.MethodGet, "/snapshot", rt.handleSnapshot)
	r.Route(http.MethodGet, "/camera.jpg", rt.handleSnapshot)
	if rt.deps.StreamEnabled {
		r.Route(http.MethodGet, "/stream", rt.handleStream)
		r.Route(http.MethodGet, "/camera_stream.mjpg", rt.handleStream)
	}
	r.Route(http.MethodGet, "/control", rt.handleControl)
	r.Route(http.MethodGet, "/display.png", rt.handleDisplay)

	r.Route(http.MethodGet, "/api/status", rt.handleStatus)
	r.Route(http.MethodGet, "/api/health", rt.handleHealth)
	r.Route(http.MethodPost, "/api/stream/start", rt.handleStart)
	r.Route(http.MethodPost, "/api/stream/stop", rt.handleStop)
}

func (rt *Routes) handleSnapshot(req transport.Request, w transport.Responder) {
	img, err := rt.deps.Dispatcher.Snapshot(req.Context())
	if err != nil {
		status := stream.StatusCode(err)
		logger.WithComponent("api").Debug().Err(err).Int("status", status).Msg("Snapshot failed")
		transport.Text(w, status, errorReason(err))
		return
	}

	h := http.Header{}
	transport.NoCache(h)
	h.Set("Content-Type", "image/jpeg")
	if download := req.Query("download"); download == "1" || download == "true" {
		h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="snapshot-%d.jpg"`, img.Seq))
	}
	w.Respond(http.StatusOK, h, img.Data)
}

func (rt *Routes) handleStream(req transport.Request, w transport.Responder) {
	s := rt.deps.Dispatcher.Open(req.RemoteAddr())
	defer s.Close()

	h := http.Header{}
	transport.NoCache(h)
	h.Set("Content-Type", stream.ContentType)
	h.Set("Connection", "close")

	if err := w.StreamParts(h, s.Next); err != nil {
		logger.WithComponent("api").Debug().Err(err).Str("session", s.ID).Msg("Stream ended")
	}
}

func (rt *Routes) handleControl(req transport.Request, w transport.Responder) {
	raw := req.Query("brightness")
	if raw == "" {
		transport.Text(w, http.StatusBadRequest, "Missing brightness parameter")
		return
	}

	level, err := strconv.Atoi(raw)
	if err != nil {
		transport.Text(w, http.StatusBadRequest, "Invalid brightness value")
		return
	}

	if err := rt.deps.Camera.Sensor().SetBrightness(level); err != nil {
		if errors.Is(err, sensor.ErrInvalidBrightness) {
			transport.Text(w, http.StatusBadRequest, err.Error())
			return
		}
		transport.Text(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.WithComponent("api").Info().Int("brightness", level).Msg("Brightness updated")
	transport.JSON(w, http.StatusOK, map[string]int{"brightness": level})
}

func (rt *Routes) handleDisplay(req transport.Request, w transport.Responder) {
	if rt.deps.Canvas == nil {
		transport.Text(w, http.StatusNotFound, "Display disabled")
		return
	}

	data, err := rt.deps.Canvas.PNG()
	if err != nil {
		transport.Text(w, http.StatusInternalServerError, err.Error())
		return
	}

	h := http.Header{}
	transport.NoCache(h)
	h.Set("Content-Type", "image/png")
	w.Respond(http.StatusOK, h, data)
}

// StatusResponse is the body of /api/status
type StatusResponse struct {
	Camera   capture.Stats        `json:"camera"`
	Sensor   sensor.Info          `json:"sensor"`
	Encoder  encode.Stats         `json:"encoder"`
	Stream   stream.Stats         `json:"stream"`
	Sessions []stream.SessionInfo `json:"sessions"`
	Uptime   string               `json:"uptime"`
}

func (rt *Routes) handleStatus(req transport.Request, w transport.Responder) {
	transport.JSON(w, http.StatusOK, StatusResponse{
		Camera:   rt.deps.Camera.Stats(),
		Sensor:   sensor.Describe(rt.deps.Camera.Sensor()),
		Encoder:  rt.deps.Gateway.Stats(),
		Stream:   rt.deps.Dispatcher.Stats(),
		Sessions: rt.deps.Dispatcher.Sessions(),
		Uptime:   time.Since(rt.started).Round(time.Second).String(),
	})
}

func (rt *Routes) handleHealth(req transport.Request, w transport.Responder) {
	transport.JSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   Version,
		"streaming": rt.deps.Camera.Streaming(),
	})
}

func (rt *Routes) handleStart(req transport.Request, w transport.Responder) {
	if err := rt.deps.Camera.Start(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, capture.ErrAlreadyStreaming) {
			status = http.StatusConflict
		}
		transport.Text(w, status, err.Error())
		return
	}
	transport.JSON(w, http.StatusOK, map[string]bool{"streaming": true})
}

func (rt *Routes) handleStop(req transport.Request, w transport.Responder) {
	rt.deps.Camera.Stop()
	transport.JSON(w, http.StatusOK, map[string]bool{"streaming": false})
}

// errorReason turns a pull error into the message sent to clients
func errorReason(err error) string {
	switch {
	case errors.Is(err, capture.ErrNotStreaming):
		return "Camera not available"
	case errors.Is(err, capture.ErrNoFrameYet), errors.Is(err, capture.ErrNoFrame):
		return "No frame available"
	case errors.Is(err, encode.ErrBusy):
		return "Server busy"
	case errors.Is(err, encode.ErrEncodeFailed):
		return "JPEG encoding failed"
	default:
		return err.Error()
	}
}

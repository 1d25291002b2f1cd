package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/stream"
	"github.com/bryanchriswhite/CamStreamer/internal/transport"
)

// Server represents the HTTP server. The route table is mounted at the root
// over plain HTTP and again under /ws over WebSocket.
type Server struct {
	router   *mux.Router
	routes   *Routes
	upgrader websocket.Upgrader
}

// NewServer creates a new server for the given route table
func NewServer(routes *Routes) *Server {
	s := &Server{
		router: mux.NewRouter(),
		routes: routes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins, the viewer may be served elsewhere
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the routes
func (s *Server) setupRoutes() {
	ws := s.router.PathPrefix("/ws").Subrouter()
	s.routes.Register(&wsRouter{router: ws, upgrader: &s.upgrader})

	s.routes.Register(&httpRouter{router: s.router})

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Serve listens on port until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("api").Info().Str("addr", addr).Msgf("Starting server on http://localhost%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// httpRouter mounts transport handlers on a gorilla/mux router
type httpRouter struct {
	router *mux.Router
}

func (hr *httpRouter) Route(method, path string, h transport.Handler) {
	hr.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		h(httpRequest{r}, &httpResponder{w: w, r: r})
	}).Methods(method)
}

type httpRequest struct {
	r *http.Request
}

func (q httpRequest) Context() context.Context { return q.r.Context() }
func (q httpRequest) Query(key string) string  { return q.r.URL.Query().Get(key) }
func (q httpRequest) RemoteAddr() string       { return q.r.RemoteAddr }

type httpResponder struct {
	w http.ResponseWriter
	r *http.Request
}

func (hr *httpResponder) Respond(status int, header http.Header, body []byte) error {
	copyHeader(hr.w.Header(), header)
	hr.w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	hr.w.WriteHeader(status)
	_, err := hr.w.Write(body)
	return err
}

func (hr *httpResponder) StreamParts(header http.Header, next transport.PartFunc) error {
	copyHeader(hr.w.Header(), header)
	hr.w.WriteHeader(http.StatusOK)

	flusher, _ := hr.w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	ctx := hr.r.Context()
	var buf []byte
	for {
		part, err := next(ctx)
		if err != nil {
			return err
		}
		if part == nil {
			continue
		}

		buf = stream.AppendPart(buf[:0], part)
		if _, err := hr.w.Write(buf); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func copyHeader(dst, src http.Header) {
	for k, v := range src {
		dst[k] = v
	}
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/transport"
)

const wsWriteTimeout = 5 * time.Second

// wsRouter mounts transport handlers behind a WebSocket upgrade. Only GET
// routes are exposed since the upgrade request is always a GET.
type wsRouter struct {
	router   *mux.Router
	upgrader *websocket.Upgrader
}

func (wr *wsRouter) Route(method, path string, h transport.Handler) {
	if method != http.MethodGet {
		return
	}

	wr.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := wr.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithComponent("api").Warn().Err(err).Str("path", r.URL.Path).Msg("WebSocket upgrade error")
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// drain control frames so a client close cancels the handler
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		h(wsRequest{r: r, ctx: ctx}, &wsResponder{conn: conn, ctx: ctx})
	}).Methods(http.MethodGet)
}

type wsRequest struct {
	r   *http.Request
	ctx context.Context
}

func (q wsRequest) Context() context.Context { return q.ctx }
func (q wsRequest) Query(key string) string  { return q.r.URL.Query().Get(key) }
func (q wsRequest) RemoteAddr() string       { return q.r.RemoteAddr }

type wsResponder struct {
	conn *websocket.Conn
	ctx  context.Context
}

// Respond sends the body as one message. Error statuses become a text
// message "<status> <reason>" followed by a close frame.
func (wr *wsResponder) Respond(status int, header http.Header, body []byte) error {
	if status >= http.StatusBadRequest {
		msg := fmt.Sprintf("%d %s", status, strings.TrimSpace(string(body)))
		if err := wr.write(websocket.TextMessage, []byte(msg)); err != nil {
			return err
		}
		return wr.close(websocket.CloseNormalClosure, "")
	}

	if err := wr.write(messageType(header), body); err != nil {
		return err
	}
	return wr.close(websocket.CloseNormalClosure, "")
}

// StreamParts sends one binary message per part
func (wr *wsResponder) StreamParts(header http.Header, next transport.PartFunc) error {
	for {
		part, err := next(wr.ctx)
		if err != nil {
			wr.close(websocket.CloseGoingAway, "")
			return err
		}
		if part == nil {
			continue
		}
		if err := wr.write(websocket.BinaryMessage, part); err != nil {
			return err
		}
	}
}

func (wr *wsResponder) write(kind int, data []byte) error {
	wr.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return wr.conn.WriteMessage(kind, data)
}

func (wr *wsResponder) close(code int, text string) error {
	msg := websocket.FormatCloseMessage(code, text)
	return wr.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

func messageType(h http.Header) int {
	ct := h.Get("Content-Type")
	if strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json") {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

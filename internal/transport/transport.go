// Package transport defines the request/response capability that route
// handlers are written against, so one route table can be served over
// more than one protocol.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
)

// Request is the inbound side of a route invocation
type Request interface {
	Context() context.Context
	Query(key string) string
	RemoteAddr() string
}

// PartFunc produces the next part of a stream. A nil part with a nil error
// skips the tick; any error ends the stream.
type PartFunc func(ctx context.Context) ([]byte, error)

// Responder is the outbound side of a route invocation
type Responder interface {
	// Respond sends one complete response
	Respond(status int, header http.Header, body []byte) error

	// StreamParts sends parts produced by next until it fails or the client
	// goes away
	StreamParts(header http.Header, next PartFunc) error
}

// Handler serves one route
type Handler func(req Request, w Responder)

// Router registers handlers on a transport
type Router interface {
	Route(method, path string, h Handler)
}

// NoCache sets the headers that keep clients from caching camera images
func NoCache(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// JSON responds with v encoded as JSON
func JSON(w Responder, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return Text(w, http.StatusInternalServerError, err.Error())
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return w.Respond(status, h, body)
}

// Text responds with a plain text message
func Text(w Responder, status int, msg string) error {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return w.Respond(status, h, []byte(msg))
}

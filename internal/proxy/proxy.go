// Package proxy exposes an interceptor as an http.Handler.
//
// Origin-form requests ("GET /index.html") are resolved against the page
// origin. Absolute-form requests ("GET https://api.maptiler.com/...") are
// handled as a forward proxy, so tiles and CDN assets fetched through the
// proxy go through the same cache as the shell.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/message"
)

// DefaultMaxBodyBytes bounds the request body read from a client.
const DefaultMaxBodyBytes = 10 << 20

// Interceptor answers intercepted requests.
type Interceptor interface {
	Handle(ctx context.Context, req *message.Request) (*message.Response, error)
}

// Handler serves HTTP requests through an Interceptor.
type Handler struct {
	interceptor Interceptor
	origin      *url.URL
	logger      *zap.Logger
	maxBody     int64
}

// Compile-time check that Handler implements http.Handler.
var _ http.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxBodyBytes bounds the request body accepted from clients. Larger
// bodies are answered with 413.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		h.maxBody = n
	}
}

// New creates a handler. origin may be nil, in which case only
// absolute-form requests are served.
func New(interceptor Interceptor, origin *url.URL, opts ...Option) *Handler {
	h := &Handler{
		interceptor: interceptor,
		origin:      origin,
		logger:      zap.NewNop(),
		maxBody:     DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		http.Error(w, "tunneling not supported", http.StatusMethodNotAllowed)
		return
	}

	target, ok := h.target(r)
	if !ok {
		http.Error(w, "no origin configured for relative request", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	req := &message.Request{
		Method: r.Method,
		URL:    target,
		Header: r.Header.Clone(),
	}
	if len(body) > 0 {
		req.Body = body
	}

	resp, err := h.interceptor.Handle(r.Context(), req)
	if err != nil {
		h.logger.Warn("request failed", zap.String("method", r.Method), zap.String("url", req.Key()), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	header := w.Header()
	for name, values := range resp.Header {
		header[name] = append([]string(nil), values...)
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	if !resp.StoredAt.IsZero() {
		header.Set("Age", strconv.Itoa(age(resp)))
	}
	w.WriteHeader(resp.Status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Debug("writing response failed", zap.String("url", req.Key()), zap.Error(err))
	}
}

// target returns the absolute URL the request is for.
func (h *Handler) target(r *http.Request) (*url.URL, bool) {
	if r.URL.IsAbs() {
		u := *r.URL
		return &u, true
	}
	if h.origin == nil {
		return nil, false
	}
	return h.origin.ResolveReference(&url.URL{
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}), true
}

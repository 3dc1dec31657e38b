package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
)

// BridgeConfig configures the request bridge.
type BridgeConfig struct {
	// APIPrefix scopes which request paths are bridged.
	// Default: "/api".
	APIPrefix string

	// MaxBodyBytes bounds collected request bodies. Nil applies
	// DefaultMaxBodyBytes; zero rejects every request body; a negative
	// value disables the bound.
	MaxBodyBytes *int64

	// DefaultHost is the authority used to rebuild absolute URLs when the
	// request carries no Host header. Default: "localhost".
	DefaultHost string

	// Logger receives bridge errors. Default: slog.Default().
	Logger *slog.Logger
}

// Bridge turns raw inbound requests into handler-native requests and streams
// the handler's response back. It is shaped as standard net/http middleware:
// out-of-scope requests pass through to the next handler untouched.
type Bridge struct {
	registry *Registry
	prefix   string
	maxBytes int64
	host     string
	logger   *slog.Logger
}

// NewBridge creates a bridge over the given registry.
func NewBridge(registry *Registry, cfg BridgeConfig) *Bridge {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	maxBytes := DefaultMaxBodyBytes
	if cfg.MaxBodyBytes != nil {
		maxBytes = *cfg.MaxBodyBytes
	}
	if cfg.DefaultHost == "" {
		cfg.DefaultHost = "localhost"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Bridge{
		registry: registry,
		prefix:   cfg.APIPrefix,
		maxBytes: maxBytes,
		host:     cfg.DefaultHost,
		logger:   cfg.Logger,
	}
}

// InScope reports whether a request path is bridged.
func (b *Bridge) InScope(path string) bool {
	return strings.HasPrefix(path, b.prefix)
}

// Middleware wraps next: in-scope requests are bridged to the current
// handler, everything else continues down the outer pipeline.
func (b *Bridge) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.InScope(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		b.serve(w, r)
	})
}

// serve bridges one in-scope request.
func (b *Bridge) serve(w http.ResponseWriter, r *http.Request) {
	handler := b.registry.Current()
	if handler == nil {
		b.logger.Error("bridge: no handler loaded", "method", r.Method, "path", r.URL.Path)
		b.fail(w)
		return
	}

	var body []byte
	if methodExpectsBody(r.Method) {
		collected, err := Collect(r.Body, b.maxBytes)
		if errors.Is(err, ErrBodyTooLarge) {
			// Abrupt close: tell net/http to drop the connection instead
			// of draining whatever the client is still sending.
			w.Header().Set("Connection", "close")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte("Payload Too Large"))
			return
		}
		if err != nil {
			b.logger.Error("bridge: body read failed", "method", r.Method, "path", r.URL.Path, "err", err)
			b.fail(w)
			return
		}
		body = collected
	}

	req := &Request{
		Method: r.Method,
		URL:    b.absoluteURL(r),
		Header: r.Header.Clone(),
		Body:   body,
	}

	resp, err := invoke(handler, r, req)
	if err != nil {
		b.logger.Error("bridge: handler failed", "method", r.Method, "path", r.URL.Path, "err", err)
		b.fail(w)
		return
	}

	header := w.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

// invoke calls the handler, converting panics into HandlerErrors so a
// misbehaving handler takes down one request, not the host.
func invoke(handler Handler, r *http.Request, req *Request) (resp *Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HandlerError{
				Method: req.Method,
				Path:   req.URL.Path,
				Panic:  rec,
				Stack:  debug.Stack(),
			}
		}
	}()

	resp, err = handler.Handle(r.Context(), req)
	if err == nil && resp == nil {
		err = errors.New("gateway: handler returned nil response")
	}
	return resp, err
}

// fail finalizes a generic server error response.
func (b *Bridge) fail(w http.ResponseWriter) {
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("Internal Server Error"))
}

// absoluteURL rebuilds the absolute request URL from the path and Host
// header, falling back to the configured default authority.
func (b *Bridge) absoluteURL(r *http.Request) *url.URL {
	u := *r.URL
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	u.Host = r.Host
	if u.Host == "" {
		u.Host = b.host
	}
	return &u
}

// methodExpectsBody reports whether a method carries a request body.
// GET/HEAD-shaped requests bypass the collector entirely.
func methodExpectsBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead:
		return false
	default:
		return true
	}
}

package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Handler is the contract every hot-swappable request handler satisfies.
// Implementations must be safe for concurrent use: the bridge invokes the
// current handler from many request goroutines at once.
type Handler interface {
	// Handle processes a bridged request and produces a response.
	// Returning an error (or panicking) surfaces as a 500 to the caller;
	// it never crashes the host process.
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request is the handler-native view of an inbound request. Body holds the
// exact bytes received on the wire; the bridge never transcodes it.
type Request struct {
	// Method is the HTTP method, e.g. "POST".
	Method string

	// URL is the absolute request URL, reconstructed from the request
	// path and Host header.
	URL *url.URL

	// Header is a snapshot of the inbound request headers.
	Header http.Header

	// Body is the fully collected raw request body. Empty (never nil
	// reads) for GET/HEAD-shaped requests.
	Body []byte
}

// Response is what a handler returns. Header and Body are copied verbatim
// onto the outbound response.
type Response struct {
	// Status is the HTTP status code. Zero means 200.
	Status int

	// Header holds response headers to copy out. May be nil.
	Header http.Header

	// Body is the raw response body. Written as-is, no re-encoding.
	Body []byte
}

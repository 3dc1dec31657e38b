// Package gateway implements the request-bridging core of the hotbridge
// development gateway.
//
// The gateway forwards inbound HTTP requests under a configured API prefix
// to a hot-swappable in-process handler. It is built from four pieces:
//
//   - Registry: holds the single active Handler behind an atomically
//     swappable reference and serializes reloads.
//   - Collect: bounded, binary-safe request body buffering with
//     backpressure against oversized payloads.
//   - Bridge: net/http middleware that scopes, bridges, and streams
//     handler responses back to the caller.
//   - IsAffected: the dependency-aware invalidation walk that decides,
//     on a file change, whether the active handler must be reloaded.
//
// The package has no opinion about where handlers come from (the Loader
// interface) or how dependency graphs are produced (the GraphSnapshot
// interface); internal/dev provides concrete implementations for both.
package gateway

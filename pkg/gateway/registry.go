package gateway

import (
	"context"
	"sync"
	"sync/atomic"
)

// Loader builds a Handler from a module identity. It is the gateway's view
// of the external module loader; the registry calls it exactly once per
// Load or Reload invocation.
type Loader interface {
	Load(ctx context.Context, module string) (Handler, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(ctx context.Context, module string) (Handler, error)

// Load calls f(ctx, module).
func (f LoaderFunc) Load(ctx context.Context, module string) (Handler, error) {
	return f(ctx, module)
}

// handlerSlot wraps a Handler so the atomic pointer always swaps a whole
// value: readers see either the old slot or the new one, never a torn mix.
type handlerSlot struct {
	handler Handler
}

// Registry owns the single active handler reference. Reads are lock-free
// and never block; loads and reloads serialize behind a mutex so the
// module loader is never invoked on overlapping state.
type Registry struct {
	module string
	loader Loader

	active atomic.Pointer[handlerSlot]

	// loadMu serializes Load/Reload. Rapid successive file changes queue
	// behind it rather than racing the loader.
	loadMu sync.Mutex

	// loads counts successful loader invocations, for tests and metrics.
	loads atomic.Uint64
}

// NewRegistry creates a registry for the given entry module.
func NewRegistry(module string, loader Loader) *Registry {
	return &Registry{
		module: module,
		loader: loader,
	}
}

// Module returns the entry module identity this registry loads.
func (r *Registry) Module() string {
	return r.module
}

// Current returns the last successfully loaded handler, or nil if no load
// has ever succeeded. It never blocks, even during a concurrent reload.
func (r *Registry) Current() Handler {
	slot := r.active.Load()
	if slot == nil {
		return nil
	}
	return slot.handler
}

// Load invokes the loader and publishes the handler on success. On failure
// the active reference is left untouched and the error is returned.
func (r *Registry) Load(ctx context.Context) (Handler, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.load(ctx)
}

// Reload re-invokes the loader. The swap happens only on success; a failed
// reload keeps the previous handler active and reports the error to the
// caller. Concurrent reloads serialize.
func (r *Registry) Reload(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	_, err := r.load(ctx)
	return err
}

// load runs one loader invocation. Callers hold loadMu.
func (r *Registry) load(ctx context.Context) (Handler, error) {
	handler, err := r.loader.Load(ctx, r.module)
	if err != nil {
		return nil, err
	}
	r.active.Store(&handlerSlot{handler: handler})
	r.loads.Add(1)
	return handler, nil
}

// Loads returns the number of successful loader invocations so far.
func (r *Registry) Loads() uint64 {
	return r.loads.Load()
}

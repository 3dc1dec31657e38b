package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func okHandler(status int) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Status: status}, nil
	})
}

// fakeLoader returns handlers from a queue and counts invocations.
type fakeLoader struct {
	mu      sync.Mutex
	queue   []Handler
	err     error
	calls   int
	inLoad  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (l *fakeLoader) Load(ctx context.Context, module string) (Handler, error) {
	if l.inLoad.Add(1) > 1 {
		l.overlap.Store(true)
	}
	defer l.inLoad.Add(-1)

	if l.delay > 0 {
		time.Sleep(l.delay)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, &LoadError{Module: module, Err: l.err}
	}
	h := l.queue[0]
	if len(l.queue) > 1 {
		l.queue = l.queue[1:]
	}
	return h, nil
}

func (l *fakeLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestRegistry_LoadPublishesHandler(t *testing.T) {
	loader := &fakeLoader{queue: []Handler{okHandler(200)}}
	reg := NewRegistry("app/handler", loader)

	if reg.Current() != nil {
		t.Fatal("expected nil handler before first load")
	}

	h, err := reg.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h == nil || reg.Current() == nil {
		t.Fatal("expected handler after load")
	}
	if loader.callCount() != 1 {
		t.Errorf("loader called %d times, want 1", loader.callCount())
	}
}

func TestRegistry_FailedReloadKeepsPrevious(t *testing.T) {
	loader := &fakeLoader{queue: []Handler{okHandler(201)}}
	reg := NewRegistry("app/handler", loader)

	if _, err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := reg.Current()

	loader.mu.Lock()
	loader.err = errors.New("compile failed")
	loader.mu.Unlock()

	err := reg.Reload(context.Background())
	if err == nil {
		t.Fatal("expected reload error")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T", err)
	}

	after := reg.Current()
	if after == nil {
		t.Fatal("handler dropped after failed reload")
	}
	resp, _ := after.Handle(context.Background(), &Request{Method: http.MethodGet})
	wantResp, _ := before.Handle(context.Background(), &Request{Method: http.MethodGet})
	if resp.Status != wantResp.Status {
		t.Error("active handler changed despite failed reload")
	}
}

func TestRegistry_ReloadSwapsHandler(t *testing.T) {
	loader := &fakeLoader{queue: []Handler{okHandler(200), okHandler(204)}}
	reg := NewRegistry("app/handler", loader)

	if _, err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := reg.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	resp, _ := reg.Current().Handle(context.Background(), &Request{Method: http.MethodGet})
	if resp.Status != 204 {
		t.Errorf("got status %d after reload, want 204", resp.Status)
	}
	if got := reg.Loads(); got != 2 {
		t.Errorf("Loads() = %d, want 2", got)
	}
}

func TestRegistry_ConcurrentReloadsSerialize(t *testing.T) {
	loader := &fakeLoader{queue: []Handler{okHandler(200)}, delay: 5 * time.Millisecond}
	reg := NewRegistry("app/handler", loader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.Reload(context.Background())
		}()
	}
	wg.Wait()

	if loader.overlap.Load() {
		t.Error("loader invoked on overlapping state")
	}
	if loader.callCount() != 8 {
		t.Errorf("loader called %d times, want 8", loader.callCount())
	}
}

func TestRegistry_ReadersNeverObserveTornReference(t *testing.T) {
	loader := &fakeLoader{queue: []Handler{okHandler(200)}}
	reg := NewRegistry("app/handler", loader)
	if _, err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	done := make(chan struct{})
	var bad atomic.Bool

	// Readers hammer Current while reloads race with them. Every snapshot
	// must be a usable handler, either fully old or fully new.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				h := reg.Current()
				if h == nil {
					bad.Store(true)
					return
				}
				resp, err := h.Handle(context.Background(), &Request{Method: http.MethodGet})
				if err != nil || resp == nil || resp.Status != 200 {
					bad.Store(true)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := reg.Reload(context.Background()); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}
	close(done)
	wg.Wait()

	if bad.Load() {
		t.Error("reader observed an unusable handler snapshot during reloads")
	}
}

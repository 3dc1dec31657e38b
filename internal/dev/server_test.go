package dev

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hotbridge-dev/hotbridge/internal/config"
	"github.com/hotbridge-dev/hotbridge/pkg/gateway"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countLoader counts loader invocations and can be flipped into a failure
// mode.
type countLoader struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (l *countLoader) Load(ctx context.Context, module string) (gateway.Handler, error) {
	l.calls.Add(1)
	if l.fail.Load() {
		return nil, &gateway.LoadError{Module: module, Err: errors.New("broken build")}
	}
	return gateway.HandlerFunc(func(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
		return &gateway.Response{Status: http.StatusOK}, nil
	}), nil
}

func newTestServer(t *testing.T) (*Server, *countLoader, string) {
	t.Helper()
	dir := writeProject(t)

	cfgPath := filepath.Join(dir, config.ConfigFileName)
	if err := os.WriteFile(cfgPath, []byte(`{"entry": "./api"}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	loader := &countLoader{}
	srv := NewServer(ServerOptions{
		Config: cfg,
		Loader: loader,
		Logger: quietLogger(),
	})

	if _, err := srv.Registry().Load(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	return srv, loader, dir
}

func TestServer_UnrelatedChangeSkipsReload(t *testing.T) {
	srv, loader, dir := newTestServer(t)

	before := loader.calls.Load()
	loadsBefore := srv.Registry().Loads()

	srv.handleChanges(context.Background(), []Change{
		{Path: filepath.Join(dir, "other", "other.go"), Type: ChangeSource},
	})

	if got := loader.calls.Load(); got != before {
		t.Errorf("loader calls = %d, want %d (no reload for unrelated change)", got, before)
	}
	if got := srv.Registry().Loads(); got != loadsBefore {
		t.Errorf("registry loads = %d, want %d", got, loadsBefore)
	}
}

func TestServer_DependencyChangeReloads(t *testing.T) {
	srv, loader, dir := newTestServer(t)

	before := loader.calls.Load()
	srv.handleChanges(context.Background(), []Change{
		{Path: filepath.Join(dir, "internal", "greet", "greet.go"), Type: ChangeSource},
	})

	if got := loader.calls.Load(); got != before+1 {
		t.Errorf("loader calls = %d, want %d", got, before+1)
	}
}

func TestServer_EntryChangeReloads(t *testing.T) {
	srv, loader, dir := newTestServer(t)

	before := loader.calls.Load()
	srv.handleChanges(context.Background(), []Change{
		{Path: filepath.Join(dir, "api", "handler.go"), Type: ChangeSource},
	})

	if got := loader.calls.Load(); got != before+1 {
		t.Errorf("loader calls = %d, want %d", got, before+1)
	}
}

func TestServer_FailedReloadKeepsServing(t *testing.T) {
	srv, loader, dir := newTestServer(t)
	loader.fail.Store(true)

	srv.handleChanges(context.Background(), []Change{
		{Path: filepath.Join(dir, "api", "handler.go"), Type: ChangeSource},
	})

	handler := srv.Registry().Current()
	if handler == nil {
		t.Fatal("handler dropped after failed reload")
	}
	resp, err := handler.Handle(context.Background(), &gateway.Request{Method: http.MethodGet})
	if err != nil || resp.Status != http.StatusOK {
		t.Errorf("stale handler unusable: %v %v", resp, err)
	}
}

func TestServer_AssetChangeDoesNotReload(t *testing.T) {
	srv, loader, dir := newTestServer(t)

	before := loader.calls.Load()
	srv.handleChanges(context.Background(), []Change{
		{Path: filepath.Join(dir, "styles.css"), Type: ChangeAsset},
	})

	if got := loader.calls.Load(); got != before {
		t.Errorf("loader calls = %d, want %d", got, before)
	}
}

func TestServer_ReloadEndpointUpgradesThroughRouter(t *testing.T) {
	// Dial the websocket through the full route stack. The metrics and
	// tracing wrappers must not hide the connection from the upgrader.
	srv, _, _ := newTestServer(t)

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + ReloadPath
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial: %v (status %d)", err, status)
	}
	defer conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for srv.notifier.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dev client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	srv.notifier.Reload()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg NotifyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal %q: %v", data, err)
	}
	if msg.Type != NotifyReload {
		t.Errorf("message type = %q, want %q", msg.Type, NotifyReload)
	}
}

func TestServer_BatchWithMixedChangesReloadsOnce(t *testing.T) {
	srv, loader, dir := newTestServer(t)

	before := loader.calls.Load()
	srv.handleChanges(context.Background(), []Change{
		{Path: filepath.Join(dir, "api", "handler.go"), Type: ChangeSource},
		{Path: filepath.Join(dir, "internal", "greet", "greet.go"), Type: ChangeSource},
		{Path: filepath.Join(dir, "styles.css"), Type: ChangeAsset},
	})

	if got := loader.calls.Load(); got != before+1 {
		t.Errorf("loader calls = %d, want %d (one reload per batch)", got, before+1)
	}
}

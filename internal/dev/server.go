package dev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hotbridge-dev/hotbridge/internal/config"
	bridgeerrors "github.com/hotbridge-dev/hotbridge/internal/errors"
	"github.com/hotbridge-dev/hotbridge/pkg/gateway"
	"github.com/hotbridge-dev/hotbridge/pkg/middleware"
)

// ReloadPath is the WebSocket endpoint dev clients connect to.
const ReloadPath = "/_hotbridge/reload"

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Loader overrides the handler loader. Default: PluginLoader over the
	// project directory.
	Loader gateway.Loader

	// Logger receives structured server events. Default: slog.Default().
	Logger *slog.Logger

	// OnReload is called after dev clients are notified of a swap.
	OnReload func(clients int)
}

// Server is the development server: it owns the HTTP listener, the request
// gateway, the file watcher, and the reload coordinator that ties them
// together.
type Server struct {
	config     *config.Config
	options    ServerOptions
	logger     *slog.Logger
	registry   *gateway.Registry
	bridge     *gateway.Bridge
	watcher    *Watcher
	notifier   *Notifier
	supervisor *Supervisor
	reloads    *middleware.ReloadMetrics
	httpServer *http.Server
	changeCh   chan Change
	modulePath string
	entryID    string

	mu      sync.Mutex
	running bool
}

// NewServer creates a development server from project configuration.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	projectDir := cfg.Dir()

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loader := options.Loader
	if loader == nil {
		loader = NewPluginLoader(LoaderConfig{ProjectDir: projectDir})
	}

	entryID := NodeID(cfg.EntryPath())
	registry := gateway.NewRegistry(entryID, loader)

	bridge := gateway.NewBridge(registry, gateway.BridgeConfig{
		APIPrefix:    cfg.Gateway.APIPrefix,
		MaxBodyBytes: cfg.Gateway.MaxBodyBytes,
		DefaultHost:  cfg.DevAddress(),
		Logger:       logger,
	})

	watchPaths := []string{projectDir}
	for _, p := range cfg.Dev.Watch {
		if !filepath.IsAbs(p) {
			p = filepath.Join(projectDir, p)
		}
		watchPaths = append(watchPaths, p)
	}

	watcher := NewWatcher(WatcherConfig{
		Paths:  watchPaths,
		Ignore: cfg.Dev.Ignore,
	})

	var supervisor *Supervisor
	if cfg.Backend.WSMode {
		command := cfg.Backend.Command
		if len(command) == 0 {
			command = []string{"go", "run", cfg.Entry}
		}
		supervisor = NewSupervisor(SupervisorConfig{
			Command: command,
			Port:    cfg.Backend.Port,
			Dir:     projectDir,
			Logger:  logger,
		})
	}

	modulePath, err := ReadModulePath(projectDir)
	if err != nil {
		logger.Warn("go.mod not readable; reloading on every source change", "dir", projectDir)
	}

	return &Server{
		config:     cfg,
		options:    options,
		logger:     logger,
		registry:   registry,
		bridge:     bridge,
		watcher:    watcher,
		notifier:   NewNotifier(),
		supervisor: supervisor,
		reloads:    middleware.NewReloadMetrics(),
		modulePath: modulePath,
		entryID:    entryID,
	}
}

// Registry exposes the handler registry, mainly for tests.
func (s *Server) Registry() *gateway.Registry {
	return s.registry
}

// Start runs the development server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	// Initial handler load. A failure is not fatal: requests 500 until a
	// file change produces a loadable handler.
	s.log("Loading handler from %s...", s.config.Entry)
	if _, err := s.registry.Load(ctx); err != nil {
		s.logError("Load failed: %v", err)
		s.notifier.Error(formatForClient(err))
	} else {
		s.log("Handler loaded")
	}

	if s.supervisor != nil {
		s.log("Starting backend on port %d (ws mode)...", s.config.Backend.Port)
		if err := s.supervisor.Start(); err != nil {
			s.logError("Backend start failed: %v", err)
		}
	}

	s.changeCh = make(chan Change, 64)
	s.watcher.OnChange(func(change Change) {
		select {
		case s.changeCh <- change:
		default:
		}
	})

	go s.watcher.Start(ctx)
	go s.processChanges(ctx)

	s.httpServer = &http.Server{
		Addr:    s.config.DevAddress(),
		Handler: s.routes(),
	}

	s.log("Gateway running at %s (prefix %s)", s.config.DevURL(), s.config.Gateway.APIPrefix)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		return err
	}
}

// routes builds the HTTP surface: bridge middleware over the pass-through
// chain, the dev-client websocket, and the metrics endpoint.
func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Metrics())
	router.Use(middleware.Tracing())
	router.Use(s.bridge.Middleware)
	router.Get(ReloadPath, s.notifier.HandleWebSocket)
	router.Handle("/metrics", promhttp.Handler())
	router.NotFound(s.passthrough())
	return router
}

// Stop shuts the server down: watcher, dev clients, backend, listener.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	s.watcher.Stop()
	s.notifier.Close()

	if s.supervisor != nil {
		s.supervisor.Stop()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// processChanges is the reload coordinator: a single goroutine consumes
// change events, coalesces bursts, and runs invalidation → reload →
// restart as one serialized transaction.
func (s *Server) processChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-s.changeCh:
			changes := []Change{change}
			for draining := true; draining; {
				select {
				case next := <-s.changeCh:
					changes = append(changes, next)
				default:
					draining = false
				}
			}
			s.handleChanges(ctx, changes)
		}
	}
}

// handleChanges handles one coalesced batch of file changes.
func (s *Server) handleChanges(ctx context.Context, changes []Change) {
	var source []Change
	hasAsset := false
	for _, change := range changes {
		s.log("Changed: %s", change.Path)
		switch change.Type {
		case ChangeSource:
			source = append(source, change)
		case ChangeAsset:
			hasAsset = true
		}
	}

	if len(source) > 0 {
		s.handleSourceChanges(ctx, source)
		return
	}
	if hasAsset {
		s.notifyReload()
	}
}

// handleSourceChanges decides whether the batch invalidates the active
// handler and, if so, reloads it (and restarts the backend in ws mode).
func (s *Server) handleSourceChanges(ctx context.Context, changes []Change) {
	if !s.affected(changes) {
		s.log("Change outside the handler's dependency graph, reload skipped")
		return
	}

	s.log("Reloading handler...")
	start := time.Now()
	if err := s.registry.Reload(ctx); err != nil {
		s.reloads.Failure()
		s.logError("Reload failed: %v", err)
		s.notifier.Error(formatForClient(err))
		return
	}
	s.reloads.Success()
	s.log("Reloaded in %s", time.Since(start).Round(time.Millisecond))

	if s.supervisor != nil {
		if err := s.supervisor.Restart(); err != nil {
			s.logError("Backend restart failed: %v", err)
		}
	}

	s.notifier.Clear()
	s.notifyReload()
}

// affected walks the import graph for each changed file. Without a module
// path there is no graph to walk, so every source change reloads.
func (s *Server) affected(changes []Change) bool {
	if s.modulePath == "" {
		return true
	}

	graph, err := ScanImports(s.config.Dir(), s.modulePath)
	if err != nil {
		s.logError("Import scan failed: %v", err)
		return true
	}

	for _, change := range changes {
		if gateway.IsAffected(change.Path, graph, s.entryID) {
			return true
		}
	}
	return false
}

func (s *Server) notifyReload() {
	s.notifier.Reload()
	if s.options.OnReload != nil {
		s.options.OnReload(s.notifier.ClientCount())
	}
	s.log("Notified %d dev clients", s.notifier.ClientCount())
}

// passthrough handles out-of-scope requests: a reverse proxy to the host
// app when configured, a JSON 404 otherwise. Static serving and SPA
// fallback belong to the host pipeline, not the gateway.
func (s *Server) passthrough() http.HandlerFunc {
	if s.config.Dev.Proxy == "" {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"not found"}`)
		}
	}

	target, err := url.Parse(s.config.Dev.Proxy)
	if err != nil {
		return func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid proxy target", http.StatusInternalServerError)
		}
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ModifyResponse = injectClientScript
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, upstreamDownPage, DevClientScript)
	}

	return proxy.ServeHTTP
}

// injectClientScript splices the dev client script into proxied HTML so
// pages served by the host app still receive reload notifications.
func injectClientScript(resp *http.Response) error {
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	resp.Body.Close()

	html := string(body)
	if idx := strings.LastIndex(html, "</body>"); idx != -1 {
		html = html[:idx] + DevClientScript + html[idx:]
	} else {
		html += DevClientScript
	}

	resp.Body = io.NopCloser(strings.NewReader(html))
	resp.ContentLength = int64(len(html))
	resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(html)))
	return nil
}

// formatForClient renders an error for the dev client overlay, preferring
// the coded format when available.
func formatForClient(err error) string {
	var coded *bridgeerrors.BridgeError
	if errors.As(err, &coded) {
		return coded.Format()
	}
	return err.Error()
}

// log prints a timestamped console line.
func (s *Server) log(format string, args ...any) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Printf("[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
}

// logError prints a timestamped console line to stderr in red.
func (s *Server) logError(format string, args ...any) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stderr, "[%s] \033[31m%s\033[0m\n", timestamp, fmt.Sprintf(format, args...))
}

const upstreamDownPage = `<!DOCTYPE html>
<html>
<head><title>hotbridge</title></head>
<body style="font-family: system-ui; padding: 40px; background: #1a1a1a; color: #fff;">
<h1 style="color: #ff5555;">Upstream Not Running</h1>
<p>The proxied application is not responding. It may still be starting,
or it may have crashed (check your terminal).</p>
%s
</body>
</html>`

// DevClientScript reconnects to the reload endpoint and refreshes the page
// when the handler is swapped. Injected into proxied HTML.
const DevClientScript = `
<script>
(function() {
    'use strict';
    var delay = 1000;

    function connect() {
        var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        var ws = new WebSocket(proto + '//' + location.host + '/_hotbridge/reload');

        ws.onopen = function() {
            delay = 1000;
            clearOverlay();
        };

        ws.onmessage = function(e) {
            var msg;
            try { msg = JSON.parse(e.data); } catch (err) { return; }
            if (msg.type === 'reload') location.reload();
            else if (msg.type === 'error') showOverlay(msg.error);
            else if (msg.type === 'clear') clearOverlay();
        };

        ws.onclose = function() {
            setTimeout(function() {
                delay = Math.min(delay * 2, 30000);
                connect();
            }, delay);
        };

        ws.onerror = function() { ws.close(); };
    }

    function showOverlay(text) {
        clearOverlay();
        var o = document.createElement('pre');
        o.id = 'hotbridge-error-overlay';
        o.style.cssText = 'position:fixed;inset:0;background:rgba(0,0,0,0.9);color:#ff5555;' +
            'font:14px monospace;padding:20px;overflow:auto;z-index:999999;white-space:pre-wrap;';
        o.textContent = text;
        document.body.appendChild(o);
    }

    function clearOverlay() {
        var o = document.getElementById('hotbridge-error-overlay');
        if (o) o.remove();
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
</script>
`

package dev

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
	"sync"

	"github.com/hotbridge-dev/hotbridge/internal/errors"
	"github.com/hotbridge-dev/hotbridge/pkg/gateway"
)

// HandlerSymbol is the name the entry package must export.
const HandlerSymbol = "Handler"

// LoaderConfig configures the plugin loader.
type LoaderConfig struct {
	// ProjectDir is the root directory of the project being served.
	ProjectDir string

	// PluginDir is where compiled plugins are written.
	// Default: <ProjectDir>/.hotbridge/plugins.
	PluginDir string

	// CachePath is the Go build cache directory.
	// Default: <ProjectDir>/.hotbridge/cache.
	CachePath string

	// Env are additional environment variables for go build.
	Env []string
}

// PluginLoader implements gateway.Loader by compiling the entry package
// with -buildmode=plugin and looking up its exported Handler symbol.
//
// The Go runtime refuses to re-open a plugin path it has already loaded and
// never unloads one, so each build is written to a path derived from the
// project's source hash: an unchanged project reuses the already-loaded
// handler, a changed one gets a fresh path. Superseded plugins stay mapped
// until the dev server exits.
type PluginLoader struct {
	config LoaderConfig

	mu     sync.Mutex
	loaded map[string]gateway.Handler // plugin path -> handler
}

// NewPluginLoader creates a plugin loader for the given project.
func NewPluginLoader(config LoaderConfig) *PluginLoader {
	if config.PluginDir == "" {
		config.PluginDir = filepath.Join(config.ProjectDir, ".hotbridge", "plugins")
	}
	if config.CachePath == "" {
		config.CachePath = filepath.Join(config.ProjectDir, ".hotbridge", "cache")
	}

	return &PluginLoader{
		config: config,
		loaded: make(map[string]gateway.Handler),
	}
}

// Load compiles and opens the entry module, returning its handler. Failures
// come back as *gateway.LoadError so the registry keeps the previous
// handler active.
func (l *PluginLoader) Load(ctx context.Context, module string) (gateway.Handler, error) {
	hash, err := hashProject(l.config.ProjectDir)
	if err != nil {
		return nil, loadError(module, "", errors.New("E101").Wrap(err))
	}

	pluginPath := filepath.Join(l.config.PluginDir, fmt.Sprintf("handler-%s.so", hash[:12]))

	l.mu.Lock()
	cached, ok := l.loaded[pluginPath]
	l.mu.Unlock()
	if ok {
		// Unchanged sources: the already-loaded plugin is the same
		// handler, functionally and literally.
		return cached, nil
	}

	if err := l.build(ctx, module, pluginPath); err != nil {
		return nil, err
	}

	handler, err := openHandler(module, pluginPath)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.loaded[pluginPath] = handler
	l.mu.Unlock()
	return handler, nil
}

// build compiles the entry package into a plugin at out.
func (l *PluginLoader) build(ctx context.Context, module, out string) error {
	for _, dir := range []string{filepath.Dir(out), l.config.CachePath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return loadError(module, "", errors.New("E101").Wrap(err))
		}
	}

	cmd := exec.CommandContext(ctx, "go", "build", "-buildmode=plugin", "-o", out, module)
	cmd.Dir = l.config.ProjectDir

	env := os.Environ()
	env = append(env, "GOCACHE="+l.config.CachePath)
	env = append(env, l.config.Env...)
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		return loadError(module, output, errors.New("E101").WithDetail(output).Wrap(err))
	}

	return nil
}

// openHandler opens a built plugin and extracts its Handler symbol.
func openHandler(module, pluginPath string) (gateway.Handler, error) {
	plug, err := plugin.Open(pluginPath)
	if err != nil {
		return nil, loadError(module, "", errors.New("E102").Wrap(err))
	}

	sym, err := plug.Lookup(HandlerSymbol)
	if err != nil {
		return nil, loadError(module, "", errors.New("E103").Wrap(err))
	}

	var handler gateway.Handler
	switch v := sym.(type) {
	case *gateway.Handler:
		handler = *v
	case gateway.Handler:
		handler = v
	case *gateway.HandlerFunc:
		handler = *v
	case *func(context.Context, *gateway.Request) (*gateway.Response, error):
		handler = gateway.HandlerFunc(*v)
	default:
		return nil, loadError(module, "",
			errors.New("E103").WithDetail(fmt.Sprintf("symbol %s has type %T", HandlerSymbol, sym)))
	}

	if handler == nil {
		return nil, loadError(module, "",
			errors.New("E103").WithDetail(fmt.Sprintf("symbol %s is nil", HandlerSymbol)))
	}

	return handler, nil
}

func loadError(module, output string, err error) *gateway.LoadError {
	return &gateway.LoadError{Module: module, Output: output, Err: err}
}

// hashProject hashes every non-test Go file plus go.mod/go.sum under root,
// so the plugin path changes whenever any build input does, including
// dependencies of the entry package rather than just the entry package.
func hashProject(root string) (string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if name == ".git" || name == "node_modules" || name == ".hotbridge" {
				return filepath.SkipDir
			}
			return nil
		}
		name := info.Name()
		if name == "go.mod" || name == "go.sum" ||
			(strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, path := range paths {
		io.WriteString(h, path)
		h.Write([]byte{0})
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		io.Copy(h, f)
		f.Close()
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

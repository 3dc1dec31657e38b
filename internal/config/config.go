package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hotbridge-dev/hotbridge/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "hotbridge.json"

	// DefaultPort is the default development server port.
	DefaultPort = 3000

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultAPIPrefix scopes which requests the gateway bridges.
	DefaultAPIPrefix = "/api"

	// DefaultMaxBodyBytes bounds collected request bodies: 1 MiB.
	DefaultMaxBodyBytes int64 = 1 << 20

	// DefaultBackendPort is the port the out-of-process backend binds
	// in ws mode.
	DefaultBackendPort = 3001

	// DefaultEntry is the handler entry package, relative to the
	// project root.
	DefaultEntry = "./api"
)

// Config represents the complete hotbridge.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Entry is the handler entry package (directory) the gateway loads,
	// relative to the project root.
	Entry string `json:"entry,omitempty"`

	// Gateway contains request-bridging configuration.
	Gateway GatewayConfig `json:"gateway,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty"`

	// Backend contains out-of-process backend configuration (ws mode).
	Backend BackendConfig `json:"backend,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// GatewayConfig contains request gateway settings.
type GatewayConfig struct {
	// APIPrefix scopes which request paths are bridged (default "/api").
	APIPrefix string `json:"apiPrefix,omitempty"`

	// MaxBodyBytes bounds collected request bodies in bytes. Unset means
	// the 1 MiB default; an explicit 0 rejects every request body; -1
	// disables the bound.
	MaxBodyBytes *int64 `json:"maxBodyBytes,omitempty"`
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Watch lists extra paths to watch, relative to the project root.
	Watch []string `json:"watch,omitempty"`

	// Ignore lists extra watch-ignore patterns (globs).
	Ignore []string `json:"ignore,omitempty"`

	// Proxy is an optional upstream URL that out-of-scope requests are
	// forwarded to (the host app). Empty means a JSON 404 instead.
	Proxy string `json:"proxy,omitempty"`
}

// BackendConfig contains out-of-process backend settings.
type BackendConfig struct {
	// WSMode runs the handler as a separate process bound to Port,
	// for protocols the in-process bridge cannot carry (e.g. websockets).
	WSMode bool `json:"wsMode,omitempty"`

	// Port is the fixed port the backend process binds (default 3001).
	Port int `json:"port,omitempty"`

	// Command is the command used to launch the backend; the port is
	// appended as the final argument. Default: ["go", "run", <entry>].
	Command []string `json:"command,omitempty"`
}

// Load reads configuration from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E001").WithDetail(path).Wrap(err)
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E002").Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromWorkingDir loads hotbridge.json from the current directory,
// falling back to defaults when the file does not exist.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(wd, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{configPath: path}
		cfg.applyDefaults()
		return cfg, nil
	}

	return Load(path)
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Entry == "" {
		c.Entry = DefaultEntry
	}
	if c.Gateway.APIPrefix == "" {
		c.Gateway.APIPrefix = DefaultAPIPrefix
	}
	// Gateway.MaxBodyBytes stays nil when unset: the bridge applies the
	// default, and an explicit 0 survives as a reject-all-bodies bound.
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = DefaultBackendPort
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Gateway.APIPrefix, "/") {
		return errors.New("E003").WithDetail(fmt.Sprintf("apiPrefix %q must start with '/'", c.Gateway.APIPrefix))
	}
	if c.Gateway.MaxBodyBytes != nil && *c.Gateway.MaxBodyBytes < -1 {
		return errors.New("E003").WithDetail(fmt.Sprintf("maxBodyBytes %d is negative", *c.Gateway.MaxBodyBytes))
	}
	if c.Dev.Port < 1 || c.Dev.Port > 65535 {
		return errors.New("E003").WithDetail(fmt.Sprintf("dev.port %d out of range", c.Dev.Port))
	}
	if c.Backend.Port < 1 || c.Backend.Port > 65535 {
		return errors.New("E003").WithDetail(fmt.Sprintf("backend.port %d out of range", c.Backend.Port))
	}
	return nil
}

// Dir returns the project root directory.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

// EntryPath returns the absolute path of the handler entry package.
func (c *Config) EntryPath() string {
	if filepath.IsAbs(c.Entry) {
		return filepath.Clean(c.Entry)
	}
	return filepath.Join(c.Dir(), c.Entry)
}

// DevAddress returns the dev server listen address.
func (c *Config) DevAddress() string {
	return fmt.Sprintf("%s:%d", c.Dev.Host, c.Dev.Port)
}

// DevURL returns the dev server URL.
func (c *Config) DevURL() string {
	return fmt.Sprintf("http://%s", c.DevAddress())
}

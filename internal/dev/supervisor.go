package dev

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/hotbridge-dev/hotbridge/internal/errors"
)

// SupervisorState is the backend process lifecycle state.
type SupervisorState int

const (
	StateStopped SupervisorState = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the state name.
func (s SupervisorState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// SupervisorConfig configures the backend process supervisor.
type SupervisorConfig struct {
	// Command is the argv used to launch the backend. The backend port
	// is appended as the final argument.
	Command []string

	// Port is the fixed port the backend binds.
	Port int

	// Dir is the working directory for the backend process.
	Dir string

	// Env are additional environment variables.
	Env []string

	// Logger receives supervisor events. Default: slog.Default().
	Logger *slog.Logger
}

// backendHandle pairs a spawned process with the generation that spawned
// it. Handles are replaced wholesale on restart, never mutated, so an exit
// notification from a superseded generation can never mark the current
// process stopped.
type backendHandle struct {
	proc *processHandle
	gen  uint64
}

// Supervisor runs the handler as a long-lived child process bound to a
// fixed port (ws mode). Start, Restart, and Stop serialize behind one
// mutex: two spawns never overlap on the same port.
type Supervisor struct {
	config SupervisorConfig
	logger *slog.Logger

	mu     sync.Mutex
	state  SupervisorState
	handle *backendHandle
	gen    uint64
}

// NewSupervisor creates a supervisor. It does not spawn anything.
func NewSupervisor(config SupervisorConfig) *Supervisor {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		config: config,
		logger: logger,
		state:  StateStopped,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the generation counter of the current handle, zero
// when stopped.
func (s *Supervisor) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.handle.gen
}

// Start spawns the backend process. Spawn success is not readiness: the
// backend may refuse connections for a moment after Start returns. Calling
// Start while a process is already running is a no-op.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return nil
	}
	return s.startLocked()
}

// Restart signals the previous process to terminate (fire-and-forget) and
// immediately spawns a fresh one. Serialized with Start and Stop.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.state = StateStopping
		s.handle.proc.signalStop()
		s.handle = nil
		s.state = StateStopped
	}

	return s.startLocked()
}

// Stop signals the backend to terminate and returns without waiting for
// exit confirmation.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}

	s.state = StateStopping
	s.handle.proc.signalStop()
	s.handle = nil
	s.state = StateStopped
	s.logger.Info("backend stopped", "port", s.config.Port)
}

// startLocked spawns a new generation. Callers hold s.mu.
func (s *Supervisor) startLocked() error {
	if len(s.config.Command) == 0 {
		s.state = StateStopped
		return errors.New("E141").WithDetail("backend command is empty")
	}

	s.state = StateStarting

	argv := append(append([]string{}, s.config.Command...), strconv.Itoa(s.config.Port))
	env := append(os.Environ(), s.config.Env...)

	proc, err := startProcess(argv[0], argv[1:], s.config.Dir, env)
	if err != nil {
		s.state = StateStopped
		return errors.New("E141").WithDetail(strconv.Quote(argv[0])).Wrap(err)
	}

	s.gen++
	handle := &backendHandle{proc: proc, gen: s.gen}
	s.handle = handle
	s.state = StateRunning
	s.logger.Info("backend started", "port", s.config.Port, "generation", handle.gen)

	go s.watch(handle)
	return nil
}

// watch reaps one generation's process. The handle comparison fences out
// stale exits: if a restart already superseded this handle, the exit
// belongs to the old generation and the current state is left alone.
func (s *Supervisor) watch(handle *backendHandle) {
	err := handle.proc.wait()

	s.mu.Lock()
	if s.handle != handle {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	s.state = StateStopped
	s.mu.Unlock()

	if err != nil {
		// Unexpected exit while Running. Logged, not fatal; the slot
		// stays stopped until the next file-driven restart.
		s.logger.Error(errors.New("E142").Wrap(err).Error(),
			"port", s.config.Port, "generation", handle.gen)
	} else {
		s.logger.Info("backend exited", "port", s.config.Port, "generation", handle.gen)
	}
}

//go:build !windows

package dev

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// processHandle owns one spawned backend process. Handles are replaced,
// never reused: a superseded handle only ever gets signaled, not restarted.
type processHandle struct {
	cmd  *exec.Cmd
	pgid int
}

// startProcess spawns a child in its own process group so termination
// reaches any grandchildren too.
func startProcess(name string, args []string, dir string, env []string) (*processHandle, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &processHandle{cmd: cmd}
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		h.pgid = pgid
	}
	return h, nil
}

// signalStop asks the process group to terminate and returns immediately.
// A detached timer escalates to SIGKILL if the group lingers; signaling an
// already-gone group is a harmless ESRCH.
func (h *processHandle) signalStop() {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}

	if h.pgid > 0 {
		syscall.Kill(-h.pgid, syscall.SIGTERM)
	} else {
		h.cmd.Process.Signal(syscall.SIGTERM)
	}

	pgid := h.pgid
	proc := h.cmd.Process
	go func() {
		time.Sleep(5 * time.Second)
		if pgid > 0 {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			proc.Kill()
		}
	}()
}

// wait blocks until the process exits. Call at most once.
func (h *processHandle) wait() error {
	return h.cmd.Wait()
}

//go:build windows

package dev

import (
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// processHandle owns one spawned backend process. Handles are replaced,
// never reused: a superseded handle only ever gets signaled, not restarted.
type processHandle struct {
	cmd *exec.Cmd
	job windows.Handle
}

// startProcess spawns a child inside a kill-on-close job object so
// termination reaches any grandchildren too.
func startProcess(name string, args []string, dir string, env []string) (*processHandle, error) {
	job, err := createJobObject()
	if err != nil {
		job = 0
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}

	if err := cmd.Start(); err != nil {
		if job != 0 {
			windows.CloseHandle(job)
		}
		return nil, err
	}

	if job != 0 {
		if err := assignProcessToJob(job, cmd.Process.Pid); err != nil {
			windows.CloseHandle(job)
			job = 0
		}
	}

	return &processHandle{cmd: cmd, job: job}, nil
}

// signalStop terminates the process tree and returns immediately.
func (h *processHandle) signalStop() {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}

	if h.job != 0 {
		windows.CloseHandle(h.job)
		h.job = 0
		return
	}
	h.cmd.Process.Kill()
}

// wait blocks until the process exits. Call at most once.
func (h *processHandle) wait() error {
	return h.cmd.Wait()
}

func createJobObject() (windows.Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, err
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{}
	info.BasicLimitInformation.LimitFlags = windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
	_, err = windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		windows.CloseHandle(job)
		return 0, err
	}

	return job, nil
}

func assignProcessToJob(job windows.Handle, pid int) error {
	handle, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)

	return windows.AssignProcessToJobObject(job, handle)
}

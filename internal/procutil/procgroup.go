// Package procutil provides process-group lifecycle helpers for supervising
// a single child process whose descendants must all receive the same signal.
package procutil

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Detach configures cmd to start in a new process group so that signals
// delivered to the group reach the child and anything it forks, without
// also landing on the supervisor itself.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SignalGroup delivers sig to the process group headed by pid. Callers pass
// the child's own pid; the group id is always the pid when Detach was used
// to start it, because Setpgid with Pgid==0 makes the child its own group
// leader.
func SignalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("procutil: invalid pid %d", pid)
	}
	if err := unix.Kill(-pid, sig); err != nil {
		return fmt.Errorf("procutil: signal group %d with %s: %w", pid, sig, err)
	}
	return nil
}

// Interrupt sends SIGINT to the process group, the signal ghci treats as an
// evaluation interrupt.
func Interrupt(pid int) error {
	return SignalGroup(pid, syscall.SIGINT)
}

// Kill sends SIGKILL to the process group, for use after graceful shutdown
// has timed out.
func Kill(pid int) error {
	return SignalGroup(pid, syscall.SIGKILL)
}

// Package job models the processes spawned for a command line and the jobs
// they are grouped into.
package job

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Sys is the operating system surface processes are reaped and signalled
// through.
type Sys interface {
	// Wait4 waits for a state change of pid, or any child when pid is -1.
	Wait4(pid int, options int) (int, unix.WaitStatus, error)
	// Kill sends sig to pid, or to a process group when pid is negative.
	Kill(pid int, sig unix.Signal) error
}

// OS implements Sys with real system calls.
type OS struct{}

var _ Sys = OS{}

// Wait4 implements Sys.Wait4.
func (OS) Wait4(pid int, options int) (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(pid, &ws, options, nil)
	return wpid, ws, err
}

// Kill implements Sys.Kill.
func (OS) Kill(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

// Status is the state of a process.
type Status int

const (
	Running Status = iota
	Stopped
	Completed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Completed:
		return "Completed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Kind tells builtins, which run inside the shell, apart from external
// programs.
type Kind int

const (
	Builtin Kind = iota
	External
)

// SignalOffset is added to a signal number to form the status of a process
// stopped or killed by that signal.
const SignalOffset = 128

// Process is one unit of work in a job.
type Process struct {
	Kind Kind
	Argv []string
	// PID is 0 for builtins.
	PID    int
	Status Status

	code    int
	hasCode bool
}

// NewBuiltin wraps the exit code of a builtin that already ran.
func NewBuiltin(argv []string, code int) Process {
	return Process{
		Kind:    Builtin,
		Argv:    argv,
		Status:  Completed,
		code:    code,
		hasCode: true,
	}
}

// NewExternal tracks a started program.
func NewExternal(argv []string, pid int) Process {
	return Process{
		Kind:   External,
		Argv:   argv,
		PID:    pid,
		Status: Running,
	}
}

// ExitCode returns the exit status of the process and whether it has one.
// Stopped processes report 128 + the stop signal.
func (p *Process) ExitCode() (int, bool) {
	return p.code, p.hasCode
}

// Update applies the result of a wait call to the process.
func (p *Process) Update(ws unix.WaitStatus) {
	switch {
	case ws.Exited():
		p.Status = Completed
		p.code, p.hasCode = ws.ExitStatus(), true
	case ws.Signaled():
		p.Status = Completed
		p.code, p.hasCode = SignalOffset+int(ws.Signal()), true
	case ws.Stopped():
		p.Status = Stopped
		p.code, p.hasCode = SignalOffset+int(ws.StopSignal()), true
	case ws.Continued():
		p.Status = Running
		p.hasCode = false
	}
}

// Wait blocks until the process stops or completes.
func (p *Process) Wait(sys Sys) error {
	if p.PID == 0 || p.Status != Running {
		return nil
	}

	for {
		pid, ws, err := sys.Wait4(p.PID, unix.WUNTRACED)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return errors.Wrapf(err, "waitpid %d", p.PID)
		case pid != p.PID:
			continue
		}

		p.Update(ws)
		if p.Status != Running {
			return nil
		}
	}
}

// Kill sends SIGTERM to the process.
func (p *Process) Kill(sys Sys) error {
	if p.PID == 0 || p.Status == Completed {
		return nil
	}
	return errors.Wrapf(sys.Kill(p.PID, unix.SIGTERM), "kill %d", p.PID)
}

func (p *Process) String() string {
	return strings.Join(p.Argv, " ")
}

// NormalizeExitCode wraps n into the 0-255 range an exit status can hold.
func NormalizeExitCode(n int) int {
	return ((n % 256) + 256) % 256
}

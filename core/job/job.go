package job

import (
	"fmt"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ID identifies a job within a session. IDs start at 1 and aren't reused.
type ID int

// ProcessGroup is the result of spawning one command line.
type ProcessGroup struct {
	// PGID is 0 when no external program was started.
	PGID       int
	Processes  []Process
	Foreground bool
}

// Job is a command line tracked for job control.
type Job struct {
	ID         ID
	Input      string
	PGID       int
	Processes  []Process
	LastStatus int

	LastRunningInForeground bool
	NotifiedStopped         bool

	// Modes holds the terminal modes to restore when the job is resumed.
	Modes *term.State
}

// New creates a job for a spawned process group. The initial status is the
// code of the last process that already has one.
func New(id ID, input string, pg ProcessGroup, modes *term.State) *Job {
	j := &Job{
		ID:                      id,
		Input:                   input,
		PGID:                    pg.PGID,
		Processes:               pg.Processes,
		LastRunningInForeground: pg.Foreground,
		Modes:                   modes,
	}

	for i := len(j.Processes) - 1; i >= 0; i-- {
		if code, ok := j.Processes[i].ExitCode(); ok {
			j.LastStatus = code
			break
		}
	}

	return j
}

// Status derives the job state from its processes.
func (j *Job) Status() Status {
	switch {
	case j.Completed():
		return Completed
	case j.Stopped():
		return Stopped
	default:
		return Running
	}
}

// Completed reports whether every process completed.
func (j *Job) Completed() bool {
	for _, p := range j.Processes {
		if p.Status != Completed {
			return false
		}
	}
	return true
}

// Stopped reports whether every process is stopped.
func (j *Job) Stopped() bool {
	if len(j.Processes) == 0 {
		return false
	}
	for _, p := range j.Processes {
		if p.Status != Stopped {
			return false
		}
	}
	return true
}

// Process returns the process with the given pid, or nil.
func (j *Job) Process(pid int) *Process {
	if pid == 0 {
		return nil
	}
	for i := range j.Processes {
		if j.Processes[i].PID == pid {
			return &j.Processes[i]
		}
	}
	return nil
}

// Mark records a state change of one of the job's processes. It returns
// false if the pid doesn't belong to the job.
//
// LastStatus follows the trailing process once it has a code, so a pipeline
// reports its last command like bash. Until then it tracks the most recently
// updated process.
func (j *Job) Mark(pid int, ws unix.WaitStatus) bool {
	proc := j.Process(pid)
	if proc == nil {
		return false
	}
	proc.Update(ws)

	code, ok := proc.ExitCode()
	if last := &j.Processes[len(j.Processes)-1]; last != proc {
		if lastCode, lastOK := last.ExitCode(); lastOK {
			code, ok = lastCode, true
		}
	}
	if ok {
		j.LastStatus = code
	}
	return true
}

// Continued marks every stopped process as running again.
func (j *Job) Continued() {
	for i := range j.Processes {
		if p := &j.Processes[i]; p.Status == Stopped {
			p.Status = Running
			p.hasCode = false
		}
	}
	j.NotifiedStopped = false
}

// PIDs lists the pids of processes that haven't completed.
func (j *Job) PIDs() []int {
	var out []int
	for _, p := range j.Processes {
		if p.PID != 0 && p.Status != Completed {
			out = append(out, p.PID)
		}
	}
	return out
}

func (j *Job) String() string {
	return fmt.Sprintf("[%d] %s\t%s", j.ID, j.Status(), j.Input)
}

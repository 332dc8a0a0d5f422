// Package jobcontrol tracks the jobs of a shell session and moves them
// between the foreground and background.
package jobcontrol

import (
	"fmt"
	"io"
	"strconv"

	"github.com/josephlewis42/bsh/core/job"
	"github.com/josephlewis42/bsh/core/shellerr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Config holds the collaborators of a Manager.
type Config struct {
	Sys job.Sys
	// Terminal is nil when the shell has no job control.
	Terminal Terminal
	// ShellPGID is the process group the terminal is returned to.
	ShellPGID int
	// Out receives job notifications.
	Out io.Writer
}

// Manager owns the job table of a shell.
type Manager struct {
	sys       job.Sys
	terminal  Terminal
	shellPGID int
	out       io.Writer

	jobs    []*job.Job
	lastID  job.ID
	current job.ID

	// removed holds pids of killed jobs that haven't been reaped yet.
	removed map[int]bool
}

// NewManager creates an empty job table.
func NewManager(cfg Config) *Manager {
	sys := cfg.Sys
	if sys == nil {
		sys = job.OS{}
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	return &Manager{
		sys:       sys,
		terminal:  cfg.Terminal,
		shellPGID: cfg.ShellPGID,
		out:       out,
		removed:   make(map[int]bool),
	}
}

// JobControl reports whether the manager can move jobs between the
// foreground and background.
func (m *Manager) JobControl() bool {
	return m.terminal != nil
}

// CreateJob registers a spawned process group and returns its ID.
func (m *Manager) CreateJob(input string, pg job.ProcessGroup) job.ID {
	m.lastID++
	id := m.lastID

	j := job.New(id, input, pg, m.snapshotModes())
	m.jobs = append(m.jobs, j)

	log.WithFields(logrus.Fields{"job": id, "pgid": pg.PGID, "processes": len(pg.Processes)}).Debug("created job")
	return id
}

func (m *Manager) snapshotModes() *term.State {
	if m.terminal == nil {
		return nil
	}
	modes, err := m.terminal.Modes()
	if err != nil {
		log.WithError(err).Debug("couldn't snapshot terminal modes")
		return nil
	}
	return modes
}

// Jobs returns copies of the tracked jobs in creation order.
func (m *Manager) Jobs() []job.Job {
	out := make([]job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		cp.Processes = append([]job.Process(nil), j.Processes...)
		out = append(out, cp)
	}
	return out
}

// Job returns a copy of the job with the given ID.
func (m *Manager) Job(id job.ID) (job.Job, bool) {
	j := m.find(id)
	if j == nil {
		return job.Job{}, false
	}
	cp := *j
	cp.Processes = append([]job.Process(nil), j.Processes...)
	return cp, true
}

// HasStoppedJobs reports whether any job is stopped.
func (m *Manager) HasStoppedJobs() bool {
	for _, j := range m.jobs {
		if j.Stopped() {
			return true
		}
	}
	return false
}

// CurrentJob returns the job builtins act on when no job is named, 0 if
// there is none.
func (m *Manager) CurrentJob() job.ID {
	if m.find(m.current) != nil {
		return m.current
	}
	if len(m.jobs) > 0 {
		return m.jobs[len(m.jobs)-1].ID
	}
	return 0
}

func (m *Manager) find(id job.ID) *job.Job {
	for _, j := range m.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// resolve looks up id, falling back to the current job when id is 0.
func (m *Manager) resolve(id job.ID) (*job.Job, error) {
	spec := "current"
	if id == 0 {
		id = m.CurrentJob()
	} else {
		spec = "%" + strconv.Itoa(int(id))
	}

	if j := m.find(id); j != nil {
		return j, nil
	}
	return nil, &shellerr.NoSuchJobError{Job: spec}
}

// WaitForJob blocks until the job stops or completes and returns its status.
// Every child that changes state meanwhile is recorded against its own job.
func (m *Manager) WaitForJob(id job.ID) (int, error) {
	j := m.find(id)
	if j == nil {
		panic(fmt.Sprintf("waiting for job %d which isn't in the table", id))
	}

	for !j.Stopped() && !j.Completed() {
		pid, ws, err := m.sys.Wait4(-1, unix.WUNTRACED)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return j.LastStatus, errors.Wrapf(err, "waiting for job %d", id)
		}
		m.markProcessStatus(pid, ws)
	}

	return j.LastStatus, nil
}

// markProcessStatus routes a wait result to the job owning pid.
func (m *Manager) markProcessStatus(pid int, ws unix.WaitStatus) {
	for _, j := range m.jobs {
		if !j.Mark(pid, ws) {
			continue
		}

		logger := log.WithFields(logrus.Fields{"job": j.ID, "pid": pid})
		if j.Stopped() {
			logger.Debug("job stopped")
			m.current = j.ID
		} else if j.Completed() {
			logger.Debug("job completed")
		}
		return
	}

	if m.removed[pid] {
		if !ws.Stopped() && !ws.Continued() {
			delete(m.removed, pid)
		}
		return
	}

	panic(fmt.Sprintf("wait reported pid %d which belongs to no job", pid))
}

// PutJobInForeground gives the terminal to a job, optionally continues it,
// and waits for it to stop or complete. An id of 0 selects the current job.
func (m *Manager) PutJobInForeground(id job.ID, cont bool) (int, error) {
	if !m.JobControl() {
		return 0, shellerr.ErrNoJobControl
	}
	j, err := m.resolve(id)
	if err != nil {
		return 0, err
	}

	log.WithFields(logrus.Fields{"job": j.ID, "continue": cont}).Debug("putting job in foreground")
	j.LastRunningInForeground = true
	m.current = j.ID

	// A finished job's group may have been reaped already.
	if j.Completed() {
		return j.LastStatus, nil
	}

	if j.PGID != 0 {
		guard, err := AcquireTerminal(m.terminal, m.shellPGID, j.PGID)
		if err != nil {
			return 0, err
		}
		defer guard.Release()
	}

	if cont {
		if err := m.terminal.SetModes(j.Modes); err != nil {
			log.WithError(err).Warn("couldn't restore job terminal modes")
		}
		if err := m.continueJob(j); err != nil {
			return 0, err
		}
	}

	code, err := m.WaitForJob(j.ID)
	if j.Stopped() {
		if modes, modesErr := m.terminal.Modes(); modesErr == nil {
			j.Modes = modes
		}
	}
	return code, err
}

// PutJobInBackground optionally continues a job without waiting for it and
// makes it the current job. An id of 0 selects the current job.
func (m *Manager) PutJobInBackground(id job.ID, cont bool) error {
	if !m.JobControl() {
		return shellerr.ErrNoJobControl
	}
	j, err := m.resolve(id)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"job": j.ID, "continue": cont}).Debug("putting job in background")
	j.LastRunningInForeground = false
	m.current = j.ID

	if cont {
		return m.continueJob(j)
	}
	return nil
}

func (m *Manager) continueJob(j *job.Job) error {
	if j.PGID == 0 {
		return nil
	}
	if err := m.sys.Kill(-j.PGID, unix.SIGCONT); err != nil && !errors.Is(err, unix.ESRCH) {
		return errors.Wrapf(err, "continuing job %d", j.ID)
	}
	j.Continued()
	return nil
}

// KillJob terminates a job's process group and drops it from the table. The
// removed job is returned, or nil if there was no such job.
func (m *Manager) KillJob(id job.ID) (*job.Job, error) {
	j := m.find(id)
	if j == nil {
		return nil, nil
	}

	if j.PGID != 0 && !j.Completed() {
		if err := m.sys.Kill(-j.PGID, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			return nil, errors.Wrapf(err, "killing job %d", id)
		}
		// Stopped processes only act on SIGTERM once continued.
		if err := m.sys.Kill(-j.PGID, unix.SIGCONT); err != nil && !errors.Is(err, unix.ESRCH) {
			log.WithError(err).WithField("job", id).Warn("couldn't continue killed job")
		}
	}

	for _, pid := range j.PIDs() {
		m.removed[pid] = true
	}
	m.remove(id)

	log.WithField("job", id).Debug("killed job")
	return j, nil
}

func (m *Manager) remove(id job.ID) {
	kept := m.jobs[:0]
	for _, j := range m.jobs {
		if j.ID != id {
			kept = append(kept, j)
		}
	}
	m.jobs = kept
}

// UpdateJobStatuses records every state change that is available without
// blocking.
func (m *Manager) UpdateJobStatuses() error {
	for {
		pid, ws, err := m.sys.Wait4(-1, unix.WNOHANG|unix.WUNTRACED)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return nil
		case err != nil:
			return errors.Wrap(err, "waitpid")
		case pid <= 0:
			return nil
		}
		m.markProcessStatus(pid, ws)
	}
}

// DoJobNotification reports background jobs that completed and jobs that
// stopped since the last call, then forgets completed jobs.
func (m *Manager) DoJobNotification() {
	if err := m.UpdateJobStatuses(); err != nil {
		log.WithError(err).Warn("couldn't update job statuses")
	}

	kept := m.jobs[:0]
	for _, j := range m.jobs {
		switch {
		case j.Completed():
			if !j.LastRunningInForeground {
				fmt.Fprintln(m.out, j)
			}
			continue
		case j.Stopped() && !j.NotifiedStopped:
			fmt.Fprintln(m.out, j)
			j.NotifiedStopped = true
		}
		kept = append(kept, j)
	}
	m.jobs = kept
}

// Prune forgets completed jobs without reporting them.
func (m *Manager) Prune() {
	kept := m.jobs[:0]
	for _, j := range m.jobs {
		if !j.Completed() {
			kept = append(kept, j)
		}
	}
	m.jobs = kept
}

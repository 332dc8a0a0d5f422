package jobcontrol

import (
	"bytes"
	"testing"

	"github.com/josephlewis42/bsh/core/job"
	"github.com/josephlewis42/bsh/core/shellerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const shellPGID = 1000

func external(foreground bool, argv []string, pids ...int) job.ProcessGroup {
	pg := job.ProcessGroup{PGID: pids[0], Foreground: foreground}
	for _, pid := range pids {
		pg.Processes = append(pg.Processes, job.NewExternal(argv, pid))
	}
	return pg
}

func newTestManager(interactive bool) (*Manager, *fakeSys, *fakeTerminal, *bytes.Buffer) {
	sys := &fakeSys{}
	tty := &fakeTerminal{foreground: shellPGID}
	out := &bytes.Buffer{}

	cfg := Config{Sys: sys, ShellPGID: shellPGID, Out: out}
	if interactive {
		cfg.Terminal = tty
	}
	return NewManager(cfg), sys, tty, out
}

func TestCreateJobIDs(t *testing.T) {
	m, _, _, _ := newTestManager(false)

	assert.Equal(t, job.ID(1), m.CreateJob("a", external(true, []string{"a"}, 10)))
	assert.Equal(t, job.ID(2), m.CreateJob("b", external(true, []string{"b"}, 20)))

	_, err := m.KillJob(2)
	require.NoError(t, err)
	assert.Equal(t, job.ID(3), m.CreateJob("c", external(true, []string{"c"}, 30)), "ids aren't reused")
}

func TestWaitForJob(t *testing.T) {
	m, sys, _, _ := newTestManager(false)
	id := m.CreateJob("grep needle", external(true, []string{"grep", "needle"}, 10))

	j, _ := m.Job(id)
	assert.Equal(t, job.Running, j.Status())

	sys.results = []waitResult{{10, exited(1)}}
	code, err := m.WaitForJob(id)
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	j, _ = m.Job(id)
	assert.Equal(t, job.Completed, j.Status())
}

func TestWaitForJobBuiltinOnly(t *testing.T) {
	m, sys, _, _ := newTestManager(false)
	pg := job.ProcessGroup{Processes: []job.Process{job.NewBuiltin([]string{"cd"}, 0)}, Foreground: true}
	id := m.CreateJob("cd", pg)

	code, err := m.WaitForJob(id)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, 0, sys.waits, "completed jobs don't block")
}

func TestWaitForJobReapsOtherJobs(t *testing.T) {
	m, sys, _, out := newTestManager(true)
	bg := m.CreateJob("sleep 1 &", external(false, []string{"sleep", "1"}, 10))
	fg := m.CreateJob("false", external(true, []string{"false"}, 20))

	sys.results = []waitResult{{10, exited(0)}, {20, exited(1)}}
	code, err := m.WaitForJob(fg)
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	j, _ := m.Job(bg)
	assert.Equal(t, job.Completed, j.Status())

	m.DoJobNotification()
	assert.Equal(t, "[1] Completed\tsleep 1 &\n", out.String())
	assert.Empty(t, m.Jobs())

	out.Reset()
	m.DoJobNotification()
	assert.Empty(t, out.String())
}

func TestDoJobNotificationBackground(t *testing.T) {
	m, sys, _, out := newTestManager(true)
	m.CreateJob("sleep 1 &", external(false, []string{"sleep", "1"}, 10))

	m.DoJobNotification()
	assert.Empty(t, out.String(), "running jobs aren't reported")
	assert.Len(t, m.Jobs(), 1)

	sys.results = []waitResult{{10, exited(0)}}
	m.DoJobNotification()
	assert.Equal(t, "[1] Completed\tsleep 1 &\n", out.String())

	out.Reset()
	m.DoJobNotification()
	assert.Empty(t, out.String(), "completed jobs are reported once")
}

func TestDoJobNotificationStopped(t *testing.T) {
	m, sys, tty, out := newTestManager(true)
	id := m.CreateJob("sleep 10", external(true, []string{"sleep", "10"}, 10))

	sys.results = []waitResult{{10, stopped(unix.SIGTSTP)}}
	code, err := m.PutJobInForeground(id, false)
	require.NoError(t, err)
	assert.Equal(t, 148, code)
	assert.Equal(t, []int{10, shellPGID}, tty.handoffs)

	m.DoJobNotification()
	assert.Equal(t, "[1] Stopped\tsleep 10\n", out.String(), "stops are reported even for foreground jobs")

	out.Reset()
	m.DoJobNotification()
	assert.Empty(t, out.String())
	assert.True(t, m.HasStoppedJobs())
	assert.Equal(t, id, m.CurrentJob())
}

func TestPutJobInForegroundContinue(t *testing.T) {
	m, sys, tty, out := newTestManager(true)
	id := m.CreateJob("vi", external(true, []string{"vi"}, 10, 11))

	sys.results = []waitResult{{10, stopped(unix.SIGTSTP)}, {11, stopped(unix.SIGTSTP)}}
	_, err := m.PutJobInForeground(id, false)
	require.NoError(t, err)
	m.DoJobNotification()
	assert.Equal(t, "[1] Stopped\tvi\n", out.String())

	sys.results = []waitResult{{10, exited(0)}, {11, exited(0)}}
	code, err := m.PutJobInForeground(0, true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Equal(t, []killCall{{-10, unix.SIGCONT}}, sys.kills)
	assert.Equal(t, []int{10, shellPGID, 10, shellPGID}, tty.handoffs)
	assert.Equal(t, shellPGID, tty.foreground)
	assert.NotZero(t, tty.restored)

	out.Reset()
	m.DoJobNotification()
	assert.Empty(t, out.String(), "foreground completions aren't reported")
}

func TestPutJobInForegroundCompletedJob(t *testing.T) {
	m, sys, tty, _ := newTestManager(true)

	// `true && cd /tmp`: the first leg was reaped while the line was spawned.
	reaped := job.NewExternal([]string{"true"}, 10)
	reaped.Update(exited(0))
	pg := job.ProcessGroup{
		PGID:       10,
		Processes:  []job.Process{reaped, job.NewBuiltin([]string{"cd", "/tmp"}, 3)},
		Foreground: true,
	}
	id := m.CreateJob("true && cd /tmp", pg)

	code, err := m.PutJobInForeground(id, false)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Empty(t, tty.handoffs, "a reaped group never gets the terminal")
	assert.Zero(t, sys.waits)
}

func TestPutJobInBackground(t *testing.T) {
	m, sys, _, out := newTestManager(true)
	id := m.CreateJob("sleep 10", external(true, []string{"sleep", "10"}, 10))

	sys.results = []waitResult{{10, stopped(unix.SIGTSTP)}}
	_, err := m.PutJobInForeground(id, false)
	require.NoError(t, err)
	m.DoJobNotification()

	require.NoError(t, m.PutJobInBackground(0, true))
	assert.Equal(t, []killCall{{-10, unix.SIGCONT}}, sys.kills)

	j, _ := m.Job(id)
	assert.Equal(t, job.Running, j.Status())
	assert.False(t, j.LastRunningInForeground)

	out.Reset()
	sys.results = []waitResult{{10, exited(0)}}
	m.DoJobNotification()
	assert.Equal(t, "[1] Completed\tsleep 10\n", out.String())
}

func TestJobControlErrors(t *testing.T) {
	m, _, _, _ := newTestManager(false)
	_, err := m.PutJobInForeground(0, false)
	assert.Equal(t, shellerr.ErrNoJobControl, err)
	assert.Equal(t, shellerr.ErrNoJobControl, m.PutJobInBackground(0, false))

	m, _, _, _ = newTestManager(true)
	_, err = m.PutJobInForeground(3, true)
	assert.True(t, shellerr.IsNoSuchJob(err))
	assert.True(t, shellerr.IsNoSuchJob(m.PutJobInBackground(0, true)))
}

func TestKillJob(t *testing.T) {
	m, sys, _, _ := newTestManager(true)
	id := m.CreateJob("sleep 10 &", external(false, []string{"sleep", "10"}, 10))

	killed, err := m.KillJob(id)
	require.NoError(t, err)
	require.NotNil(t, killed)
	assert.Equal(t, "sleep 10 &", killed.Input)
	assert.Equal(t, []killCall{{-10, unix.SIGTERM}, {-10, unix.SIGCONT}}, sys.kills)
	assert.Empty(t, m.Jobs())

	killed, err = m.KillJob(id)
	assert.NoError(t, err)
	assert.Nil(t, killed, "second kill finds no job")

	// Reaping the killed process later is silent.
	sys.results = []waitResult{{10, signaled(unix.SIGTERM)}}
	assert.NotPanics(t, func() { require.NoError(t, m.UpdateJobStatuses()) })
}

func TestUnknownPidPanics(t *testing.T) {
	m, sys, _, _ := newTestManager(false)
	m.CreateJob("sleep 1", external(true, []string{"sleep", "1"}, 10))

	sys.results = []waitResult{{99, exited(0)}}
	assert.Panics(t, func() { _ = m.UpdateJobStatuses() })
}

func TestSingleProcessJobCompletesOnce(t *testing.T) {
	m, sys, _, out := newTestManager(true)
	id := m.CreateJob("true &", external(false, []string{"true"}, 10))

	var transitions []job.Status
	last := job.Running
	sys.results = []waitResult{{10, exited(0)}}
	for i := 0; i < 3; i++ {
		require.NoError(t, m.UpdateJobStatuses())
		j, ok := m.Job(id)
		require.True(t, ok)
		if s := j.Status(); s != last {
			transitions = append(transitions, s)
			last = s
		}
	}

	assert.Equal(t, []job.Status{job.Completed}, transitions)
	m.DoJobNotification()
	assert.Equal(t, "[1] Completed\ttrue &\n", out.String())
}

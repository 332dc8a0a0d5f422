package execute

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/josephlewis42/bsh/core/ast"
	"github.com/josephlewis42/bsh/core/env"
	"github.com/josephlewis42/bsh/core/ir"
	"github.com/josephlewis42/bsh/core/jobcontrol"
	"github.com/josephlewis42/bsh/core/shellerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

type testBuiltins map[string]func(args []string, stdout io.Writer) int

func (b testBuiltins) IsBuiltin(name string) bool {
	_, ok := b[name]
	return ok
}

func (b testBuiltins) RunBuiltin(name string, args []string, stdout, stderr io.Writer) int {
	return b[name](args, stdout)
}

// fakeTerminal records hand-offs. Its descriptor is invalid so only tests
// that never start a foreground child may use it.
type fakeTerminal struct {
	handoffs []int
}

func (f *fakeTerminal) Foreground() (int, error) { return 0, nil }
func (f *fakeTerminal) Modes() (*term.State, error) { return &term.State{}, nil }
func (f *fakeTerminal) SetModes(*term.State) error { return nil }
func (f *fakeTerminal) Fd() int { return -1 }
func (f *fakeTerminal) SetForeground(pgid int) error {
	f.handoffs = append(f.handoffs, pgid)
	return nil
}

type harness struct {
	t       *testing.T
	dir     string
	stdout  *os.File
	stderr  *os.File
	spawner *Spawner
	jobs    *jobcontrol.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	t.Cleanup(func() {
		stdout.Close()
		stderr.Close()
	})

	builtins := testBuiltins{
		"say": func(args []string, stdout io.Writer) int {
			fmt.Fprintln(stdout, args[1])
			return 0
		},
		"fail": func(args []string, stdout io.Writer) int {
			return 3
		},
	}

	return &harness{
		t:      t,
		dir:    dir,
		stdout: stdout,
		stderr: stderr,
		spawner: New(Config{
			Builtins: builtins,
			Env:      env.NewMapEnvFromEnvList(os.Environ()),
			Stdout:   stdout,
			Stderr:   stderr,
		}),
		jobs: jobcontrol.NewManager(jobcontrol.Config{}),
	}
}

// run spawns cmd and waits for it like a non-interactive shell.
func (h *harness) run(cmd ir.Command) (int, error) {
	h.t.Helper()

	pg, err := h.spawner.Spawn(ir.CommandGroup{Input: "test", Command: cmd})
	if len(pg.Processes) > 0 {
		id := h.jobs.CreateJob("test", pg)
		code, waitErr := h.jobs.WaitForJob(id)
		require.NoError(h.t, waitErr)
		if err == nil {
			return code, nil
		}
	}
	return shellerr.ExitCode(err), err
}

func (h *harness) file(name string) string {
	h.t.Helper()
	contents, err := os.ReadFile(filepath.Join(h.dir, name))
	require.NoError(h.t, err)
	return string(contents)
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func simple(argv ...string) ir.SimpleCommand {
	return ir.SimpleCommand{Program: argv[0], Args: argv[1:]}
}

func connect(first ir.Command, connector ast.Connector, second ir.Command) ir.Connection {
	return ir.Connection{First: first, Second: second, Connector: connector}
}

func TestPipe(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(connect(simple("echo", "needle"), ast.Pipe, simple("grep", "needle")))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "needle\n", h.file("stdout"))
}

func TestPipeStatusIsTrailingCommand(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(connect(simple("echo", "hay"), ast.Pipe, simple("grep", "needle")))
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Empty(t, h.file("stdout"))
}

func TestLongPipeline(t *testing.T) {
	h := newHarness(t)

	tree := connect(simple("echo", "a b c"), ast.Pipe, connect(simple("tr", " ", "\n"), ast.Pipe, simple("wc", "-l")))
	_, err := h.run(tree)
	require.NoError(t, err)
	assert.Contains(t, h.file("stdout"), "3")
}

func TestOr(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(connect(simple("echo", "1"), ast.Or, simple("echo", "2")))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "1\n", h.file("stdout"))
}

func TestAnd(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(connect(simple("echo", "1"), ast.And, simple("echo", "2")))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "1\n2\n", h.file("stdout"))
}

func TestAndShortCircuits(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(connect(simple("false"), ast.And, simple("echo", "2")))
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Empty(t, h.file("stdout"))
}

func TestSemicolon(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(connect(simple("false"), ast.Semicolon, simple("echo", "2")))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "2\n", h.file("stdout"))
}

func TestRedirectStdoutToRedirectedStderr(t *testing.T) {
	h := newHarness(t)

	errfile := ir.FileStdio(h.path("errfile"), false)
	cmd := simple("echo", "needle")
	cmd.Stdout, cmd.Stderr = errfile, errfile

	_, err := h.run(cmd)
	require.NoError(t, err)
	assert.Equal(t, "needle\n", h.file("errfile"))
	assert.Empty(t, h.file("stdout"))
	assert.Empty(t, h.file("stderr"))
}

func TestRedirectSharedFile(t *testing.T) {
	h := newHarness(t)

	both := ir.FileStdio(h.path("both"), false)
	cmd := simple("sh", "-c", "echo out; echo err >&2; echo out2")
	cmd.Stdout, cmd.Stderr = both, both

	_, err := h.run(cmd)
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\nout2\n", h.file("both"))
}

func TestRedirectStderrToPipe(t *testing.T) {
	h := newHarness(t)

	first := simple("sh", "-c", "echo needle >&2")
	first.Stderr = ir.DuplicateStdio(1)

	_, err := h.run(connect(first, ast.Pipe, simple("grep", "-c", "needle")))
	require.NoError(t, err)
	assert.Equal(t, "1\n", h.file("stdout"))
	assert.Empty(t, h.file("stderr"))
}

func TestRedirectAppendAndInput(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path("log"), []byte("first\n"), 0644))

	echo := simple("echo", "second")
	echo.Stdout = ir.FileStdio(h.path("log"), true)
	cat := simple("cat")
	cat.Stdin = ir.FileStdio(h.path("log"), false)

	_, err := h.run(connect(echo, ast.Semicolon, cat))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", h.file("stdout"))
}

func TestRedirectTruncates(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path("out"), []byte("old contents\n"), 0644))

	echo := simple("echo", "new")
	echo.Stdout = ir.FileStdio(h.path("out"), false)

	_, err := h.run(echo)
	require.NoError(t, err)
	assert.Equal(t, "new\n", h.file("out"))
}

func TestMissingInputFile(t *testing.T) {
	h := newHarness(t)

	cat := simple("cat")
	cat.Stdin = ir.FileStdio(h.path("missing"), false)

	_, err := h.run(connect(cat, ast.And, simple("echo", "never")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file or directory")
	assert.Empty(t, h.file("stdout"))
}

func TestCommandNotFound(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(simple("bsh-test-no-such-program"))
	assert.True(t, shellerr.IsCommandNotFound(err))
	assert.Equal(t, 127, code)
}

func TestBuiltins(t *testing.T) {
	h := newHarness(t)

	code, err := h.run(connect(simple("say", "needle"), ast.Pipe, simple("grep", "needle")))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "needle\n", h.file("stdout"))

	pg, err := h.spawner.Spawn(ir.CommandGroup{Command: simple("fail")})
	require.NoError(t, err)
	assert.Zero(t, pg.PGID, "builtins don't create a process group")
	require.Len(t, pg.Processes, 1)
	code, ok := pg.Processes[0].ExitCode()
	assert.True(t, ok)
	assert.Equal(t, 3, code)
}

func TestBuiltinRedirect(t *testing.T) {
	h := newHarness(t)

	say := simple("say", "needle")
	say.Stdout = ir.FileStdio(h.path("said"), false)

	_, err := h.run(say)
	require.NoError(t, err)
	assert.Equal(t, "needle\n", h.file("said"))
}

func TestProcessGroup(t *testing.T) {
	h := newHarness(t)

	pg, err := h.spawner.Spawn(ir.CommandGroup{
		Command:    connect(simple("true"), ast.Pipe, simple("true")),
		Background: true,
	})
	require.NoError(t, err)
	require.Len(t, pg.Processes, 2)
	assert.False(t, pg.Foreground)
	assert.Equal(t, pg.Processes[0].PID, pg.PGID, "the first process leads the group")
	assert.NotEqual(t, pg.Processes[0].PID, pg.Processes[1].PID)

	_, err = h.jobs.WaitForJob(h.jobs.CreateJob("true | true &", pg))
	require.NoError(t, err)
}

func TestLookPath(t *testing.T) {
	dir := t.TempDir()
	prog := filepath.Join(dir, "prog")
	require.NoError(t, os.WriteFile(prog, []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data"), nil, 0644))

	e := env.NewMapEnvFromEnvList([]string{"PATH=/nonexistent:" + dir})

	path, err := lookPath(e, "prog")
	require.NoError(t, err)
	assert.Equal(t, prog, path)

	_, err = lookPath(e, "data")
	assert.Error(t, err)

	path, err = lookPath(e, prog)
	require.NoError(t, err)
	assert.Equal(t, prog, path)
}

func TestSequenceEndingInBuiltin(t *testing.T) {
	h := newHarness(t)

	pg, err := h.spawner.Spawn(ir.CommandGroup{Command: connect(simple("true"), ast.And, simple("say", "done"))})
	require.NoError(t, err)
	require.Len(t, pg.Processes, 2)
	assert.Zero(t, pg.PGID, "the drained leg's group is gone")
	assert.Equal(t, "done\n", h.file("stdout"))

	pg, err = h.spawner.Spawn(ir.CommandGroup{Command: connect(simple("say", "first"), ast.Semicolon, simple("true"))})
	require.NoError(t, err)
	require.Len(t, pg.Processes, 2)
	assert.Equal(t, pg.Processes[1].PID, pg.PGID)
	_, err = h.jobs.WaitForJob(h.jobs.CreateJob("say first; true", pg))
	require.NoError(t, err)
}

func TestInteractiveReclaimsTerminal(t *testing.T) {
	h := newHarness(t)
	tty := &fakeTerminal{}
	h.spawner.terminal, h.spawner.shellPGID = tty, 1000

	_, err := h.spawner.Spawn(ir.CommandGroup{Command: simple("bsh-test-no-such-program")})
	assert.True(t, shellerr.IsCommandNotFound(err))
	assert.Equal(t, []int{1000}, tty.handoffs)

	tty.handoffs = nil
	pg, err := h.spawner.Spawn(ir.CommandGroup{Command: connect(simple("fail"), ast.Or, simple("say", "recovered"))})
	require.NoError(t, err)
	assert.Zero(t, pg.PGID)
	assert.Equal(t, []int{1000}, tty.handoffs, "taken back after the first leg")
	assert.Equal(t, "recovered\n", h.file("stdout"))

	tty.handoffs = nil
	_, err = h.spawner.Spawn(ir.CommandGroup{Command: simple("bsh-test-no-such-program"), Background: true})
	assert.True(t, shellerr.IsCommandNotFound(err))
	assert.Empty(t, tty.handoffs, "background lines never own the terminal")
}

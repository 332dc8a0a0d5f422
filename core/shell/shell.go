// Package shell reads command lines and runs them.
package shell

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/josephlewis42/bsh/core/builtins"
	"github.com/josephlewis42/bsh/core/config"
	"github.com/josephlewis42/bsh/core/editor"
	"github.com/josephlewis42/bsh/core/env"
	"github.com/josephlewis42/bsh/core/execute"
	"github.com/josephlewis42/bsh/core/ir"
	"github.com/josephlewis42/bsh/core/job"
	"github.com/josephlewis42/bsh/core/jobcontrol"
	"github.com/josephlewis42/bsh/core/parser"
	"github.com/josephlewis42/bsh/core/shellerr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

var log = logrus.WithField("component", "shell")

// Options configures a Shell.
type Options struct {
	Config *config.Configuration

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Interactive shells prompt, keep history and take the terminal when job
	// control is enabled.
	Interactive bool

	// Fs stores the history file. Defaults to the OS filesystem.
	Fs afero.Fs
	// Exit ends the process. Defaults to os.Exit.
	Exit func(code int)
}

// Shell is a running shell session.
type Shell struct {
	config      *config.Configuration
	interactive bool

	env     *env.MapEnv
	jobs    *jobcontrol.Manager
	spawner *execute.Spawner
	editor  *editor.Editor

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	fs          afero.Fs
	historyPath string
	exit        func(int)

	lastStatus int
}

var (
	_ builtins.Shell   = (*Shell)(nil)
	_ execute.Builtins = (*Shell)(nil)
)

// New creates a shell. When job control can't be set up the shell runs
// without it.
func New(opts Options) (*Shell, error) {
	s := &Shell{
		config:      opts.Config,
		interactive: opts.Interactive,
		env:         env.NewMapEnvFromEnvList(os.Environ()),
		stdin:       opts.Stdin,
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		fs:          opts.Fs,
		exit:        opts.Exit,
	}

	if s.config == nil {
		s.config = config.Interactive()
		if !s.interactive {
			s.config = config.Noninteractive()
		}
	}
	if s.stdin == nil {
		s.stdin = os.Stdin
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.exit == nil {
		s.exit = os.Exit
	}

	if _, ok := s.env.LookupEnv(env.PWD); !ok {
		if wd, err := os.Getwd(); err == nil {
			s.env.Setenv(env.PWD, wd)
		}
	}

	managerCfg := jobcontrol.Config{Out: s.stderr}
	spawnerCfg := execute.Config{
		Builtins: s,
		Env:      s.env,
		Stdin:    s.stdin,
		Stdout:   s.stdout,
		Stderr:   s.stderr,
	}
	if tty, pgid, ok := s.initJobControl(); ok {
		managerCfg.Terminal, managerCfg.ShellPGID = tty, pgid
		spawnerCfg.Terminal, spawnerCfg.ShellPGID = tty, pgid
	}
	s.jobs = jobcontrol.NewManager(managerCfg)
	s.spawner = execute.New(spawnerCfg)

	history := editor.NewHistory(s.config.History.Capacity)
	if s.config.History.Enabled {
		s.historyPath = s.env.ExpandEnv(s.config.History.File)
		if !filepath.IsAbs(s.historyPath) {
			s.historyPath = filepath.Join(s.env.Getenv(env.Home), s.historyPath)
		}
		if err := history.Load(s.fs, s.historyPath); err != nil {
			log.WithError(err).WithField("path", s.historyPath).Warn("couldn't load history")
		}
	}

	fd := int(s.stdin.Fd())
	ed, err := editor.New(editor.Config{
		Stdin:    s.stdin,
		Stdout:   s.stdout,
		Stderr:   s.stderr,
		Terminal: s.interactive && term.IsTerminal(fd),
		Width: func() int {
			width, _, err := term.GetSize(fd)
			if err != nil {
				return 80
			}
			return width
		},
		History: history,
	})
	if err != nil {
		return nil, errors.Wrap(err, "couldn't start the line editor")
	}
	s.editor = ed

	return s, nil
}

func (s *Shell) initJobControl() (*jobcontrol.TTY, int, bool) {
	if !s.interactive || !s.config.JobControl {
		return nil, 0, false
	}

	tty, err := jobcontrol.NewTTY(s.stdin)
	if err != nil {
		log.WithError(err).Info("running without job control")
		return nil, 0, false
	}
	pgid, err := jobcontrol.Initialize(tty)
	if err != nil {
		log.WithError(err).Warn("couldn't initialize job control, running without it")
		return nil, 0, false
	}
	return tty, pgid, true
}

// Env implements builtins.Shell.
func (s *Shell) Env() *env.MapEnv {
	return s.env
}

// Jobs implements builtins.Shell.
func (s *Shell) Jobs() *jobcontrol.Manager {
	return s.jobs
}

// Editor implements builtins.Shell.
func (s *Shell) Editor() *editor.Editor {
	return s.editor
}

// LastStatus returns the status of the last command line.
func (s *Shell) LastStatus() int {
	return s.lastStatus
}

// IsBuiltin implements execute.Builtins.
func (s *Shell) IsBuiltin(name string) bool {
	return builtins.IsBuiltin(name)
}

// RunBuiltin implements execute.Builtins.
func (s *Shell) RunBuiltin(name string, args []string, stdout, stderr io.Writer) int {
	return builtins.Run(s, builtins.IO{Stdout: stdout, Stderr: stderr}, args)
}

// Exit saves the history and ends the process.
func (s *Shell) Exit(code int) {
	code = job.NormalizeExitCode(code)
	if s.config.DisplayMessages {
		fmt.Fprintln(s.stderr, "exit")
	}

	if s.historyPath != "" {
		if err := s.editor.History().Save(s.fs, s.historyPath); err != nil {
			log.WithError(err).WithField("path", s.historyPath).Warn("couldn't save history")
		}
	}
	if err := s.editor.Close(); err != nil {
		log.WithError(err).Debug("closing editor")
	}

	log.WithField("code", code).Debug("exiting")
	s.exit(code)
}

// ExecuteString runs one command line and returns its status.
func (s *Shell) ExecuteString(input string) int {
	if s.config.History.Enabled {
		expanded, err := s.editor.History().Expand(input)
		if err != nil {
			s.lastStatus = s.report(err)
			return s.lastStatus
		}
		if expanded != input {
			fmt.Fprintln(s.stdout, expanded)
		}
		input = expanded
		s.editor.Record(input)
	}

	code, err := s.execute(input)
	if err != nil {
		code = s.report(err)
	}
	s.lastStatus = code
	return code
}

func (s *Shell) execute(input string) (int, error) {
	tree, err := parser.Parse(input, expansionEnv{s})
	if err != nil || tree == nil {
		return s.lastStatus, err
	}

	group, err := ir.Interpret(input, tree)
	if err != nil {
		return 0, err
	}

	pg, spawnErr := s.spawner.Spawn(group)
	if len(pg.Processes) == 0 {
		return 0, spawnErr
	}

	// Processes that started before a failure still need a job to be reaped.
	id := s.jobs.CreateJob(input, pg)
	code, err := s.wait(id, group.Background)
	if spawnErr != nil {
		return 0, spawnErr
	}
	return code, err
}

func (s *Shell) wait(id job.ID, background bool) (int, error) {
	switch {
	case !s.jobs.JobControl():
		defer s.jobs.Prune()
		return s.jobs.WaitForJob(id)

	case background:
		if j, ok := s.jobs.Job(id); ok && s.config.DisplayMessages {
			fmt.Fprintf(s.stderr, "[%d] %d\n", j.ID, j.PGID)
		}
		return 0, s.jobs.PutJobInBackground(id, false)

	default:
		return s.jobs.PutJobInForeground(id, false)
	}
}

// report prints err and returns the status it maps to.
func (s *Shell) report(err error) int {
	fmt.Fprintf(s.stderr, "bsh: %v\n", err)
	return shellerr.ExitCode(err)
}

// ExecuteFile runs every line of a script and returns the last status.
func (s *Shell) ExecuteFile(path string) int {
	contents, err := afero.ReadFile(s.fs, path)
	if err != nil {
		fmt.Fprintf(s.stderr, "bsh: %s: %v\n", path, shellerr.PathCause(err))
		return shellerr.CommandNotFoundCode
	}

	for _, line := range strings.Split(string(contents), "\n") {
		s.ExecuteString(line)
	}
	return s.lastStatus
}

// Run reads and executes lines until the input ends, then exits with the
// last status.
func (s *Shell) Run() {
	for {
		if s.jobs.JobControl() {
			s.jobs.DoJobNotification()
		}

		line, err := s.editor.ReadLine(s.prompt())
		switch {
		case err == editor.ErrInterrupt:
			continue
		case err == io.EOF:
			s.Exit(s.lastStatus)
			return
		case err != nil:
			log.WithError(err).Error("couldn't read line")
			s.Exit(1)
			return
		}

		s.ExecuteString(line)
	}
}

func (s *Shell) prompt() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = s.env.Getenv(env.PWD)
	}
	return editor.Prompt(s.lastStatus, cwd, s.env.Getenv(env.Home), s.config.ColorPrompt)
}

// expansionEnv resolves variables during parsing, including the special
// parameters $? and $$.
type expansionEnv struct {
	s *Shell
}

func (e expansionEnv) Getenv(key string) string {
	switch key {
	case "?":
		return strconv.Itoa(e.s.lastStatus)
	case "$":
		return strconv.Itoa(os.Getpid())
	}
	return e.s.env.Getenv(key)
}

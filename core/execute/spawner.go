// Package execute starts the processes of a command line.
package execute

import (
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/bsh/core/ast"
	"github.com/josephlewis42/bsh/core/ir"
	"github.com/josephlewis42/bsh/core/job"
	"github.com/josephlewis42/bsh/core/jobcontrol"
	"github.com/josephlewis42/bsh/core/shellerr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var log = logrus.WithField("component", "execute")

// Builtins runs commands implemented inside the shell.
type Builtins interface {
	IsBuiltin(name string) bool
	RunBuiltin(name string, args []string, stdout, stderr io.Writer) int
}

// Environment is the shell environment programs are started with.
type Environment interface {
	Getenv(key string) string
	Environ() []string
}

// Terminal is a controlling terminal children can be put in front of.
type Terminal interface {
	jobcontrol.Terminal
	Fd() int
}

// Config holds the collaborators of a Spawner.
type Config struct {
	Builtins Builtins
	Env      Environment
	Sys      job.Sys

	// Stdin, Stdout and Stderr are the shell's own streams.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Terminal is set when the shell is interactive.
	Terminal  Terminal
	ShellPGID int
}

// Spawner turns resolved command trees into running processes.
type Spawner struct {
	builtins Builtins
	env      Environment
	sys      job.Sys

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	terminal  Terminal
	shellPGID int
}

// New creates a Spawner, defaulting unset streams to the process's own.
func New(cfg Config) *Spawner {
	s := &Spawner{
		builtins:  cfg.Builtins,
		env:       cfg.Env,
		sys:       cfg.Sys,
		stdin:     cfg.Stdin,
		stdout:    cfg.Stdout,
		stderr:    cfg.Stderr,
		terminal:  cfg.Terminal,
		shellPGID: cfg.ShellPGID,
	}

	if s.sys == nil {
		s.sys = job.OS{}
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
	return s
}

// Spawn starts every process of a command line. Processes started before an
// error are still returned so they can be reaped.
func (s *Spawner) Spawn(group ir.CommandGroup) (job.ProcessGroup, error) {
	foreground := !group.Background
	procs, pgid, err := s.spawn(group.Command, nil, nil, 0, foreground)

	return job.ProcessGroup{
		PGID:       pgid,
		Processes:  procs,
		Foreground: foreground,
	}, err
}

// spawn starts cmd reading from stdin and writing to stdout, nil meaning the
// shell's streams. External programs join pgid, or lead a new group if it's 0.
func (s *Spawner) spawn(cmd ir.Command, stdin, stdout *os.File, pgid int, foreground bool) ([]job.Process, int, error) {
	switch cmd := cmd.(type) {
	case ir.SimpleCommand:
		proc, err := s.spawnSimple(cmd, stdin, stdout, pgid, foreground)
		if err != nil {
			return nil, pgid, err
		}
		if pgid == 0 {
			pgid = proc.PID
		}
		return []job.Process{proc}, pgid, nil

	case ir.Connection:
		if cmd.Connector == ast.Pipe {
			return s.spawnPipe(cmd, stdin, stdout, pgid, foreground)
		}
		return s.spawnSequence(cmd, stdin, stdout, pgid, foreground)

	default:
		panic(errors.Errorf("unknown command type %T", cmd))
	}
}

func (s *Spawner) spawnPipe(cmd ir.Connection, stdin, stdout *os.File, pgid int, foreground bool) ([]job.Process, int, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, pgid, errors.Wrap(err, "pipe")
	}

	first, pgid, err := s.spawn(cmd.First, stdin, w, pgid, foreground)
	w.Close()
	if err != nil {
		r.Close()
		return first, pgid, err
	}

	second, pgid, err := s.spawn(cmd.Second, r, stdout, pgid, foreground)
	r.Close()
	return append(first, second...), pgid, err
}

// spawnSequence runs the first command to completion before deciding whether
// to start the second one in a new process group.
func (s *Spawner) spawnSequence(cmd ir.Connection, stdin, stdout *os.File, pgid int, foreground bool) ([]job.Process, int, error) {
	first, firstPGID, err := s.spawn(cmd.First, stdin, stdout, pgid, foreground)
	if err != nil {
		return first, firstPGID, err
	}

	trailing := &first[len(first)-1]
	if err := trailing.Wait(s.sys); err != nil {
		return first, firstPGID, err
	}
	s.reclaimTerminal(foreground)

	code, _ := trailing.ExitCode()
	switch {
	case cmd.Connector == ast.And && code != 0:
		return first, firstPGID, nil
	case cmd.Connector == ast.Or && code == 0:
		return first, firstPGID, nil
	}

	second, secondPGID, err := s.spawn(cmd.Second, stdin, stdout, 0, foreground)
	if secondPGID == 0 && running(first) {
		secondPGID = firstPGID
	}
	return append(first, second...), secondPGID, err
}

// running reports whether any process can still be signaled through its
// group. A drained leg's group is gone once its processes are reaped.
func running(procs []job.Process) bool {
	for _, p := range procs {
		if p.PID != 0 && p.Status != job.Completed {
			return true
		}
	}
	return false
}

func (s *Spawner) spawnSimple(cmd ir.SimpleCommand, stdin, stdout *os.File, pgid int, foreground bool) (job.Process, error) {
	var files fileSet
	defer files.Close()

	streams, err := s.resolveStreams(cmd, stdin, stdout, &files)
	if err != nil {
		return job.Process{}, err
	}

	if s.builtins != nil && s.builtins.IsBuiltin(cmd.Program) {
		code := s.builtins.RunBuiltin(cmd.Program, cmd.Argv(), streams.stdout, streams.stderr)
		return job.NewBuiltin(cmd.Argv(), code), nil
	}

	return s.startExternal(cmd, streams, pgid, foreground)
}

type streams struct {
	stdin  *os.File
	stdout *os.File
	stderr *os.File
}

// resolveStreams turns the stream intents of cmd into files. stdin and stdout
// come from the surrounding pipeline and may be nil.
func (s *Spawner) resolveStreams(cmd ir.SimpleCommand, stdin, stdout *os.File, files *fileSet) (streams, error) {
	base := streams{stdin: s.stdin, stdout: s.stdout, stderr: s.stderr}
	if stdin != nil {
		base.stdin = stdin
	}
	if stdout != nil {
		base.stdout = stdout
	}

	open := func(intent ir.Stdio, fallback *os.File, write bool) (*os.File, error) {
		switch intent.Kind {
		case ir.Filename:
			return files.open(intent, write)
		case ir.DuplicateDescriptor:
			switch intent.Fd {
			case 0:
				return base.stdin, nil
			case 1:
				return base.stdout, nil
			case 2:
				return base.stderr, nil
			default:
				return nil, errors.Errorf("%d: bad file descriptor", intent.Fd)
			}
		default:
			return fallback, nil
		}
	}

	var (
		out streams
		err error
	)
	if out.stdin, err = open(cmd.Stdin, base.stdin, false); err != nil {
		return out, err
	}
	if out.stdout, err = open(cmd.Stdout, base.stdout, true); err != nil {
		return out, err
	}
	if out.stderr, err = open(cmd.Stderr, base.stderr, true); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Spawner) startExternal(cmd ir.SimpleCommand, streams streams, pgid int, foreground bool) (job.Process, error) {
	path, err := lookPath(s.env, cmd.Program)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			s.reclaimTerminal(foreground)
			return job.Process{}, &shellerr.CommandNotFoundError{Command: cmd.Program}
		}
		return job.Process{}, errors.Wrap(err, cmd.Program)
	}

	attr := &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
	if s.terminal != nil && foreground {
		// The child takes the terminal before its stdio is remapped.
		attr.Foreground = true
		attr.Ctty = s.terminal.Fd()
	}

	c := &exec.Cmd{
		Path:        path,
		Args:        cmd.Argv(),
		Env:         s.env.Environ(),
		Stdin:       streams.stdin,
		Stdout:      streams.stdout,
		Stderr:      streams.stderr,
		SysProcAttr: attr,
	}
	if err := c.Start(); err != nil {
		s.reclaimTerminal(foreground)
		if errors.Is(err, fs.ErrNotExist) {
			return job.Process{}, &shellerr.CommandNotFoundError{Command: cmd.Program}
		}
		return job.Process{}, errors.Wrap(err, cmd.Program)
	}

	pid := c.Process.Pid
	if pgid == 0 {
		pgid = pid
	}
	// The child sets its own group too; whichever runs first wins.
	if err := unix.Setpgid(pid, pgid); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"pid": pid, "pgid": pgid}).Debug("setpgid from parent")
	}
	// The job manager reaps children itself.
	if err := c.Process.Release(); err != nil {
		log.WithError(err).WithField("pid", pid).Debug("release")
	}

	log.WithFields(logrus.Fields{"pid": pid, "pgid": pgid, "argv": cmd.Argv()}).Debug("started process")
	return job.NewExternal(cmd.Argv(), pid), nil
}

func (s *Spawner) reclaimTerminal(foreground bool) {
	if s.terminal == nil || !foreground {
		return
	}
	if err := s.terminal.SetForeground(s.shellPGID); err != nil {
		log.WithError(err).Error("couldn't reclaim the terminal")
	}
}

package jobcontrol

import (
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the controlling terminal of the shell.
type Terminal interface {
	// Foreground returns the foreground process group.
	Foreground() (int, error)
	// SetForeground gives the terminal to a process group.
	SetForeground(pgid int) error
	// Modes snapshots the line discipline settings.
	Modes() (*term.State, error)
	// SetModes restores a snapshot taken with Modes.
	SetModes(*term.State) error
}

// TTY is a Terminal backed by a file descriptor.
type TTY struct {
	fd int
}

var _ Terminal = (*TTY)(nil)

// NewTTY wraps f if it refers to a terminal.
func NewTTY(f *os.File) (*TTY, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.Errorf("%s is not a terminal", f.Name())
	}
	return &TTY{fd: fd}, nil
}

// Fd returns the descriptor of the terminal.
func (t *TTY) Fd() int {
	return t.fd
}

// Foreground implements Terminal.Foreground.
func (t *TTY) Foreground() (int, error) {
	pgid, err := unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
	return pgid, errors.Wrap(err, "tcgetpgrp")
}

// SetForeground implements Terminal.SetForeground.
//
// A shell calling tcsetpgrp while it's in the background is sent SIGTTOU, so
// the signal is ignored for the duration of the call.
func (t *TTY) SetForeground(pgid int) error {
	signal.Ignore(unix.SIGTTOU)
	defer signal.Notify(shellSignals, unix.SIGTTOU)

	return errors.Wrap(unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid), "tcsetpgrp")
}

// Modes implements Terminal.Modes.
func (t *TTY) Modes() (*term.State, error) {
	state, err := term.GetState(t.fd)
	return state, errors.Wrap(err, "tcgetattr")
}

// SetModes implements Terminal.SetModes.
func (t *TTY) SetModes(state *term.State) error {
	if state == nil {
		return nil
	}
	return errors.Wrap(term.Restore(t.fd, state), "tcsetattr")
}

package jobcontrol

import (
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// TerminalGuard hands the terminal to a job and gives it back to the shell
// when released.
type TerminalGuard struct {
	terminal  Terminal
	shellPGID int
	modes     *term.State
}

// AcquireTerminal records the shell's terminal modes and makes pgid the
// foreground process group. The shell's own group is passed in rather than
// read from the terminal because a freshly forked job may already own it.
func AcquireTerminal(t Terminal, shellPGID, pgid int) (*TerminalGuard, error) {
	modes, err := t.Modes()
	if err != nil {
		log.WithError(err).Warn("couldn't save terminal modes")
	}

	if err := t.SetForeground(pgid); err != nil {
		return nil, errors.Wrapf(err, "giving terminal to process group %d", pgid)
	}

	return &TerminalGuard{
		terminal:  t,
		shellPGID: shellPGID,
		modes:     modes,
	}, nil
}

// Release returns the terminal to the shell, then restores the shell's modes.
func (g *TerminalGuard) Release() {
	if err := g.terminal.SetForeground(g.shellPGID); err != nil {
		log.WithError(err).Error("couldn't reclaim the terminal")
	}
	if err := g.terminal.SetModes(g.modes); err != nil {
		log.WithError(err).Warn("couldn't restore terminal modes")
	}
}

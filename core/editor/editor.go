// Package editor reads command lines and keeps their history.
package editor

import (
	"bufio"
	"io"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/pkg/errors"
)

// ErrInterrupt is returned when the user interrupts the line being edited.
var ErrInterrupt = readline.ErrInterrupt

// Config configures an Editor.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Terminal enables line editing. Without it lines are read verbatim.
	Terminal bool
	// Width reports the terminal width, nil for the readline default.
	Width func() int

	History *History
}

// Editor reads lines from the user.
type Editor struct {
	readline *readline.Instance
	reader   *bufio.Reader
	stdout   io.Writer
	history  *History
}

// New creates an Editor.
func New(cfg Config) (*Editor, error) {
	history := cfg.History
	if history == nil {
		history = NewHistory(0)
	}

	if !cfg.Terminal {
		return &Editor{
			reader:  bufio.NewReader(cfg.Stdin),
			stdout:  cfg.Stdout,
			history: history,
		}, nil
	}

	rlCfg := &readline.Config{
		Stdin:                  readline.NewCancelableStdin(cfg.Stdin),
		Stdout:                 cfg.Stdout,
		Stderr:                 cfg.Stderr,
		HistoryLimit:           history.Capacity(),
		DisableAutoSaveHistory: true,
		FuncGetWidth:           cfg.Width,
		FuncIsTerminal: func() bool {
			return true
		},
	}
	if err := rlCfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return nil, err
	}

	e := &Editor{
		readline: rl,
		stdout:   cfg.Stdout,
		history:  history,
	}
	e.syncHistory()
	return e, nil
}

// History returns the history lines are recorded in.
func (e *Editor) History() *History {
	return e.history
}

// ReadLine shows prompt and reads a line without its newline. At the end of
// input it returns io.EOF.
func (e *Editor) ReadLine(prompt string) (string, error) {
	if e.readline == nil {
		line, err := e.reader.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		return strings.TrimSuffix(line, "\n"), err
	}

	e.readline.SetPrompt(prompt)
	return e.readline.Readline()
}

// Record adds a line to the history.
func (e *Editor) Record(line string) {
	e.history.Add(line)
	if e.readline != nil {
		if err := e.readline.SaveHistory(line); err != nil {
			log.WithError(err).Debug("couldn't record line in readline")
		}
	}
}

// ClearHistory clears both the history and the readline recall buffer.
func (e *Editor) ClearHistory() {
	e.history.Clear()
	if e.readline != nil {
		e.readline.Operation.ResetHistory()
	}
}

// syncHistory copies recorded lines into readline so arrow keys can recall
// lines loaded from the history file.
func (e *Editor) syncHistory() {
	for _, entry := range e.history.Entries() {
		if err := e.readline.SaveHistory(entry.Line); err != nil {
			log.WithError(err).Debug("couldn't sync history")
			return
		}
	}
}

// Close releases the terminal.
func (e *Editor) Close() error {
	if e.readline == nil {
		return nil
	}
	return errors.Wrap(e.readline.Close(), "closing editor")
}

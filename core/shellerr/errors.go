// Package shellerr holds the error kinds shared by the shell's subsystems.
package shellerr

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

const (
	// SyntaxErrorCode is the exit status of a line that failed to parse.
	SyntaxErrorCode = 2

	// CommandNotFoundCode is the exit status of a line naming a missing program.
	CommandNotFoundCode = 127
)

// ErrNoJobControl is returned when a job control operation is requested from
// a shell that doesn't own a terminal.
var ErrNoJobControl = errors.New("no job control")

// SyntaxError is reported when a line can't be parsed or uses grammar the
// shell doesn't execute.
type SyntaxError struct {
	Line   string
	Reason string
}

func (e *SyntaxError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("syntax error: %q", e.Line)
	}
	return fmt.Sprintf("syntax error: %s", e.Reason)
}

// CommandNotFoundError is reported when a program can't be located.
type CommandNotFoundError struct {
	Command string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("%s: command not found", e.Command)
}

// NoSuchJobError is reported when a job specification doesn't resolve.
type NoSuchJobError struct {
	Job string
}

func (e *NoSuchJobError) Error() string {
	return fmt.Sprintf("%s: no such job", e.Job)
}

// BuiltinError carries a message and the exit status a builtin finished with.
type BuiltinError struct {
	Msg  string
	Code int
}

func (e *BuiltinError) Error() string {
	return e.Msg
}

// Builtinf creates a BuiltinError with a formatted message.
func Builtinf(code int, format string, args ...interface{}) error {
	return &BuiltinError{Msg: fmt.Sprintf(format, args...), Code: code}
}

// IsSyntax reports whether err or any error it wraps is a SyntaxError.
func IsSyntax(err error) bool {
	var target *SyntaxError
	return errors.As(err, &target)
}

// IsCommandNotFound reports whether err or any error it wraps is a
// CommandNotFoundError.
func IsCommandNotFound(err error) bool {
	var target *CommandNotFoundError
	return errors.As(err, &target)
}

// IsNoSuchJob reports whether err or any error it wraps is a NoSuchJobError.
func IsNoSuchJob(err error) bool {
	var target *NoSuchJobError
	return errors.As(err, &target)
}

// PathCause strips the operation and path from filesystem errors so messages
// can name the path themselves.
func PathCause(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

// ExitCode maps an error to the status a command line finishes with.
func ExitCode(err error) int {
	var builtinErr *BuiltinError
	switch {
	case err == nil:
		return 0
	case IsSyntax(err):
		return SyntaxErrorCode
	case IsCommandNotFound(err):
		return CommandNotFoundCode
	case errors.As(err, &builtinErr):
		return builtinErr.Code
	default:
		return 1
	}
}

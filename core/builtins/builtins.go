// Package builtins implements the commands that run inside the shell.
package builtins

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/josephlewis42/bsh/core/editor"
	"github.com/josephlewis42/bsh/core/env"
	"github.com/josephlewis42/bsh/core/job"
	"github.com/josephlewis42/bsh/core/jobcontrol"
	"github.com/josephlewis42/bsh/core/shellerr"
)

// Shell is the state builtins act on.
type Shell interface {
	Env() *env.MapEnv
	Jobs() *jobcontrol.Manager
	Editor() *editor.Editor
	LastStatus() int
	// Exit ends the shell with the given status.
	Exit(code int)
}

// IO holds the streams a builtin writes to.
type IO struct {
	Stdout io.Writer
	Stderr io.Writer
}

// ShellBuiltinFunc is the entry point of a builtin. args[0] is the name the
// builtin was invoked with.
type ShellBuiltinFunc func(s Shell, io IO, args []string) int

// Builtin describes a registered builtin.
type Builtin struct {
	Name string
	// Help is shown by `help NAME`; its first line is the usage.
	Help string
	Main ShellBuiltinFunc
}

// Usage returns the first line of the help text.
func (b *Builtin) Usage() string {
	return strings.SplitN(b.Help, "\n", 2)[0]
}

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]*Builtin)

func register(b *Builtin) {
	AllBuiltins[b.Name] = b
}

// Names returns the names of every builtin, sorted.
func Names() []string {
	var out []string
	for name := range AllBuiltins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsBuiltin reports whether name is a builtin.
func IsBuiltin(name string) bool {
	_, ok := AllBuiltins[name]
	return ok
}

// Run runs a builtin and returns its exit status.
func Run(s Shell, io IO, args []string) int {
	if len(args) == 0 {
		return 0
	}
	b, ok := AllBuiltins[args[0]]
	if !ok {
		return errorf(io, shellerr.CommandNotFoundCode, "%s: not a shell builtin", args[0])
	}
	return b.Main(s, io, args)
}

// errorf prints a message prefixed with the shell's name and returns code.
func errorf(io IO, code int, format string, args ...interface{}) int {
	fmt.Fprintf(io.Stderr, "bsh: "+format+"\n", args...)
	return code
}

// report prints err and returns the status it maps to.
func report(io IO, name string, err error) int {
	return errorf(io, shellerr.ExitCode(err), "%s: %v", name, err)
}

// parseJobSpec parses "N", "%N", "%%", "%+" and "%". Current job specs
// resolve to 0.
func parseJobSpec(spec string) (job.ID, error) {
	switch spec {
	case "%", "%%", "%+":
		return 0, nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(spec, "%"))
	if err != nil || n <= 0 {
		return 0, &shellerr.NoSuchJobError{Job: spec}
	}
	return job.ID(n), nil
}

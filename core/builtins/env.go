package builtins

import (
	"fmt"
	"os"
	"strings"

	"github.com/josephlewis42/bsh/core/env"
	"github.com/josephlewis42/bsh/core/shellerr"
	"github.com/pborman/getopt/v2"
)

func init() {
	register(&Builtin{Name: "cd", Main: Cd, Help: `cd: cd [dir]
    Change the shell working directory.

    Change the current directory to DIR. The default DIR is the value of the
    HOME shell variable. If DIR is "-", it is converted to $OLDPWD.

    Exit Status:
    Returns 0 if the directory is changed; non-zero otherwise.
`})

	register(&Builtin{Name: "declare", Main: Declare, Help: `declare: declare [name[=value] ...]
    Set variable values and attributes.

    Without arguments, display the exported variables. Every variable is
    exported to the commands the shell runs.

    Exit Status:
    Returns success unless an invalid name is given.
`})

	register(&Builtin{Name: "unset", Main: Unset, Help: `unset: unset [name ...]
    Unset values of shell variables.

    For each NAME, remove the corresponding variable.

    Exit Status:
    Returns success unless an invalid name is given.
`})
}

// Cd is the cd shell builtin
func Cd(s Shell, io IO, args []string) int {
	var dir string
	switch len(args) {
	case 1:
		home, ok := s.Env().LookupEnv(env.Home)
		if !ok || home == "" {
			return errorf(io, 1, "cd: HOME not set")
		}
		dir = home
	case 2:
		dir = args[1]
	default:
		return errorf(io, 1, "cd: too many arguments")
	}

	printDir := false
	if dir == "-" {
		old, ok := s.Env().LookupEnv(env.OldPWD)
		if !ok || old == "" {
			return errorf(io, 1, "cd: OLDPWD not set")
		}
		dir, printDir = old, true
	}

	previous, err := os.Getwd()
	if err != nil {
		previous = s.Env().Getenv(env.PWD)
	}
	if err := os.Chdir(dir); err != nil {
		return errorf(io, 1, "cd: %s: %v", dir, shellerr.PathCause(err))
	}

	current, err := os.Getwd()
	if err != nil {
		current = dir
	}
	s.Env().Setenv(env.OldPWD, previous)
	s.Env().Setenv(env.PWD, current)

	if printDir {
		fmt.Fprintln(io.Stdout, current)
	}
	return 0
}

// Declare sets variables or lists them.
func Declare(s Shell, io IO, args []string) int {
	// Every variable is exported, -x is accepted for compatibility.
	opts := getopt.New()
	opts.Bool('x', "export NAMEs")
	if err := opts.Getopt(args, nil); err != nil {
		return errorf(io, 2, "declare: %v", err)
	}

	if len(opts.Args()) == 0 {
		for _, entry := range s.Env().Environ() {
			name, value := splitAssignment(entry)
			fmt.Fprintf(io.Stdout, "declare -x %s=%q\n", name, value)
		}
		return 0
	}

	status := 0
	for _, arg := range opts.Args() {
		name, value := splitAssignment(arg)
		if !env.ValidName(name) {
			status = errorf(io, 1, "declare: `%s': not a valid identifier", arg)
			continue
		}
		if _, ok := s.Env().LookupEnv(name); ok && !strings.Contains(arg, "=") {
			continue
		}
		s.Env().Setenv(name, value)
	}
	return status
}

// Unset removes variables.
func Unset(s Shell, io IO, args []string) int {
	status := 0
	for _, name := range args[1:] {
		if !env.ValidName(name) {
			status = errorf(io, 1, "unset: `%s': not a valid identifier", name)
			continue
		}
		s.Env().Unsetenv(name)
	}
	return status
}

func splitAssignment(arg string) (string, string) {
	if i := strings.IndexByte(arg, '='); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

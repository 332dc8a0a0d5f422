package builtins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/josephlewis42/bsh/core/job"
	"github.com/pborman/getopt/v2"
)

func init() {
	register(&Builtin{Name: "exit", Main: Exit, Help: `exit: exit [n]
    Exit the shell.

    Exits the shell with a status of N. If N is omitted, the exit status
    is that of the last command executed. The shell refuses to exit while
    jobs are stopped.
`})

	register(&Builtin{Name: "history", Main: History, Help: `history: history [-c] [-s size] [n]
    Display or manipulate the history list.

    Display the history list with line numbers. An argument of N lists
    only the last N entries.

    Options:
      -c	clear the history list by deleting all of the entries
      -s	set the number of entries the history list keeps

    Exit Status:
    Returns success unless an invalid option is given or an error occurs.
`})

	register(&Builtin{Name: "help", Main: Help, Help: `help: help [pattern ...]
    Display information about builtin commands.

    Displays brief summaries of builtin commands. If PATTERN is
    specified, gives detailed help on all commands matching PATTERN,
    otherwise the list of help topics is printed.

    Exit Status:
    Returns success unless PATTERN is not found.
`})
}

// Exit ends the shell.
func Exit(s Shell, io IO, args []string) int {
	if len(args) > 2 {
		return errorf(io, 1, "exit: too many arguments")
	}
	if s.Jobs().HasStoppedJobs() {
		return errorf(io, 1, "There are stopped jobs.")
	}

	code := s.LastStatus()
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			code = errorf(io, 2, "exit: %s: numeric argument required", args[1])
		} else {
			code = job.NormalizeExitCode(n)
		}
	}

	s.Exit(code)
	return code
}

// History lists or edits the command history.
func History(s Shell, io IO, args []string) int {
	opts := getopt.New()
	clearAll := opts.Bool('c', "clear the history list")
	size := opts.String('s', "", "set the history size")
	if err := opts.Getopt(args, nil); err != nil {
		return errorf(io, 2, "history: %v", err)
	}

	history := s.Editor().History()
	if *clearAll {
		s.Editor().ClearHistory()
		return 0
	}
	if *size != "" {
		n, err := strconv.Atoi(*size)
		if err != nil || n <= 0 {
			return errorf(io, 1, "history: %s: invalid number", *size)
		}
		history.SetCapacity(n)
		return 0
	}

	entries := history.Entries()
	switch rest := opts.Args(); len(rest) {
	case 0:
	case 1:
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 0 {
			return errorf(io, 1, "history: %s: numeric argument required", rest[0])
		}
		entries = history.Last(n)
	default:
		return errorf(io, 1, "history: too many arguments")
	}

	for _, entry := range entries {
		fmt.Fprintf(io.Stdout, "%5d  %s\n", entry.Number, entry.Line)
	}
	return 0
}

// Help describes builtins.
func Help(s Shell, io IO, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(io.Stdout, "These shell commands are defined internally. Type `help' to see this list.")
		fmt.Fprintln(io.Stdout, "Type `help name' to find out more about the function `name'.")
		fmt.Fprintln(io.Stdout)
		for _, name := range Names() {
			fmt.Fprintf(io.Stdout, " %s\n", AllBuiltins[name].Usage())
		}
		return 0
	}

	status := 0
	for _, pattern := range args[1:] {
		var matched []string
		for _, name := range Names() {
			if strings.HasPrefix(name, pattern) {
				matched = append(matched, name)
			}
		}
		if len(matched) == 0 {
			status = errorf(io, 1, "help: no help topics match %s", pattern)
			continue
		}

		sort.Strings(matched)
		for _, name := range matched {
			fmt.Fprint(io.Stdout, AllBuiltins[name].Help)
		}
	}
	return status
}

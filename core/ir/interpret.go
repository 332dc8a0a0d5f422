package ir

import (
	"github.com/josephlewis42/bsh/core/ast"
	"github.com/josephlewis42/bsh/core/shellerr"
)

// Interpret resolves a parsed command line into a CommandGroup.
func Interpret(input string, cmd ast.Command) (CommandGroup, error) {
	background := false
	resolved, err := interpret(cmd, &background)
	if err != nil {
		return CommandGroup{}, err
	}

	return CommandGroup{
		Input:      input,
		Command:    resolved,
		Background: background,
	}, nil
}

func interpret(cmd ast.Command, background *bool) (Command, error) {
	switch cmd := cmd.(type) {
	case *ast.Simple:
		if cmd.Background {
			*background = true
		}
		return Simple(cmd)

	case *ast.Connection:
		first, err := interpret(cmd.First, background)
		if err != nil {
			return nil, err
		}
		second, err := interpret(cmd.Second, background)
		if err != nil {
			return nil, err
		}
		return Connection{First: first, Second: second, Connector: cmd.Connector}, nil

	default:
		return nil, &shellerr.SyntaxError{Reason: "unknown command node"}
	}
}

// Simple resolves the words and redirects of a single command.
//
// Redirects apply left to right. A duplication `N>&M` copies whatever M
// points at when the redirect is reached, so `2>f >&2` sends both streams to
// f while `>&2 2>f` leaves stdout on the shell's stderr.
func Simple(cmd *ast.Simple) (SimpleCommand, error) {
	if len(cmd.Words) == 0 {
		return SimpleCommand{}, &shellerr.SyntaxError{Reason: "missing command"}
	}

	var (
		// streams holds the explicit target of descriptors 0-2.
		streams [3]Stdio
		set     [3]bool
	)

	for _, r := range cmd.Redirects {
		switch r.Instruction {
		case ast.Input:
			if r.Redirectee.IsFd() {
				continue
			}
			if r.Redirector != ast.NoFd && r.Redirector != 0 {
				return SimpleCommand{}, &shellerr.SyntaxError{Reason: "unsupported input redirect"}
			}
			streams[0], set[0] = FileStdio(r.Redirectee.Filename, false), true

		case ast.Output, ast.Append:
			fd := r.Redirector
			if fd == ast.NoFd {
				fd = 1
			}
			if fd != 1 && fd != 2 {
				return SimpleCommand{}, &shellerr.SyntaxError{Reason: "unsupported output redirect"}
			}

			var target Stdio
			switch dup := r.Redirectee.Fd; {
			case !r.Redirectee.IsFd():
				target = FileStdio(r.Redirectee.Filename, r.Instruction == ast.Append)
			case (dup == 1 || dup == 2) && set[dup]:
				target = streams[dup]
			default:
				target = DuplicateStdio(dup)
			}

			if target.Kind == DuplicateDescriptor && target.Fd == fd {
				// `1>&1` and friends keep the current target.
				continue
			}
			streams[fd], set[fd] = target, true
		}
	}

	return SimpleCommand{
		Program: cmd.Words[0],
		Args:    append([]string(nil), cmd.Words[1:]...),
		Stdin:   streams[0],
		Stdout:  streams[1],
		Stderr:  streams[2],
	}, nil
}

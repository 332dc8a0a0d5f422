// Package ir resolves parsed commands into executable commands with concrete
// stream intents.
package ir

import (
	"fmt"
	"strings"

	"github.com/josephlewis42/bsh/core/ast"
)

// StdioKind describes what a stream of a command is connected to.
type StdioKind int

const (
	// Inherit uses the pipeline's stream if any, otherwise the shell's.
	Inherit StdioKind = iota
	// DuplicateDescriptor uses the shell's descriptor Fd.
	DuplicateDescriptor
	// Filename opens the file at Path.
	Filename
)

// Stdio is the intent for one stream of a simple command.
type Stdio struct {
	Kind StdioKind
	Fd   int
	Path string
	// Append is set for `>>` redirects; `>` truncates.
	Append bool
}

// InheritStdio is the default intent for every stream.
var InheritStdio = Stdio{Kind: Inherit}

// DuplicateStdio duplicates the shell's descriptor fd.
func DuplicateStdio(fd int) Stdio {
	return Stdio{Kind: DuplicateDescriptor, Fd: fd}
}

// FileStdio opens the named file.
func FileStdio(path string, append bool) Stdio {
	return Stdio{Kind: Filename, Path: path, Append: append}
}

func (s Stdio) String() string {
	switch s.Kind {
	case DuplicateDescriptor:
		return fmt.Sprintf("&%d", s.Fd)
	case Filename:
		if s.Append {
			return ">>" + s.Path
		}
		return s.Path
	default:
		return "inherit"
	}
}

// Command is a resolved command tree, either SimpleCommand or Connection.
type Command interface {
	isCommand()
}

// SimpleCommand is a program with its arguments and resolved streams.
type SimpleCommand struct {
	Program string
	Args    []string
	Stdin   Stdio
	Stdout  Stdio
	Stderr  Stdio
}

// Argv returns the program followed by its arguments.
func (c SimpleCommand) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

func (c SimpleCommand) String() string {
	return strings.Join(c.Argv(), " ")
}

// Connection joins two resolved commands.
type Connection struct {
	First     Command
	Second    Command
	Connector ast.Connector
}

func (SimpleCommand) isCommand() {}
func (Connection) isCommand()    {}

// CommandGroup is everything needed to run one command line.
type CommandGroup struct {
	Input      string
	Command    Command
	Background bool
}

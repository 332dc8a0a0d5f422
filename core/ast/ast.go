// Package ast contains the command tree produced by the parser.
package ast

// Connector joins two commands.
type Connector int

const (
	// Pipe connects the first command's stdout to the second's stdin.
	Pipe Connector = iota
	// Semicolon runs the second command after the first one finishes.
	Semicolon
	// And runs the second command only if the first one succeeded.
	And
	// Or runs the second command only if the first one failed.
	Or
)

func (c Connector) String() string {
	switch c {
	case Pipe:
		return "|"
	case Semicolon:
		return ";"
	case And:
		return "&&"
	case Or:
		return "||"
	default:
		return "?"
	}
}

// Instruction is the direction of a redirect.
type Instruction int

const (
	// Input reads from the redirectee, e.g. `< file`.
	Input Instruction = iota
	// Output truncates and writes to the redirectee, e.g. `> file`.
	Output
	// Append appends to the redirectee, e.g. `>> file`.
	Append
)

// NoFd marks a descriptor field as absent.
const NoFd = -1

// Redirect is a single redirection as written on the command line.
type Redirect struct {
	// Redirector is the descriptor being redirected, NoFd if omitted.
	Redirector  int
	Instruction Instruction
	Redirectee  Redirectee
}

// Redirectee is the target of a redirect: a file or another descriptor.
type Redirectee struct {
	// Fd is the duplicated descriptor for `N>&M`, NoFd for filenames.
	Fd       int
	Filename string
}

// IsFd reports whether the redirect duplicates a descriptor.
func (r Redirectee) IsFd() bool {
	return r.Fd != NoFd
}

// Command is a node of the command tree, either *Simple or *Connection.
type Command interface {
	command()
}

// Simple is a single program invocation.
type Simple struct {
	Words      []string
	Redirects  []Redirect
	Background bool
}

// Connection joins two commands with a connector.
type Connection struct {
	First     Command
	Second    Command
	Connector Connector
}

func (*Simple) command()     {}
func (*Connection) command() {}

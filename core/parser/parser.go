// Package parser turns command lines into command trees using the
// mvdan.cc/sh grammar, expanding words as it goes.
package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/bsh/core/ast"
	"github.com/josephlewis42/bsh/core/shellerr"
	"mvdan.cc/sh/v3/syntax"
)

// Env supplies variable values during expansion.
type Env interface {
	Getenv(key string) string
}

// Parse parses and expands a command line. It returns a nil command for
// blank lines and comments.
func Parse(line string, env Env) (ast.Command, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, &shellerr.SyntaxError{Line: line, Reason: err.Error()}
	}

	p := &converter{line: line, env: env}

	var out ast.Command
	for _, stmt := range file.Stmts {
		cmd, err := p.statement(stmt)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = cmd
			continue
		}
		out = &ast.Connection{First: out, Second: cmd, Connector: ast.Semicolon}
	}
	return out, nil
}

type converter struct {
	line string
	env  Env
}

func (p *converter) syntaxError(node syntax.Node) error {
	buf := &bytes.Buffer{}
	syntax.NewPrinter().Print(buf, node)
	return &shellerr.SyntaxError{
		Line:   p.line,
		Reason: fmt.Sprintf("unsupported syntax near %d: %q", node.Pos().Col(), buf.String()),
	}
}

func (p *converter) statement(stmt *syntax.Stmt) (ast.Command, error) {
	if stmt.Negated || stmt.Coprocess {
		return nil, p.syntaxError(stmt)
	}

	var cmd ast.Command
	switch node := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		simple, err := p.call(node, stmt.Redirs)
		if err != nil {
			return nil, err
		}
		cmd = simple

	case *syntax.DeclClause:
		simple, err := p.decl(node, stmt.Redirs)
		if err != nil {
			return nil, err
		}
		cmd = simple

	case *syntax.BinaryCmd:
		if len(stmt.Redirs) > 0 {
			return nil, p.syntaxError(stmt)
		}

		var connector ast.Connector
		switch node.Op {
		case syntax.Pipe:
			connector = ast.Pipe
		case syntax.AndStmt:
			connector = ast.And
		case syntax.OrStmt:
			connector = ast.Or
		default:
			return nil, p.syntaxError(node)
		}

		first, err := p.statement(node.X)
		if err != nil {
			return nil, err
		}
		second, err := p.statement(node.Y)
		if err != nil {
			return nil, err
		}
		cmd = &ast.Connection{First: first, Second: second, Connector: connector}

	default:
		if stmt.Cmd == nil {
			return nil, &shellerr.SyntaxError{Line: p.line, Reason: "missing command"}
		}
		return nil, p.syntaxError(stmt)
	}

	if stmt.Background {
		markBackground(cmd)
	}
	return cmd, nil
}

func markBackground(cmd ast.Command) {
	switch cmd := cmd.(type) {
	case *ast.Simple:
		cmd.Background = true
	case *ast.Connection:
		markBackground(cmd.First)
		markBackground(cmd.Second)
	}
}

// call converts a simple command. A line of only assignments becomes a
// declare builtin call.
func (p *converter) call(call *syntax.CallExpr, redirs []*syntax.Redirect) (*ast.Simple, error) {
	out := &ast.Simple{}

	if len(call.Assigns) > 0 {
		if len(call.Args) > 0 {
			return nil, p.syntaxError(call)
		}
		out.Words = append(out.Words, "declare")
		for _, assign := range call.Assigns {
			if assign.Name == nil || assign.Append || assign.Naked || assign.Array != nil || assign.Index != nil {
				return nil, p.syntaxError(call)
			}
			value, err := p.word(assign.Value)
			if err != nil {
				return nil, err
			}
			out.Words = append(out.Words, assign.Name.Value+"="+value)
		}
	}

	for _, word := range call.Args {
		arg, err := p.word(word)
		if err != nil {
			return nil, err
		}
		// Unquoted words that expand to nothing are dropped.
		if arg == "" && !quoted(word) {
			continue
		}
		out.Words = append(out.Words, arg)
	}

	return out, p.redirects(out, redirs)
}

// decl converts declare, typeset and export into a declare builtin call.
// Every variable is exported so the variants mean the same thing.
func (p *converter) decl(decl *syntax.DeclClause, redirs []*syntax.Redirect) (*ast.Simple, error) {
	switch decl.Variant.Value {
	case "declare", "typeset", "export":
	default:
		return nil, p.syntaxError(decl)
	}

	out := &ast.Simple{Words: []string{"declare"}}
	for _, assign := range decl.Args {
		if assign.Append || assign.Array != nil || assign.Index != nil {
			return nil, p.syntaxError(decl)
		}

		switch {
		case assign.Naked && assign.Name != nil:
			out.Words = append(out.Words, assign.Name.Value)
		case assign.Naked:
			// Options and words evaluated at run time, like -x or $NAME.
			arg, err := p.word(assign.Value)
			if err != nil {
				return nil, err
			}
			if arg == "" && !quoted(assign.Value) {
				continue
			}
			out.Words = append(out.Words, arg)
		default:
			value, err := p.word(assign.Value)
			if err != nil {
				return nil, err
			}
			out.Words = append(out.Words, assign.Name.Value+"="+value)
		}
	}

	return out, p.redirects(out, redirs)
}

func (p *converter) redirects(out *ast.Simple, redirs []*syntax.Redirect) error {
	for _, redir := range redirs {
		r, err := p.redirect(redir)
		if err != nil {
			return err
		}
		out.Redirects = append(out.Redirects, r)
	}
	return nil
}

func quoted(word *syntax.Word) bool {
	if word == nil {
		return false
	}
	for _, part := range word.Parts {
		switch part.(type) {
		case *syntax.SglQuoted, *syntax.DblQuoted:
			return true
		}
	}
	return false
}

func (p *converter) redirect(redir *syntax.Redirect) (ast.Redirect, error) {
	out := ast.Redirect{
		Redirector: ast.NoFd,
		Redirectee: ast.Redirectee{Fd: ast.NoFd},
	}

	if redir.N != nil {
		fd, err := strconv.Atoi(redir.N.Value)
		if err != nil || fd < 0 || fd > 2 {
			return out, p.syntaxError(redir)
		}
		out.Redirector = fd
	}

	target, err := p.word(redir.Word)
	if err != nil {
		return out, err
	}
	if target == "" {
		return out, p.syntaxError(redir)
	}

	switch redir.Op {
	case syntax.RdrIn:
		out.Instruction = ast.Input
		out.Redirectee.Filename = target
	case syntax.RdrOut, syntax.ClbOut:
		out.Instruction = ast.Output
		out.Redirectee.Filename = target
	case syntax.AppOut:
		out.Instruction = ast.Append
		out.Redirectee.Filename = target
	case syntax.DplIn, syntax.DplOut:
		fd, err := strconv.Atoi(target)
		if err != nil || fd < 0 || fd > 2 {
			return out, p.syntaxError(redir)
		}
		out.Instruction = ast.Output
		if redir.Op == syntax.DplIn {
			out.Instruction = ast.Input
		}
		out.Redirectee.Fd = fd
	default:
		return out, p.syntaxError(redir)
	}
	return out, nil
}

func (p *converter) word(word *syntax.Word) (string, error) {
	if word == nil {
		return "", nil
	}

	var out []string
	for i, part := range word.Parts {
		value, err := p.wordPart(part, i == 0)
		if err != nil {
			return "", err
		}
		out = append(out, value)
	}
	return strings.Join(out, ""), nil
}

func (p *converter) wordPart(part syntax.WordPart, leading bool) (string, error) {
	switch part := part.(type) {
	case *syntax.Lit:
		if leading {
			return p.tilde(part.Value), nil
		}
		return part.Value, nil

	case *syntax.SglQuoted:
		if part.Dollar {
			return "", p.syntaxError(part)
		}
		return part.Value, nil

	case *syntax.DblQuoted:
		var out []string
		for _, subPart := range part.Parts {
			value, err := p.wordPart(subPart, false)
			if err != nil {
				return "", err
			}
			out = append(out, value)
		}
		return strings.Join(out, ""), nil

	case *syntax.ParamExp:
		if part.Param == nil || part.Excl || part.Length || part.Width ||
			part.Index != nil || part.Slice != nil || part.Repl != nil ||
			part.Names != 0 || part.Exp != nil {
			return "", p.syntaxError(part)
		}
		return p.env.Getenv(part.Param.Value), nil

	default:
		return "", p.syntaxError(part)
	}
}

// tilde expands a leading ~ or ~/ to HOME.
func (p *converter) tilde(lit string) string {
	switch {
	case lit == "~":
		return p.env.Getenv("HOME")
	case strings.HasPrefix(lit, "~/"):
		return p.env.Getenv("HOME") + lit[1:]
	default:
		return lit
	}
}

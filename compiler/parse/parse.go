package parse

import (
	"context"
	"fmt"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/ast"
	"github.com/slowlang/bfc/compiler/set"
)

type (
	State struct {
		files []file
	}

	file struct {
		name string
		text []byte
	}

	// SyntaxError is a bracket mismatch.
	// Pos is nil when the error is found at the end of input.
	SyntaxError struct {
		Pos *ast.Position
		Msg string
	}
)

// Commands are the bytes that mean something, everything else is a comment.
var Commands = set.Of[byte]('+', '-', '>', '<', '.', ',', '[', ']')

func ParseFile(ctx context.Context, name string) ([]ast.Node, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(data), "name", name)

	return Parse(ctx, data)
}

// Parse parses a single program. Syntax errors are returned as is.
func Parse(ctx context.Context, text []byte) ([]ast.Node, error) {
	pos := ast.Position{Line: 1}

	return parseBody(ctx, text, &pos, false)
}

func New() *State {
	return &State{}
}

func (s *State) AddFile(name string, text []byte) {
	s.files = append(s.files, file{
		name: name,
		text: text,
	})
}

// Parse parses all the added files and concatenates them in order.
// Brackets must be balanced within each file.
func (s *State) Parse(ctx context.Context) (prog []ast.Node, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "parse", "files", len(s.files))
	defer tr.Finish("err", &err)

	for _, f := range s.files {
		x, err := Parse(ctx, f.text)
		if err != nil {
			return nil, errors.Wrap(err, "file %v", f.name)
		}

		tr.V("parse_files").Printw("file parsed", "name", f.name, "size", len(f.text), "nodes", len(x))

		prog = append(prog, x...)
	}

	return prog, nil
}

func parseBody(ctx context.Context, b []byte, pos *ast.Position, nested bool) (body []ast.Node, err error) {
	for pos.Total < len(b) {
		c := b[pos.Total]

		pos.Total++
		pos.Column++

		if !Commands.IsSet(c) {
			if c == '\n' {
				pos.Line++
				pos.Column = 0
			}

			continue
		}

		switch c {
		case '+':
			body = append(body, ast.Inc{})
		case '-':
			body = append(body, ast.Dec{})
		case '>':
			body = append(body, ast.Forward{})
		case '<':
			body = append(body, ast.Back{})
		case '.':
			body = append(body, ast.Output{})
		case ',':
			body = append(body, ast.Input{})
		case '[':
			start := *pos

			sub, err := parseBody(ctx, b, pos, true)
			if err != nil {
				return nil, err
			}

			body = append(body, &ast.Loop{
				Body:     sub,
				StartsAt: &start,
			})
		case ']':
			if nested {
				return body, nil
			}

			at := *pos

			return nil, NewSyntaxError(&at, "unexpected closing bracket")
		}
	}

	if nested {
		return nil, NewSyntaxError(nil, "closing bracket expected, reached end of file instead")
	}

	return body, nil
}

func NewSyntaxError(pos *ast.Position, msg string) SyntaxError {
	return SyntaxError{
		Pos: pos,
		Msg: msg,
	}
}

func (e SyntaxError) Error() string {
	if e.Pos == nil {
		return e.Msg
	}

	return fmt.Sprintf("%s at %v", e.Msg, *e.Pos)
}

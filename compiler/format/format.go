// Package format prints programs for humans.
package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/ast"
	"github.com/slowlang/bfc/compiler/ir"
)

// Format appends x to b.
// ir.Program is printed as an indented listing, one node per line.
// []ast.Node is printed back as source text without comments.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	switch x := x.(type) {
	case ir.Program:
		return formatIR(ctx, b, x, 0)
	case []ast.Node:
		return formatAST(ctx, b, x)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatIR(ctx context.Context, b []byte, prog ir.Program, d int) (_ []byte, err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ir.Loop:
			b = app(b, d, "loop\n")

			b, err = formatIR(ctx, b, x.Body, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "loop body")
			}

			b = app(b, d, "end\n")
		case ir.Add, ir.Sub, ir.Forward, ir.Back, ir.Output, ir.Input:
			b = app(b, d, "%v %d\n", x.Kind(), ir.Count(x))
		default:
			return nil, errors.New("unsupported node: %T", x)
		}
	}

	return b, nil
}

func formatAST(ctx context.Context, b []byte, prog []ast.Node) (_ []byte, err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ast.Inc:
			b = append(b, '+')
		case ast.Dec:
			b = append(b, '-')
		case ast.Forward:
			b = append(b, '>')
		case ast.Back:
			b = append(b, '<')
		case ast.Output:
			b = append(b, '.')
		case ast.Input:
			b = append(b, ',')
		case *ast.Loop:
			b = append(b, '[')

			b, err = formatAST(ctx, b, x.Body)
			if err != nil {
				return nil, err
			}

			b = append(b, ']')
		default:
			return nil, errors.New("unsupported node: %T", x)
		}
	}

	return b, nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	for i := 0; i < d; i++ {
		b = append(b, "  "...)
	}

	b = hfmt.Appendf(b, f, args...)

	return b
}

// Package analyze lowers the syntax tree into the intermediate representation.
//
// Runs of identical adjacent commands are coalesced into a single counted node.
// A loop immediately followed by other loops ("[a][b][c]") keeps only the first one:
// the first loop always exits with a zero cell, so the following ones never run.
// This is a heuristic restricted to textually adjacent loops, not a general
// reachability analysis.
package analyze

import (
	"context"
	"fmt"
	"reflect"

	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/ast"
	"github.com/slowlang/bfc/compiler/ir"
)

type (
	// Warning is a non-fatal diagnostic.
	Warning struct {
		Pos *ast.Position
		Msg string
	}

	UnsupportedASTNodeError struct{ T ast.Node }

	state struct {
		tr tlog.Span

		warnings []Warning
	}
)

func Analyze(ctx context.Context, prog []ast.Node) (res ir.Program, ws []Warning) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "analyze", "nodes", len(prog))
	defer func() {
		tr.Finish("ir_nodes", len(res), "warnings", len(ws))
	}()

	s := &state{tr: tr}

	res = s.lower(prog)

	if tr.If("dump_ir") {
		st := ir.Collect(res)

		tr.Printw("ir", "nodes", st.Nodes, "loops", st.Loops, "depth", st.Depth, "kinds", st.Kinds)
	}

	return res, s.warnings
}

func (s *state) lower(prog []ast.Node) (res []ir.Node) {
	for i := 0; i < len(prog); {
		k := kindOf(prog[i])

		j := i + 1
		for j < len(prog) && kindOf(prog[j]) == k {
			j++
		}

		run := prog[i:j]
		i = j

		if k != ir.KindLoop {
			res = append(res, ir.Leaf(k, len(run)))
			continue
		}

		if len(run) > 1 {
			s.eliminated(run[1].(*ast.Loop))
		}

		l := run[0].(*ast.Loop)

		res = append(res, ir.Loop{Body: s.lower(l.Body)})
	}

	return res
}

func (s *state) eliminated(l *ast.Loop) {
	w := Warning{
		Pos: l.StartsAt,
		Msg: "unreachable code eliminated",
	}

	if w.Pos != nil {
		w.Msg = fmt.Sprintf("%s at line %d, column %d", w.Msg, w.Pos.Line, w.Pos.Column)
	}

	s.warnings = append(s.warnings, w)

	if w.Pos != nil {
		s.tr.Printw(w.Msg, "pos", *w.Pos, "", tlog.Warn)
	} else {
		s.tr.Printw(w.Msg, "", tlog.Warn)
	}
}

func kindOf(x ast.Node) ir.Kind {
	switch x := x.(type) {
	case ast.Inc:
		return ir.KindAdd
	case ast.Dec:
		return ir.KindSub
	case ast.Forward:
		return ir.KindForward
	case ast.Back:
		return ir.KindBack
	case ast.Output:
		return ir.KindOutput
	case ast.Input:
		return ir.KindInput
	case *ast.Loop:
		return ir.KindLoop
	default:
		panic(NewUnsupportedASTNode(x))
	}
}

func (w Warning) String() string {
	return w.Msg
}

func NewUnsupportedASTNode(x ast.Node) UnsupportedASTNodeError {
	return UnsupportedASTNodeError{
		T: x,
	}
}

func (e UnsupportedASTNodeError) Error() string {
	return fmt.Sprintf("unsupported node: %v", reflect.TypeOf(e.T))
}

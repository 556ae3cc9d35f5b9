package ast

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Node is one of Inc, Dec, Forward, Back, Output, Input or *Loop.
	Node interface {
		node()
	}

	// Position points right after a character of the source text.
	// Line and Column are 1-based, Total is the byte offset.
	Position struct {
		Total  int
		Line   int
		Column int
	}

	Inc     struct{}
	Dec     struct{}
	Forward struct{}
	Back    struct{}
	Output  struct{}
	Input   struct{}

	Loop struct {
		Body []Node

		// StartsAt is nil for loops built without source text.
		StartsAt *Position
	}
)

func (Inc) node()     {}
func (Dec) node()     {}
func (Forward) node() {}
func (Back) node()    {}
func (Output) node()  {}
func (Input) node()   {}
func (*Loop) node()   {}

// Equal compares trees structurally. Loop positions are ignored.
func Equal(x, y []Node) bool {
	if len(x) != len(y) {
		return false
	}

	for i := range x {
		xl, xok := x[i].(*Loop)
		yl, yok := y[i].(*Loop)

		switch {
		case xok && yok:
			if !Equal(xl.Body, yl.Body) {
				return false
			}
		case xok || yok:
			return false
		case x[i] != y[i]:
			return false
		}
	}

	return true
}

func (p Position) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 3)

	b = e.AppendKeyInt(b, "total", p.Total)
	b = e.AppendKeyInt(b, "line", p.Line)
	b = e.AppendKeyInt(b, "column", p.Column)

	return b
}

func (p Position) String() string {
	return "line " + strconv.Itoa(p.Line) + " column " + strconv.Itoa(p.Column)
}

package ir

import (
	"strconv"

	"github.com/slowlang/bfc/compiler/ast"
)

type (
	// Node is one of Add, Sub, Forward, Back, Output, Input or Loop.
	// Leaf counts are always at least 1.
	Node interface {
		Kind() Kind
	}

	Kind int

	Program = []Node

	// Add adds N to the current cell modulo 256.
	Add struct{ N int }

	// Sub subtracts N from the current cell modulo 256.
	Sub struct{ N int }

	Forward struct{ N int }
	Back    struct{ N int }

	// Output writes the current cell N times.
	Output struct{ N int }

	// Input reads N bytes, the last one is stored in the current cell.
	Input struct{ N int }

	// Loop repeats Body while the current cell is not zero.
	Loop struct {
		Body []Node
	}
)

const (
	KindAdd Kind = iota
	KindSub
	KindForward
	KindBack
	KindOutput
	KindInput
	KindLoop

	numKinds
)

var kindNames = [...]string{
	KindAdd:     "add",
	KindSub:     "sub",
	KindForward: "forward",
	KindBack:    "back",
	KindOutput:  "output",
	KindInput:   "input",
	KindLoop:    "loop",
}

func (Add) Kind() Kind     { return KindAdd }
func (Sub) Kind() Kind     { return KindSub }
func (Forward) Kind() Kind { return KindForward }
func (Back) Kind() Kind    { return KindBack }
func (Output) Kind() Kind  { return KindOutput }
func (Input) Kind() Kind   { return KindInput }
func (Loop) Kind() Kind    { return KindLoop }

// Kinds lists every node kind. Backends are tested against it.
func Kinds() []Kind {
	l := make([]Kind, numKinds)

	for k := range l {
		l[k] = Kind(k)
	}

	return l
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}

	return kindNames[k]
}

// Count returns the repeat count of a leaf and 0 for a Loop.
func Count(x Node) int {
	switch x := x.(type) {
	case Add:
		return x.N
	case Sub:
		return x.N
	case Forward:
		return x.N
	case Back:
		return x.N
	case Output:
		return x.N
	case Input:
		return x.N
	default:
		return 0
	}
}

// Leaf makes a leaf node of kind k. It panics on KindLoop.
func Leaf(k Kind, n int) Node {
	switch k {
	case KindAdd:
		return Add{N: n}
	case KindSub:
		return Sub{N: n}
	case KindForward:
		return Forward{N: n}
	case KindBack:
		return Back{N: n}
	case KindOutput:
		return Output{N: n}
	case KindInput:
		return Input{N: n}
	}

	panic("not a leaf kind: " + k.String())
}

func Equal(x, y []Node) bool {
	if len(x) != len(y) {
		return false
	}

	for i := range x {
		if x[i].Kind() != y[i].Kind() {
			return false
		}

		if l, ok := x[i].(Loop); ok {
			if !Equal(l.Body, y[i].(Loop).Body) {
				return false
			}

			continue
		}

		if Count(x[i]) != Count(y[i]) {
			return false
		}
	}

	return true
}

// Expand turns every counted leaf back into that many single commands.
func Expand(prog []Node) []ast.Node {
	var res []ast.Node

	for _, x := range prog {
		var c ast.Node

		switch x := x.(type) {
		case Add:
			c = ast.Inc{}
		case Sub:
			c = ast.Dec{}
		case Forward:
			c = ast.Forward{}
		case Back:
			c = ast.Back{}
		case Output:
			c = ast.Output{}
		case Input:
			c = ast.Input{}
		case Loop:
			res = append(res, &ast.Loop{Body: Expand(x.Body)})

			continue
		default:
			panic(x)
		}

		for i := 0; i < Count(x); i++ {
			res = append(res, c)
		}
	}

	return res
}

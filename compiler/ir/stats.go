package ir

import "github.com/slowlang/bfc/compiler/set"

type (
	Stats struct {
		Nodes int
		Loops int
		Depth int

		// Kinds are the node kinds the program uses.
		Kinds set.Bits[Kind]
	}
)

func Collect(prog []Node) (s Stats) {
	s.collect(prog, 1)

	return s
}

func (s *Stats) collect(prog []Node, d int) {
	for _, x := range prog {
		s.Nodes++
		s.Kinds.Set(x.Kind())

		l, ok := x.(Loop)
		if !ok {
			continue
		}

		s.Loops++
		s.Depth = max(s.Depth, d)

		s.collect(l.Body, d+1)
	}
}

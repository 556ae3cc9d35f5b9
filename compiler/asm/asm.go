// Package asm holds what the assembly text generators share:
// a line buffer, loop label paths and the unimplemented node error.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"tlog.app/go/loc"

	"github.com/slowlang/bfc/compiler/ir"
)

type (
	// Unit is one translation unit being emitted.
	Unit struct {
		// Width is the column width mnemonics are padded to.
		Width int

		lines []string
	}

	// Labels numbers sibling loops on one nesting level.
	// Nested loops extend the parent path, so labels look like _0, _0_1, _0_1_2.
	Labels struct {
		path string
		next int
	}

	UnimplementedError struct {
		Kind   ir.Kind
		Target string
		PC     loc.PC
	}
)

const indent = "    "

func NewUnit(width int) *Unit {
	return &Unit{Width: width}
}

// Raw appends the line as is.
func (u *Unit) Raw(lines ...string) {
	u.lines = append(u.lines, lines...)
}

// Op appends an indented instruction.
func (u *Unit) Op(op string, args string, a ...any) {
	if args == "" {
		u.lines = append(u.lines, indent+op)
		return
	}

	if len(a) != 0 {
		args = fmt.Sprintf(args, a...)
	}

	pad := u.Width - len(op)
	if pad < 1 {
		pad = 1
	}

	u.lines = append(u.lines, indent+op+strings.Repeat(" ", pad)+args)
}

// Label appends a label definition.
func (u *Unit) Label(name string) {
	u.lines = append(u.lines, name+":")
}

// Directive appends an indented assembler directive.
func (u *Unit) Directive(d string) {
	u.lines = append(u.lines, indent+d)
}

func (u *Unit) Blank() {
	u.lines = append(u.lines, "")
}

// Repeat runs f n times.
func (u *Unit) Repeat(n int, f func(i int)) {
	for i := 0; i < n; i++ {
		f(i)
	}
}

// Lines returns the emitted lines. The Unit must not be used after that.
func (u *Unit) Lines() []string {
	l := u.lines
	u.lines = nil

	return l
}

func (u *Unit) Len() int { return len(u.lines) }

func Root() *Labels { return &Labels{} }

// Next returns the path of the next sibling loop.
func (l *Labels) Next() string {
	p := l.path + "_" + strconv.Itoa(l.next)
	l.next++

	return p
}

// Nested returns the numbering for the body of the loop with path p.
func Nested(p string) *Labels {
	return &Labels{path: p}
}

func (l *Labels) Path() string { return l.path }

// Start and End are the loop label names for path p.
func Start(p string) string { return "start" + p }
func End(p string) string   { return "end" + p }

// Cell reduces a cell amount modulo 256.
func Cell(n int) int {
	return n & 0xff
}

// Chunks splits n into parts no bigger than max.
func Chunks(n, max int) []int {
	if n <= max {
		return []int{n}
	}

	l := make([]int, 0, n/max+1)

	for n > max {
		l = append(l, max)
		n -= max
	}

	if n > 0 {
		l = append(l, n)
	}

	return l
}

// NewUnimplementedError records the calling generator location.
func NewUnimplementedError(x ir.Node, target string) UnimplementedError {
	return UnimplementedError{
		Kind:   x.Kind(),
		Target: target,
		PC:     loc.Caller(1),
	}
}

func (e UnimplementedError) Error() string {
	return fmt.Sprintf("%v: %v node is not implemented (at %v), this is a bug", e.Target, e.Kind, e.PC)
}

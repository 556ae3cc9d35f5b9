package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/bfc/compiler/ir"
)

func TestUnit(t *testing.T) {
	u := NewUnit(6)

	u.Directive(".globl run")
	u.Label("run")
	u.Op("inc", "byte ptr [rdi]")
	u.Op("add", "rdi, %d", 3)
	u.Op("movzx", "rdi, byte ptr [rdi]")
	u.Op("cmovs", "eax, edx")
	u.Op("ret", "")
	u.Blank()
	u.Raw("1:  stb    r3, 0(r30)")

	assert.Equal(t, 9, u.Len())

	assert.Equal(t, []string{
		"    .globl run",
		"run:",
		"    inc   byte ptr [rdi]",
		"    add   rdi, 3",
		"    movzx rdi, byte ptr [rdi]",
		"    cmovs eax, edx",
		"    ret",
		"",
		"1:  stb    r3, 0(r30)",
	}, u.Lines())
}

func TestUnitNoFormatting(t *testing.T) {
	u := NewUnit(7)

	u.Op("incb", "(%rdi)")
	u.Op("addb", "$%d, (%%rdi)", 5)

	assert.Equal(t, []string{
		"    incb   (%rdi)",
		"    addb   $5, (%rdi)",
	}, u.Lines())
}

func TestLabels(t *testing.T) {
	root := Root()

	a := root.Next()
	b := root.Next()

	assert.Equal(t, "_0", a)
	assert.Equal(t, "_1", b)

	n := Nested(b)

	assert.Equal(t, "_1", n.Path())
	assert.Equal(t, "_1_0", n.Next())
	assert.Equal(t, "_1_1", n.Next())

	assert.Equal(t, "start_1_0", Start("_1_0"))
	assert.Equal(t, "end_1_0", End("_1_0"))
}

func TestChunks(t *testing.T) {
	assert.Equal(t, []int{1}, Chunks(1, 255))
	assert.Equal(t, []int{255}, Chunks(255, 255))
	assert.Equal(t, []int{255, 1}, Chunks(256, 255))
	assert.Equal(t, []int{4095, 4095, 10}, Chunks(8200, 4095))
}

func TestCell(t *testing.T) {
	assert.Equal(t, 1, Cell(1))
	assert.Equal(t, 255, Cell(255))
	assert.Equal(t, 0, Cell(256))
	assert.Equal(t, 44, Cell(300))
}

func TestUnimplementedError(t *testing.T) {
	err := NewUnimplementedError(ir.Output{N: 1}, "z80")

	assert.Equal(t, ir.KindOutput, err.Kind)
	assert.Equal(t, "z80", err.Target)
	assert.Contains(t, err.Error(), "z80: output node is not implemented (at ")
	assert.Contains(t, err.Error(), "asm_test.go")
	assert.Contains(t, err.Error(), "), this is a bug")
}

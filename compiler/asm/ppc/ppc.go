// Package ppc emits 32-bit PowerPC assembly for Mach-O systems.
//
// Symbols carry the leading underscore and no ELF sections are emitted.
package ppc

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/asm"
	"github.com/slowlang/bfc/compiler/ir"
)

type Generator struct{}

// maxImm is the widest signed 16-bit immediate.
const maxImm = 1<<15 - 1

func (Generator) Name() string { return "ppc32" }

func (g Generator) Generate(ctx context.Context, prog ir.Program) (lines []string, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "ppc: generate")
	defer func() {
		tr.Finish("lines", len(lines), "err", err)
	}()

	u := asm.NewUnit(7)

	u.Directive(".machine ppc7400")
	u.Directive(".text")
	u.Directive(".align 2")
	u.Directive(".globl _run")
	u.Label("_run")
	u.Op("mflr", "r0")
	u.Op("stw", "r0, 8(r1)")
	u.Op("stw", "r30, -8(r1)")
	u.Op("stwu", "r1, -80(r1)")

	err = g.body(u, prog, asm.Root())
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	u.Op("addi", "r1, r1, 80")
	u.Op("lwz", "r30, -8(r1)")
	u.Op("lwz", "r0, 8(r1)")
	u.Op("mtlr", "r0")
	u.Op("blr", "")

	return u.Lines(), nil
}

func (g Generator) body(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			u.Op("lbz", "r4, 0(r3)")
			u.Op("addi", "r4, r4, %d", asm.Cell(x.N))
			u.Op("stb", "r4, 0(r3)")
		case ir.Sub:
			u.Op("lbz", "r4, 0(r3)")
			u.Op("subi", "r4, r4, %d", asm.Cell(x.N))
			u.Op("stb", "r4, 0(r3)")
		case ir.Forward:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("addi", "r3, r3, %d", c)
			}
		case ir.Back:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("subi", "r3, r3, %d", c)
			}
		case ir.Output:
			u.Op("mr", "r30, r3")
			u.Op("lbz", "r3, 0(r3)")

			u.Repeat(x.N, func(int) {
				u.Op("bl", "_putchar")
			})

			u.Op("mr", "r3, r30")
		case ir.Input:
			u.Op("mr", "r30, r3")

			u.Repeat(x.N, func(int) {
				u.Op("bl", "_getchar")
			})

			u.Op("cmpwi", "r3, 0")
			u.Op("bge+", "1f")
			u.Op("li", "r3, 0")
			u.Raw("1:  stb    r3, 0(r30)")
			u.Op("mr", "r3, r30")
		case ir.Loop:
			p := labels.Next()

			u.Label(asm.Start(p))
			u.Op("lbz", "r4, 0(r3)")
			u.Op("cmplwi", "r4, 0")
			u.Op("beq-", asm.End(p))

			err = g.body(u, x.Body, asm.Nested(p))
			if err != nil {
				return err
			}

			u.Op("b", asm.Start(p))
			u.Label(asm.End(p))
		default:
			return asm.NewUnimplementedError(x, g.Name())
		}
	}

	return nil
}

// Package riscv emits RV64 assembly for the LP64 calling convention.
package riscv

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/asm"
	"github.com/slowlang/bfc/compiler/ir"
)

type Generator struct{}

// maxImm is the widest positive 12-bit immediate.
const maxImm = 2047

func (Generator) Name() string { return "riscv64" }

func (g Generator) Generate(ctx context.Context, prog ir.Program) (lines []string, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "riscv: generate")
	defer func() {
		tr.Finish("lines", len(lines), "err", err)
	}()

	u := asm.NewUnit(7)

	u.Directive(".text")
	u.Directive(".align 1")
	u.Directive(".globl run")
	u.Directive(".type run, @function")
	u.Label("run")
	u.Op("addi", "sp, sp, -16")
	u.Op("sd", "ra, 8(sp)")
	u.Op("sd", "s0, 0(sp)")

	err = g.body(u, prog, asm.Root())
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	u.Op("ld", "s0, 0(sp)")
	u.Op("ld", "ra, 8(sp)")
	u.Op("addi", "sp, sp, 16")
	u.Op("ret", "")
	u.Blank()
	u.Directive(`.section .note.GNU-stack,"",@progbits`)

	return u.Lines(), nil
}

func (g Generator) body(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			u.Op("lb", "a1, 0(a0)")
			u.Op("addi", "a1, a1, %d", asm.Cell(x.N))
			u.Op("sb", "a1, 0(a0)")
		case ir.Sub:
			u.Op("lb", "a1, 0(a0)")
			u.Op("addi", "a1, a1, -%d", asm.Cell(x.N))
			u.Op("sb", "a1, 0(a0)")
		case ir.Forward:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("addi", "a0, a0, %d", c)
			}
		case ir.Back:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("addi", "a0, a0, -%d", c)
			}
		case ir.Output:
			u.Op("mv", "s0, a0")
			u.Op("lb", "a0, 0(a0)")

			u.Repeat(x.N, func(int) {
				u.Op("call", "putchar")
			})

			u.Op("mv", "a0, s0")
		case ir.Input:
			u.Op("mv", "s0, a0")

			u.Repeat(x.N, func(int) {
				u.Op("call", "getchar")
			})

			// a0 = a0 > 0 ? a0 : 0
			u.Op("sgtz", "a1, a0")
			u.Op("neg", "a1, a1")
			u.Op("and", "a0, a0, a1")
			u.Op("sb", "a0, 0(s0)")
			u.Op("mv", "a0, s0")
		case ir.Loop:
			p := labels.Next()

			u.Label(asm.Start(p))
			u.Op("lb", "a1, 0(a0)")
			u.Op("beq", "a1, zero, %s", asm.End(p))

			err = g.body(u, x.Body, asm.Nested(p))
			if err != nil {
				return err
			}

			u.Op("j", asm.Start(p))
			u.Label(asm.End(p))
		default:
			return asm.NewUnimplementedError(x, g.Name())
		}
	}

	return nil
}

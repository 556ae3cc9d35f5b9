// Package arm64 emits AArch64 assembly.
package arm64

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/asm"
	"github.com/slowlang/bfc/compiler/ir"
)

type Generator struct{}

// maxImm is the widest unshifted add/sub immediate.
const maxImm = 4095

func (Generator) Name() string { return "arm64" }

func (g Generator) Generate(ctx context.Context, prog ir.Program) (lines []string, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "arm64: generate")
	defer func() {
		tr.Finish("lines", len(lines), "err", err)
	}()

	u := asm.NewUnit(7)

	u.Directive(".arch armv8-a")
	u.Blank()
	u.Directive(".text")
	u.Directive(".align 2")
	u.Directive(".globl run")
	u.Directive(".type run, @function")
	u.Label("run")
	u.Op("stp", "x29, x30, [sp, -32]!")
	u.Op("mov", "x29, sp")
	u.Op("str", "x19, [sp, 16]")

	err = g.body(u, prog, asm.Root())
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	u.Op("ldr", "x19, [sp, 16]")
	u.Op("ldp", "x29, x30, [sp], 32")
	u.Op("ret", "")
	u.Blank()
	u.Directive(`.section .note.GNU-stack,"",@progbits`)

	return u.Lines(), nil
}

func (g Generator) body(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			u.Op("ldrb", "w1, [x0]")
			u.Op("add", "w1, w1, %d", asm.Cell(x.N))
			u.Op("strb", "w1, [x0]")
		case ir.Sub:
			u.Op("ldrb", "w1, [x0]")
			u.Op("sub", "w1, w1, %d", asm.Cell(x.N))
			u.Op("strb", "w1, [x0]")
		case ir.Forward:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("add", "x0, x0, %d", c)
			}
		case ir.Back:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("sub", "x0, x0, %d", c)
			}
		case ir.Output:
			u.Op("mov", "x19, x0")
			u.Op("ldrb", "w0, [x0]")

			u.Repeat(x.N, func(int) {
				u.Op("bl", "putchar")
			})

			u.Op("mov", "x0, x19")
		case ir.Input:
			u.Op("mov", "x19, x0")

			u.Repeat(x.N, func(int) {
				u.Op("bl", "getchar")
			})

			u.Op("cmp", "w0, 0")
			u.Op("csel", "w1, w0, wzr, ge")
			u.Op("mov", "x0, x19")
			u.Op("strb", "w1, [x0]")
		case ir.Loop:
			p := labels.Next()

			u.Label(asm.Start(p))
			u.Op("ldrb", "w1, [x0]")
			u.Op("cbz", "w1, %s", asm.End(p))

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

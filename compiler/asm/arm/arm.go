// Package arm emits ARMv7 assembly in ARM or Thumb-2 encoding.
package arm

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/asm"
	"github.com/slowlang/bfc/compiler/ir"
)

type Generator struct {
	Thumb bool
}

const (
	// maxImm keeps every immediate encodable as a modified constant.
	maxImm = 255

	// cbz reaches at most 126 bytes forward.
	// Instructions are counted as 4 bytes each to stay on the safe side.
	maxCBZBody = 126/4 - 1
)

func (g Generator) Name() string {
	if g.Thumb {
		return "arm32-thumb"
	}

	return "arm32"
}

func (g Generator) Generate(ctx context.Context, prog ir.Program) (lines []string, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "arm: generate", "target", g.Name())
	defer func() {
		tr.Finish("lines", len(lines), "err", err)
	}()

	u := asm.NewUnit(7)

	u.Directive(".arch armv7-a")

	if g.Thumb {
		u.Directive(".thumb")
	} else {
		u.Directive(".arm")
	}

	u.Directive(".syntax unified")
	u.Blank()
	u.Directive(".text")

	if g.Thumb {
		u.Directive(".align 1")
	} else {
		u.Directive(".align 2")
	}

	u.Directive(".globl run")
	u.Directive(".type run, %function")
	u.Label("run")
	u.Op("push", "{r4, lr}")

	err = g.body(u, prog, asm.Root())
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	u.Op("pop", "{r4, pc}")
	u.Blank()
	u.Directive(`.section .note.GNU-stack,"",%progbits`)

	return u.Lines(), nil
}

func (g Generator) body(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			u.Op("ldrb", "r1, [r0]")
			u.Op("add", "r1, r1, %d", asm.Cell(x.N))
			u.Op("strb", "r1, [r0]")
		case ir.Sub:
			u.Op("ldrb", "r1, [r0]")
			u.Op("sub", "r1, r1, %d", asm.Cell(x.N))
			u.Op("strb", "r1, [r0]")
		case ir.Forward:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("add", "r0, r0, %d", c)
			}
		case ir.Back:
			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("sub", "r0, r0, %d", c)
			}
		case ir.Output:
			u.Op("mov", "r4, r0")
			u.Op("ldrb", "r0, [r0]")

			// putchar returns its argument
			u.Repeat(x.N, func(int) {
				u.Op("bl", "putchar")
			})

			u.Op("mov", "r0, r4")
		case ir.Input:
			u.Op("mov", "r4, r0")

			u.Repeat(x.N, func(int) {
				u.Op("bl", "getchar")
			})

			u.Op("cmp", "r0, 0")
			u.Op("ite", "ge")
			u.Op("movge", "r1, r0")
			u.Op("movlt", "r1, 0")
			u.Op("mov", "r0, r4")
			u.Op("strb", "r1, [r0]")
		case ir.Loop:
			p := labels.Next()

			sub := asm.NewUnit(u.Width)

			err = g.body(sub, x.Body, asm.Nested(p))
			if err != nil {
				return err
			}

			u.Label(asm.Start(p))
			u.Op("ldrb", "r1, [r0]")

			if g.Thumb && sub.Len() <= maxCBZBody {
				u.Op("cbz", "r1, %s", asm.End(p))
			} else {
				u.Op("cmp", "r1, 0")
				u.Op("beq", asm.End(p))
			}

			u.Raw(sub.Lines()...)

			u.Op("b", asm.Start(p))
			u.Label(asm.End(p))
		default:
			return asm.NewUnimplementedError(x, g.Name())
		}
	}

	return nil
}

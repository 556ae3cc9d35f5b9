// Package i386 emits position independent x86-32 assembly calling libc for I/O.
//
// ebx holds the GOT address for calls through the PLT.
// The tape pointer is loaded from the stack into eax.
package i386

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/asm"
	"github.com/slowlang/bfc/compiler/ir"
)

type (
	Dialect int

	Generator struct {
		Dialect Dialect
	}
)

const (
	GasIntel Dialect = iota
	GasATT
	NASM
)

const maxImm = 1<<31 - 1

func (g Generator) Name() string {
	return "x86-32-" + g.Dialect.String()
}

func (g Generator) Generate(ctx context.Context, prog ir.Program) (lines []string, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "i386: generate", "target", g.Name())
	defer func() {
		tr.Finish("lines", len(lines), "err", err)
	}()

	var u *asm.Unit

	switch g.Dialect {
	case GasIntel, NASM:
		u = asm.NewUnit(6)
	case GasATT:
		u = asm.NewUnit(7)
	default:
		return nil, errors.New("unsupported dialect: %v", g.Dialect)
	}

	g.prologue(u)

	if g.Dialect == GasATT {
		err = g.att(u, prog, asm.Root())
	} else {
		err = g.intel(u, prog, asm.Root())
	}
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	g.epilogue(u)

	return u.Lines(), nil
}

func (g Generator) prologue(u *asm.Unit) {
	switch g.Dialect {
	case NASM:
		u.Directive("global run")
		u.Directive("extern getchar, putchar, _GLOBAL_OFFSET_TABLE_")
		u.Blank()
		u.Directive("section .text")
		u.Label("get_pc")
		u.Op("mov", "ebx, [esp]")
		u.Op("ret", "")
		u.Blank()
		u.Label("run")
		u.Op("push", "ebx")
		u.Op("call", "get_pc")
		u.Op("add", "ebx, _GLOBAL_OFFSET_TABLE_ + $$ - $ wrt ..gotpc")
		u.Op("mov", "eax, [esp + 8]")
	case GasATT:
		u.Directive(".text")
		u.Label("get_pc")
		u.Op("movl", "(%esp), %ebx")
		u.Op("ret", "")
		u.Blank()
		u.Directive(".globl run")
		u.Directive(".type run, @function")
		u.Label("run")
		u.Op("pushl", "%ebx")
		u.Op("call", "get_pc")
		u.Op("addl", "$_GLOBAL_OFFSET_TABLE_, %ebx")
		u.Op("movl", "8(%esp), %eax")
	default:
		u.Directive(".intel_syntax noprefix")
		u.Blank()
		u.Directive(".text")
		u.Label("get_pc")
		u.Op("mov", "ebx, dword ptr [esp]")
		u.Op("ret", "")
		u.Blank()
		u.Directive(".globl run")
		u.Directive(".type run, @function")
		u.Label("run")
		u.Op("push", "ebx")
		u.Op("call", "get_pc")
		u.Op("add", "ebx, offset _GLOBAL_OFFSET_TABLE_")
		u.Op("mov", "eax, dword ptr [esp + 8]")
	}
}

func (g Generator) epilogue(u *asm.Unit) {
	if g.Dialect == GasATT {
		u.Op("popl", "%ebx")
	} else {
		u.Op("pop", "ebx")
	}

	u.Op("ret", "")
	u.Blank()

	if g.Dialect == NASM {
		u.Directive("section .note.GNU-stack noalloc noexec nowrite progbits")
	} else {
		u.Directive(`.section .note.GNU-stack,"",@progbits`)
	}
}

func (g Generator) intel(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	ptr, plt := " ptr", "@PLT"
	if g.Dialect == NASM {
		ptr, plt = "", " wrt ..plt"
	}

	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("inc", "byte%s [eax]", ptr)
			} else {
				u.Op("add", "byte%s [eax], %d", ptr, a)
			}
		case ir.Sub:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("dec", "byte%s [eax]", ptr)
			} else {
				u.Op("sub", "byte%s [eax], %d", ptr, a)
			}
		case ir.Forward:
			if x.N == 1 {
				u.Op("inc", "eax")
				break
			}

			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("add", "eax, %d", c)
			}
		case ir.Back:
			if x.N == 1 {
				u.Op("dec", "eax")
				break
			}

			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("sub", "eax, %d", c)
			}
		case ir.Output:
			u.Op("push", "eax")
			u.Op("movzx", "ecx, byte%s [eax]", ptr)
			u.Op("push", "ecx")

			u.Repeat(x.N, func(i int) {
				if i != 0 {
					u.Op("mov", "dword%s [esp], eax", ptr)
				}

				u.Op("call", "putchar%s", plt)
			})

			u.Op("add", "esp, 4")
			u.Op("pop", "eax")
		case ir.Input:
			u.Op("push", "eax")
			u.Op("sub", "esp, 4") // keep the stack aligned

			u.Repeat(x.N, func(int) {
				u.Op("call", "getchar%s", plt)
			})

			// ecx = eax < 0 ? 0 : eax
			u.Op("xor", "ecx, ecx")
			u.Op("test", "eax, eax")
			u.Op("setns", "cl")
			u.Op("neg", "ecx")
			u.Op("and", "ecx, eax")

			u.Op("add", "esp, 4")
			u.Op("pop", "eax")
			u.Op("mov", "byte%s [eax], cl", ptr)
		case ir.Loop:
			p := labels.Next()

			u.Label(asm.Start(p))
			u.Op("cmp", "byte%s [eax], 0", ptr)
			u.Op("je", asm.End(p))

			err = g.intel(u, x.Body, asm.Nested(p))
			if err != nil {
				return err
			}

			u.Op("jmp", asm.Start(p))
			u.Label(asm.End(p))
		default:
			return asm.NewUnimplementedError(x, g.Name())
		}
	}

	return nil
}

func (g Generator) att(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("incb", "(%eax)")
			} else {
				u.Op("addb", "$%d, (%%eax)", a)
			}
		case ir.Sub:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("decb", "(%eax)")
			} else {
				u.Op("subb", "$%d, (%%eax)", a)
			}
		case ir.Forward:
			if x.N == 1 {
				u.Op("incl", "%eax")
				break
			}

			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("addl", "$%d, %%eax", c)
			}
		case ir.Back:
			if x.N == 1 {
				u.Op("decl", "%eax")
				break
			}

			for _, c := range asm.Chunks(x.N, maxImm) {
				u.Op("subl", "$%d, %%eax", c)
			}
		case ir.Output:
			u.Op("pushl", "%eax")
			u.Op("movzbl", "(%eax), %ecx")
			u.Op("pushl", "%ecx")

			u.Repeat(x.N, func(i int) {
				if i != 0 {
					u.Op("movl", "%eax, (%esp)")
				}

				u.Op("call", "putchar@PLT")
			})

			u.Op("addl", "$4, %esp")
			u.Op("popl", "%eax")
		case ir.Input:
			u.Op("pushl", "%eax")
			u.Op("subl", "$4, %esp")

			u.Repeat(x.N, func(int) {
				u.Op("call", "getchar@PLT")
			})

			u.Op("xorl", "%ecx, %ecx")
			u.Op("testl", "%eax, %eax")
			u.Op("setns", "%cl")
			u.Op("negl", "%ecx")
			u.Op("andl", "%eax, %ecx")

			u.Op("addl", "$4, %esp")
			u.Op("popl", "%eax")
			u.Op("movb", "%cl, (%eax)")
		case ir.Loop:
			p := labels.Next()

			u.Label(asm.Start(p))
			u.Op("cmpb", "$0, (%eax)")
			u.Op("je", asm.End(p))

			err = g.att(u, x.Body, asm.Nested(p))
			if err != nil {
				return err
			}

			u.Op("jmp", asm.Start(p))
			u.Label(asm.End(p))
		default:
			return asm.NewUnimplementedError(x, g.Name())
		}
	}

	return nil
}

func (d Dialect) String() string {
	switch d {
	case GasIntel:
		return "gas-intel"
	case GasATT:
		return "gas-att"
	case NASM:
		return "nasm"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

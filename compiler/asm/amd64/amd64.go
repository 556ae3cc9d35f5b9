// Package amd64 emits x86-64 assembly in GNU as Intel, GNU as AT&T and NASM syntax.
//
// The tape pointer arrives in rdi (System V) and stays there.
// I/O either calls putchar/getchar or issues Linux read/write system calls.
package amd64

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
		Dialect  Dialect
		Syscalls bool
	}

	intel struct {
		Generator

		ptr string
		plt string
	}

	att struct {
		Generator
	}
)

const (
	GasIntel Dialect = iota
	GasATT
	NASM
)

const maxImm = 1<<31 - 1

const (
	sysRead  = 0
	sysWrite = 1
)

func (g Generator) Name() string {
	name := "x86-64"

	if g.Syscalls {
		name += "-linux-syscalls"
	}

	return name + "-" + g.Dialect.String()
}

func (g Generator) Generate(ctx context.Context, prog ir.Program) (lines []string, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "amd64: generate", "target", g.Name())
	defer func() {
		tr.Finish("lines", len(lines), "err", err)
	}()

	switch g.Dialect {
	case GasIntel, NASM:
		e := intel{Generator: g, ptr: " ptr", plt: "@PLT"}
		if g.Dialect == NASM {
			e.ptr, e.plt = "", " wrt ..plt"
		}

		u := asm.NewUnit(6)

		e.prologue(u)

		err = e.body(u, prog, asm.Root())
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}

		e.epilogue(u)

		return u.Lines(), nil
	case GasATT:
		e := att{Generator: g}
		u := asm.NewUnit(7)

		e.prologue(u)

		err = e.body(u, prog, asm.Root())
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}

		e.epilogue(u)

		return u.Lines(), nil
	default:
		return nil, errors.New("unsupported dialect: %v", g.Dialect)
	}
}

func (e intel) prologue(u *asm.Unit) {
	if e.Dialect == NASM {
		u.Directive("global run")

		if !e.Syscalls {
			u.Directive("extern getchar, putchar")
		}

		u.Blank()
		u.Directive("section .text")
		u.Label("run")

		return
	}

	u.Directive(".intel_syntax noprefix")
	u.Blank()
	u.Directive(".text")
	u.Directive(".globl run")
	u.Directive(".type run, @function")
	u.Label("run")
}

func (e intel) epilogue(u *asm.Unit) {
	u.Op("ret", "")
	u.Blank()

	if e.Dialect == NASM {
		u.Directive("section .note.GNU-stack noalloc noexec nowrite progbits")
	} else {
		u.Directive(`.section .note.GNU-stack,"",@progbits`)
	}
}

func (e intel) body(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	reads := 0

	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("inc", "byte%s [rdi]", e.ptr)
			} else {
				u.Op("add", "byte%s [rdi], %d", e.ptr, a)
			}
		case ir.Sub:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("dec", "byte%s [rdi]", e.ptr)
			} else {
				u.Op("sub", "byte%s [rdi], %d", e.ptr, a)
			}
		case ir.Forward:
			e.move(u, "inc", "add", x.N)
		case ir.Back:
			e.move(u, "dec", "sub", x.N)
		case ir.Output:
			if e.Syscalls {
				u.Op("mov", "rsi, rdi")
				u.Op("mov", "edi, 1") // stdout
				u.Op("mov", "edx, 1") // length

				u.Repeat(x.N, func(int) {
					u.Op("mov", "eax, %d", sysWrite)
					u.Op("syscall", "")
				})

				u.Op("mov", "rdi, rsi")

				break
			}

			u.Op("push", "rdi")
			u.Op("movzx", "rdi, byte%s [rdi]", e.ptr)

			u.Repeat(x.N, func(i int) {
				if i != 0 {
					u.Op("mov", "rdi, rax")
				}

				u.Op("call", "putchar%s", e.plt)
			})

			u.Op("pop", "rdi")
		case ir.Input:
			if e.Syscalls {
				done := fmt.Sprintf("read%s_%d_done", labels.Path(), reads)
				reads++

				u.Op("mov", "rsi, rdi")
				u.Op("mov", "edi, 0") // stdin
				u.Op("mov", "edx, 1") // length

				u.Repeat(x.N, func(int) {
					u.Op("mov", "eax, %d", sysRead)
					u.Op("syscall", "")
				})

				u.Op("mov", "rdi, rsi")

				// anything but one byte read means EOF or error
				u.Op("cmp", "eax, 1")
				u.Op("je", done)
				u.Op("mov", "byte%s [rdi], 0", e.ptr)
				u.Label(done)

				break
			}

			u.Op("push", "rdi")

			u.Repeat(x.N, func(int) {
				u.Op("call", "getchar%s", e.plt)
			})

			u.Op("pop", "rdi")

			// EOF is negative, store 0 instead
			u.Op("xor", "edx, edx")
			u.Op("test", "eax, eax")
			u.Op("cmovs", "eax, edx")
			u.Op("mov", "byte%s [rdi], al", e.ptr)
		case ir.Loop:
			p := labels.Next()

			u.Label(asm.Start(p))
			u.Op("cmp", "byte%s [rdi], 0", e.ptr)
			u.Op("je", asm.End(p))

			err = e.body(u, x.Body, asm.Nested(p))
			if err != nil {
				return err
			}

			u.Op("jmp", asm.Start(p))
			u.Label(asm.End(p))
		default:
			return asm.NewUnimplementedError(x, e.Name())
		}
	}

	return nil
}

func (e intel) move(u *asm.Unit, one, many string, n int) {
	if n == 1 {
		u.Op(one, "rdi")
		return
	}

	for _, c := range asm.Chunks(n, maxImm) {
		u.Op(many, "rdi, %d", c)
	}
}

func (e att) prologue(u *asm.Unit) {
	u.Directive(".text")
	u.Directive(".globl run")
	u.Directive(".type run, @function")
	u.Label("run")
}

func (e att) epilogue(u *asm.Unit) {
	u.Op("ret", "")
	u.Blank()
	u.Directive(`.section .note.GNU-stack,"",@progbits`)
}

func (e att) body(u *asm.Unit, prog ir.Program, labels *asm.Labels) (err error) {
	reads := 0

	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("incb", "(%rdi)")
			} else {
				u.Op("addb", "$%d, (%%rdi)", a)
			}
		case ir.Sub:
			if a := asm.Cell(x.N); a == 1 {
				u.Op("decb", "(%rdi)")
			} else {
				u.Op("subb", "$%d, (%%rdi)", a)
			}
		case ir.Forward:
			e.move(u, "incq", "addq", x.N)
		case ir.Back:
			e.move(u, "decq", "subq", x.N)
		case ir.Output:
			if e.Syscalls {
				u.Op("movq", "%rdi, %rsi")
				u.Op("movl", "$1, %edi") // stdout
				u.Op("movl", "$1, %edx") // length

				u.Repeat(x.N, func(int) {
					u.Op("movl", "$%d, %%eax", sysWrite)
					u.Op("syscall", "")
				})

				u.Op("movq", "%rsi, %rdi")

				break
			}

			u.Op("pushq", "%rdi")
			u.Op("movzbq", "(%rdi), %rdi")

			u.Repeat(x.N, func(i int) {
				if i != 0 {
					u.Op("movq", "%rax, %rdi")
				}

				u.Op("call", "putchar@PLT")
			})

			u.Op("popq", "%rdi")
		case ir.Input:
			if e.Syscalls {
				done := fmt.Sprintf("read%s_%d_done", labels.Path(), reads)
				reads++

				u.Op("movq", "%rdi, %rsi")
				u.Op("movl", "$0, %edi") // stdin
				u.Op("movl", "$1, %edx") // length

				u.Repeat(x.N, func(int) {
					u.Op("movl", "$%d, %%eax", sysRead)
					u.Op("syscall", "")
				})

				u.Op("movq", "%rsi, %rdi")

				u.Op("cmpl", "$1, %eax")
				u.Op("je", done)
				u.Op("movb", "$0, (%rdi)")
				u.Label(done)

				break
			}

			u.Op("pushq", "%rdi")

			u.Repeat(x.N, func(int) {
				u.Op("call", "getchar@PLT")
			})

			u.Op("popq", "%rdi")

			// EOF is negative, store 0 instead
			u.Op("xorl", "%edx, %edx")
			u.Op("testl", "%eax, %eax")
			u.Op("cmovsl", "%edx, %eax")
			u.Op("movb", "%al, (%rdi)")
		case ir.Loop:
			p := labels.Next()

			u.Label(asm.Start(p))
			u.Op("cmpb", "$0, (%rdi)")
			u.Op("je", asm.End(p))

			err = e.body(u, x.Body, asm.Nested(p))
			if err != nil {
				return err
			}

			u.Op("jmp", asm.Start(p))
			u.Label(asm.End(p))
		default:
			return asm.NewUnimplementedError(x, e.Name())
		}
	}

	return nil
}

func (e att) move(u *asm.Unit, one, many string, n int) {
	if n == 1 {
		u.Op(one, "%rdi")
		return
	}

	for _, c := range asm.Chunks(n, maxImm) {
		u.Op(many, "$%d, %%rdi", c)
	}
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

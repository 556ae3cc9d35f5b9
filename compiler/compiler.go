package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/analyze"
	"github.com/slowlang/bfc/compiler/back"
	"github.com/slowlang/bfc/compiler/ir"
	"github.com/slowlang/bfc/compiler/jit"
	"github.com/slowlang/bfc/compiler/parse"
	"github.com/slowlang/bfc/compiler/platform"
	"github.com/slowlang/bfc/compiler/shared"
	"github.com/slowlang/bfc/compiler/tape"
	"github.com/slowlang/bfc/compiler/toolchain"
)

type (
	// Runner is a program ready to run on tapes.
	Runner interface {
		Run(t *tape.Tape) error
		Close() error
	}

	// Options configure ToFunction.
	Options struct {
		// Target and Tools are used in platform.NoJIT mode.
		Target back.Target
		Tools  toolchain.Tools

		// JIT libc mode I/O. See jit.Options.
		JIT jit.Options
	}

	jitRunner struct {
		*jit.Func
	}

	libRunner struct {
		*shared.Lib

		dir string
	}
)

// ToIR parses and lowers text.
func ToIR(ctx context.Context, text []byte) (prog ir.Program, ws []analyze.Warning, err error) {
	x, err := parse.Parse(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	prog, ws = analyze.Analyze(ctx, x)

	return prog, ws, nil
}

// ToAsm compiles text into assembly lines for t.
func ToAsm(ctx context.Context, text []byte, t back.Target) (lines []string, err error) {
	prog, _, err := ToIR(ctx, text)
	if err != nil {
		return nil, err
	}

	return back.Emit(ctx, t, prog)
}

// ToAsmFile compiles the file in into the assembly file out.
func ToAsmFile(ctx context.Context, in, out string, t back.Target) (err error) {
	text, err := os.ReadFile(in)
	if err != nil {
		return errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", in)

	obj, err := compile(ctx, text, t)
	if err != nil {
		return errors.Wrap(err, "%v", in)
	}

	err = os.WriteFile(out, obj, 0o644)
	if err != nil {
		return errors.Wrap(err, "write file")
	}

	return nil
}

// ToShared compiles text into the shared library out.
func ToShared(ctx context.Context, text []byte, out string, t back.Target, tools toolchain.Tools) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "to shared", "target", t, "out", out)
	defer tr.Finish("err", &err)

	obj, err := compile(ctx, text, t)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "bfc-")
	if err != nil {
		return errors.Wrap(err, "temp dir")
	}

	defer func() {
		e := os.RemoveAll(dir)
		if err == nil && e != nil {
			err = errors.Wrap(e, "remove temp dir")
		}
	}()

	syntax := toolchain.GAS
	src := filepath.Join(dir, "run.s")

	if t.Assembler() == back.NASM {
		syntax = toolchain.NASM
		src = filepath.Join(dir, "run.asm")
	}

	err = os.WriteFile(src, obj, 0o644)
	if err != nil {
		return errors.Wrap(err, "write assembly")
	}

	o := strings.TrimSuffix(src, filepath.Ext(src)) + ".o"

	err = tools.Assemble(ctx, syntax, t.Bits(), src, o)
	if err != nil {
		return errors.Wrap(err, "assemble")
	}

	err = tools.Link(ctx, out, o)
	if err != nil {
		return errors.Wrap(err, "link")
	}

	return nil
}

// FileToShared compiles the file in into the shared library out.
func FileToShared(ctx context.Context, in, out string, t back.Target, tools toolchain.Tools) error {
	text, err := os.ReadFile(in)
	if err != nil {
		return errors.Wrap(err, "read file")
	}

	err = ToShared(ctx, text, out, t, tools)
	if err != nil {
		return errors.Wrap(err, "%v", in)
	}

	return nil
}

// ToFunction compiles text into a Runner.
// JIT modes compile in process, NoJIT builds a shared library with opts.Target and loads it.
func ToFunction(ctx context.Context, text []byte, mode platform.Mode, opts Options) (r Runner, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "to function", "mode", mode)
	defer tr.Finish("err", &err)

	switch mode {
	case platform.JITLibc, platform.JITSyscalls:
		prog, _, err := ToIR(ctx, text)
		if err != nil {
			return nil, err
		}

		o := opts.JIT
		o.Syscalls = mode == platform.JITSyscalls

		f, err := jit.Compile(ctx, prog, o)
		if err != nil {
			return nil, errors.Wrap(err, "jit")
		}

		return jitRunner{Func: f}, nil
	case platform.NoJIT:
	default:
		return nil, errors.New("unsupported mode: %v", mode)
	}

	dir, err := os.MkdirTemp("", "bfc-lib-")
	if err != nil {
		return nil, errors.Wrap(err, "temp dir")
	}

	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	lib := filepath.Join(dir, "librun.so")

	err = ToShared(ctx, text, lib, opts.Target, opts.Tools)
	if err != nil {
		return nil, err
	}

	l, err := shared.Open(lib)
	if err != nil {
		return nil, errors.Wrap(err, "load library")
	}

	return libRunner{Lib: l, dir: dir}, nil
}

func compile(ctx context.Context, text []byte, t back.Target) (obj []byte, err error) {
	prog, _, err := ToIR(ctx, text)
	if err != nil {
		return nil, err
	}

	obj, err = back.New().Compile(ctx, nil, t, prog)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return obj, nil
}

func (r jitRunner) Close() error {
	return r.Func.Release()
}

func (r libRunner) Close() error {
	err := r.Lib.Close()

	e := os.RemoveAll(r.dir)
	if err == nil && e != nil {
		err = errors.Wrap(e, "remove temp dir")
	}

	return err
}

// Package jit compiles programs to x86-64 machine code and runs them in process.
//
// In libc mode the generated code calls back into Go for every byte of I/O,
// so Output and Input go to the Func's own Out and In.
// In syscall mode it talks to file descriptors 0 and 1 directly.
package jit

import (
	"context"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/ir"
	"github.com/slowlang/bfc/compiler/tape"
)

type (
	Options struct {
		Syscalls bool

		// In and Out default to os.Stdin and os.Stdout.
		// They are not used in syscall mode.
		In  io.Reader
		Out io.Writer
	}

	// Func is a compiled program.
	// Run may be called concurrently with distinct tapes.
	Func struct {
		mu       sync.RWMutex
		released bool

		mem   []byte
		entry func(uintptr)

		handle uint32

		iomu sync.Mutex
		in   io.Reader
		out  io.Writer
		err  error
		buf  [1]byte
	}
)

var (
	ErrNotImplemented = errors.New("jit is not implemented on this platform")
	ErrReleased       = errors.New("function is released")
)

var (
	funcs      sync.Map // handle -> *Func
	nextHandle atomic.Uint32
)

// Supported reports whether Compile can produce runnable code on this host.
func Supported() bool { return supported }

func Compile(ctx context.Context, prog ir.Program, opts Options) (f *Func, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "jit: compile", "syscalls", opts.Syscalls)
	defer tr.Finish("err", &err)

	if !supported {
		return nil, ErrNotImplemented
	}

	f = &Func{
		in:  opts.In,
		out: opts.Out,
	}

	if f.in == nil {
		f.in = os.Stdin
	}

	if f.out == nil {
		f.out = os.Stdout
	}

	c := Calls{Syscalls: opts.Syscalls}

	if !opts.Syscalls {
		c.Write, c.Read = callbacks()

		f.handle = nextHandle.Add(1)
		c.Handle = f.handle

		funcs.Store(f.handle, f)
	}

	h := f.handle

	defer func() {
		if err != nil && h != 0 {
			funcs.Delete(h)
		}
	}()

	code, err := Generate(prog, c)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}

	if tr.If("dump_jit") {
		tr.Printw("code", "size", len(code), "code", code)
	}

	err = f.load(code)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	tr.V("jit").Printw("compiled", "size", len(code), "handle", f.handle)

	return f, nil
}

// Run executes the function on t. t must be big enough for the program.
func (f *Func) Run(t *tape.Tape) (err error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.released {
		return ErrReleased
	}

	p, err := t.Pointer()
	if err != nil {
		return err
	}

	f.entry(p)

	runtime.KeepAlive(t)

	f.iomu.Lock()
	err, f.err = f.err, nil
	f.iomu.Unlock()

	return err
}

// Release frees the executable memory. The Func must not be used after that.
func (f *Func) Release() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.released {
		return nil
	}

	f.released = true

	funcs.Delete(f.handle)

	return f.unload()
}

func (f *Func) writeByte(c byte) int {
	f.iomu.Lock()
	defer f.iomu.Unlock()

	f.buf[0] = c

	_, err := f.out.Write(f.buf[:])
	if err != nil {
		if f.err == nil {
			f.err = errors.Wrap(err, "write")
		}

		return -1
	}

	return int(c)
}

func (f *Func) readByte() int {
	f.iomu.Lock()
	defer f.iomu.Unlock()

	_, err := io.ReadFull(f.in, f.buf[:])
	if errors.Is(err, io.EOF) {
		return -1
	}
	if err != nil {
		if f.err == nil {
			f.err = errors.Wrap(err, "read")
		}

		return -1
	}

	return int(f.buf[0])
}

func writeChar(c, handle uintptr) uintptr {
	f, ok := funcs.Load(uint32(handle))
	if !ok {
		return ^uintptr(0)
	}

	return uintptr(f.(*Func).writeByte(byte(c)))
}

func readChar(handle uintptr) uintptr {
	f, ok := funcs.Load(uint32(handle))
	if !ok {
		return ^uintptr(0)
	}

	return uintptr(f.(*Func).readByte())
}

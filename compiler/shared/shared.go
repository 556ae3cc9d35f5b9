//go:build darwin || freebsd || linux || netbsd

// Package shared loads built libraries and calls their run function.
package shared

import (
	"runtime"

	"github.com/ebitengine/purego"
	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/tape"
)

// Lib is a loaded library exporting run(char *tape).
type Lib struct {
	handle uintptr

	run    func(uintptr)
	fflush func(uintptr) int32
}

// Open loads the library at path.
func Open(path string) (l *Lib, err error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, errors.Wrap(err, "dlopen")
	}

	l = &Lib{handle: h}

	defer func() {
		if err != nil {
			_ = purego.Dlclose(h)
		}
	}()

	sym, err := purego.Dlsym(h, "run")
	if err != nil {
		return nil, errors.Wrap(err, "dlsym run")
	}

	purego.RegisterFunc(&l.run, sym)

	// run may use stdio, so buffered output must be flushed before returning to Go
	if sym, err := purego.Dlsym(h, "fflush"); err == nil {
		purego.RegisterFunc(&l.fflush, sym)
	}

	return l, nil
}

// Run calls run with the first cell of t.
func (l *Lib) Run(t *tape.Tape) error {
	if l.run == nil {
		return errors.New("library is closed")
	}

	p, err := t.Pointer()
	if err != nil {
		return err
	}

	l.run(p)

	runtime.KeepAlive(t)

	l.flush()

	return nil
}

// Close flushes C stdio and unloads the library.
func (l *Lib) Close() error {
	if l.run == nil {
		return nil
	}

	l.flush()

	l.run = nil

	err := purego.Dlclose(l.handle)
	if err != nil {
		return errors.Wrap(err, "dlclose")
	}

	return nil
}

func (l *Lib) flush() {
	if l.fflush != nil {
		l.fflush(0)
	}
}

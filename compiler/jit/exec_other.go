//go:build !(linux && amd64)

package jit

const supported = false

func callbacks() (write, read uint64) { return 0, 0 }

func (f *Func) load(code []byte) error { return ErrNotImplemented }

func (f *Func) unload() error { return nil }

package jit

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
	"tlog.app/go/errors"
)

const supported = true

var cb struct {
	once sync.Once

	write uintptr
	read  uintptr
}

// callbacks are created once per process, purego has a limited number of slots.
func callbacks() (write, read uint64) {
	cb.once.Do(func() {
		cb.write = purego.NewCallback(writeChar)
		cb.read = purego.NewCallback(readChar)
	})

	return uint64(cb.write), uint64(cb.read)
}

// load maps code read-write, copies it in and then flips the mapping to read-execute.
func (f *Func) load(code []byte) (err error) {
	page := unix.Getpagesize()
	size := (len(code) + page - 1) / page * page

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return errors.Wrap(err, "mmap")
	}

	defer func() {
		if err != nil {
			_ = unix.Munmap(mem)
		}
	}()

	copy(mem, code)

	err = unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
	if err != nil {
		return errors.Wrap(err, "mprotect")
	}

	f.mem = mem

	purego.RegisterFunc(&f.entry, uintptr(unsafe.Pointer(&mem[0])))

	return nil
}

func (f *Func) unload() error {
	if f.mem == nil {
		return nil
	}

	err := unix.Munmap(f.mem)
	f.mem = nil
	f.entry = nil

	if err != nil {
		return errors.Wrap(err, "munmap")
	}

	return nil
}

// Package tape provides the byte buffers compiled programs run on.
package tape

import (
	"unsafe"

	"tlog.app/go/errors"
)

// Tape is a caller owned buffer. Generated code gets a pointer to its first byte
// and is trusted to stay inside it.
type Tape struct {
	b []byte
}

var ErrEmpty = errors.New("empty tape")

// New returns a zero filled tape of size cells.
func New(size int) *Tape {
	return &Tape{b: make([]byte, size)}
}

// FromBytes copies b into a new tape.
func FromBytes(b []byte) *Tape {
	return &Tape{b: append([]byte{}, b...)}
}

// View uses b in place. Changes made by the program are visible through b.
func View(b []byte) *Tape {
	return &Tape{b: b}
}

func (t *Tape) Bytes() []byte { return t.b }

func (t *Tape) Len() int { return len(t.b) }

// Pointer returns the address of the first cell.
// The Tape must be kept alive while the address is in use.
func (t *Tape) Pointer() (uintptr, error) {
	if len(t.b) == 0 {
		return 0, ErrEmpty
	}

	return uintptr(unsafe.Pointer(&t.b[0])), nil
}

//go:build !(darwin || freebsd || linux || netbsd)

package shared

import (
	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/tape"
)

type Lib struct{}

var ErrNotImplemented = errors.New("loading libraries is not implemented on this platform")

func Open(path string) (*Lib, error) { return nil, ErrNotImplemented }

func (l *Lib) Run(t *tape.Tape) error { return ErrNotImplemented }

func (l *Lib) Close() error { return nil }

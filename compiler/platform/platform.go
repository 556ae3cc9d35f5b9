// Package platform describes the host the compiler runs on.
package platform

import (
	"fmt"

	"tlog.app/go/errors"
)

type (
	// Info is what target selection depends on.
	// System is the uname sysname ("Linux", "NetBSD", "Darwin", ...).
	// Machine is the uname machine ("x86_64", "armv7l", ...).
	// Processor is the BSD style architecture name ("amd64", "earmv7hf", ...),
	// empty on Linux.
	Info struct {
		System    string
		Machine   string
		Processor string
	}

	// Mode selects how a program is turned into a callable function.
	Mode int
)

const (
	NoJIT Mode = iota
	JITLibc
	JITSyscalls
)

var modeNames = []string{
	NoJIT:       "no-jit",
	JITLibc:     "jit-libc",
	JITSyscalls: "jit-syscalls",
}

// Query inspects the running host.
func Query() (Info, error) {
	return query()
}

// DefaultMode is JITSyscalls on Linux x86-64 and NoJIT elsewhere.
func DefaultMode(p Info) Mode {
	if p.System == "Linux" && p.Machine == "x86_64" {
		return JITSyscalls
	}

	return NoJIT
}

func (p Info) IsBSD() bool {
	switch p.System {
	case "NetBSD", "OpenBSD", "FreeBSD", "Darwin":
		return true
	}

	return false
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}

	return modeNames[m]
}

func ParseMode(s string) (Mode, error) {
	for m, n := range modeNames {
		if n == s {
			return Mode(m), nil
		}
	}

	return 0, errors.New("unknown mode: %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) (err error) {
	*m, err = ParseMode(string(b))
	return err
}

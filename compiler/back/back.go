package back

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler/asm/amd64"
	"github.com/slowlang/bfc/compiler/asm/arm"
	"github.com/slowlang/bfc/compiler/asm/arm64"
	"github.com/slowlang/bfc/compiler/asm/i386"
	"github.com/slowlang/bfc/compiler/asm/ppc"
	"github.com/slowlang/bfc/compiler/asm/riscv"
	"github.com/slowlang/bfc/compiler/ir"
	"github.com/slowlang/bfc/compiler/platform"
)

type (
	Target int

	// Assembler is the tool a Target's output is fed to.
	Assembler int

	Generator interface {
		Generate(ctx context.Context, prog ir.Program) ([]string, error)
	}

	Compiler struct{}

	UnsupportedPlatformError struct {
		System  string
		Machine string
	}
)

const (
	ARM32 Target = iota
	ARM32Thumb
	ARM64
	PPC32
	RISCV64
	X86_32GasATT
	X86_32GasIntel
	X86_32NASM
	X86_64GasATT
	X86_64GasIntel
	X86_64NASM
	X86_64LinuxSyscallsGasATT
	X86_64LinuxSyscallsGasIntel
	X86_64LinuxSyscallsNASM

	numTargets
)

const (
	GAS Assembler = iota
	NASM
)

var targetNames = [...]string{
	ARM32:                       "arm32",
	ARM32Thumb:                  "arm32-thumb",
	ARM64:                       "arm64",
	PPC32:                       "ppc32",
	RISCV64:                     "riscv64",
	X86_32GasATT:                "x86-32-gas-att",
	X86_32GasIntel:              "x86-32-gas-intel",
	X86_32NASM:                  "x86-32-nasm",
	X86_64GasATT:                "x86-64-gas-att",
	X86_64GasIntel:              "x86-64-gas-intel",
	X86_64NASM:                  "x86-64-nasm",
	X86_64LinuxSyscallsGasATT:   "x86-64-linux-syscalls-gas-att",
	X86_64LinuxSyscallsGasIntel: "x86-64-linux-syscalls-gas-intel",
	X86_64LinuxSyscallsNASM:     "x86-64-linux-syscalls-nasm",
}

var (
	linux = map[string][]Target{
		"armv7l":  {ARM32Thumb, ARM32},
		"aarch64": {ARM64},
		"i686":    {X86_32GasIntel, X86_32GasATT, X86_32NASM},
		"riscv64": {RISCV64},
		"x86_64": {
			X86_64GasIntel, X86_64LinuxSyscallsGasIntel,
			X86_64GasATT, X86_64LinuxSyscallsGasATT,
			X86_64NASM, X86_64LinuxSyscallsNASM,
		},
	}

	// Mac OS X: only PPC32 emits Mach-O compatible text (_run, no ELF directives).
	darwin = map[string][]Target{
		"powerpc": {PPC32},
	}

	bsd = map[string][]Target{
		"aarch64":  {ARM64},
		"arm64":    {ARM64},
		"amd64":    {X86_64GasIntel, X86_64GasATT, X86_64NASM},
		"earmv7hf": {ARM32Thumb, ARM32},
		"i386":     {X86_32GasIntel, X86_32GasATT, X86_32NASM},
		"powerpc":  {PPC32},
	}
)

func New() *Compiler { return &Compiler{} }

// Targets lists every target.
func Targets() []Target {
	l := make([]Target, numTargets)

	for i := range l {
		l[i] = Target(i)
	}

	return l
}

// Candidates lists targets usable on p, most preferred first.
func Candidates(p platform.Info) ([]Target, error) {
	var l []Target

	switch {
	case p.System == "Linux":
		l = linux[p.Machine]
		if l == nil {
			return nil, NewUnsupportedPlatformError(p.System, p.Machine)
		}
	case p.IsBSD():
		proc := p.Processor
		if proc == "" {
			proc = p.Machine
		}

		tab := bsd
		if p.System == "Darwin" {
			tab = darwin
		}

		l = tab[proc]
		if l == nil {
			return nil, NewUnsupportedPlatformError(p.System, proc)
		}
	default:
		return nil, NewUnsupportedPlatformError(p.System, "")
	}

	return append([]Target{}, l...), nil
}

// Suggest returns the preferred target for p.
func Suggest(p platform.Info) (Target, error) {
	l, err := Candidates(p)
	if err != nil {
		return 0, err
	}

	return l[0], nil
}

// Generator returns the code generator for t.
func (t Target) Generator() (Generator, error) {
	switch t {
	case ARM32:
		return arm.Generator{}, nil
	case ARM32Thumb:
		return arm.Generator{Thumb: true}, nil
	case ARM64:
		return arm64.Generator{}, nil
	case PPC32:
		return ppc.Generator{}, nil
	case RISCV64:
		return riscv.Generator{}, nil
	case X86_32GasATT:
		return i386.Generator{Dialect: i386.GasATT}, nil
	case X86_32GasIntel:
		return i386.Generator{Dialect: i386.GasIntel}, nil
	case X86_32NASM:
		return i386.Generator{Dialect: i386.NASM}, nil
	case X86_64GasATT:
		return amd64.Generator{Dialect: amd64.GasATT}, nil
	case X86_64GasIntel:
		return amd64.Generator{Dialect: amd64.GasIntel}, nil
	case X86_64NASM:
		return amd64.Generator{Dialect: amd64.NASM}, nil
	case X86_64LinuxSyscallsGasATT:
		return amd64.Generator{Dialect: amd64.GasATT, Syscalls: true}, nil
	case X86_64LinuxSyscallsGasIntel:
		return amd64.Generator{Dialect: amd64.GasIntel, Syscalls: true}, nil
	case X86_64LinuxSyscallsNASM:
		return amd64.Generator{Dialect: amd64.NASM, Syscalls: true}, nil
	default:
		return nil, errors.New("unhandled target %d, this is a bug", int(t))
	}
}

// Emit generates assembly lines for prog.
func Emit(ctx context.Context, t Target, prog ir.Program) (lines []string, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emit", "target", t)
	defer tr.Finish("err", &err)

	g, err := t.Generator()
	if err != nil {
		return nil, err
	}

	lines, err = g.Generate(ctx, prog)
	if err != nil {
		return nil, errors.Wrap(err, "%v", t)
	}

	if tr.If("dump_asm") {
		for _, l := range lines {
			tr.Printw("asm", "line", l)
		}
	}

	return lines, nil
}

// Compile appends the newline terminated assembly of prog to b.
func (c *Compiler) Compile(ctx context.Context, b []byte, t Target, prog ir.Program) (_ []byte, err error) {
	lines, err := Emit(ctx, t, prog)
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		b = append(b, l...)
		b = append(b, '\n')
	}

	return b, nil
}

func (t Target) String() string {
	if t < 0 || t >= numTargets {
		return fmt.Sprintf("target(%d)", int(t))
	}

	return targetNames[t]
}

func ParseTarget(s string) (Target, error) {
	s = strings.ToLower(strings.ReplaceAll(s, "_", "-"))

	for t, n := range targetNames {
		if n == s {
			return Target(t), nil
		}
	}

	return 0, errors.New("unknown target: %q", s)
}

func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Target) UnmarshalText(b []byte) (err error) {
	*t, err = ParseTarget(string(b))
	return err
}

func (t Target) Assembler() Assembler {
	switch t {
	case X86_32NASM, X86_64NASM, X86_64LinuxSyscallsNASM:
		return NASM
	}

	return GAS
}

// Bits is the pointer width of the target.
func (t Target) Bits() int {
	switch t {
	case ARM32, ARM32Thumb, PPC32, X86_32GasATT, X86_32GasIntel, X86_32NASM:
		return 32
	}

	return 64
}

// Syscalls reports whether the target does I/O without libc.
func (t Target) Syscalls() bool {
	switch t {
	case X86_64LinuxSyscallsGasATT, X86_64LinuxSyscallsGasIntel, X86_64LinuxSyscallsNASM:
		return true
	}

	return false
}

func (a Assembler) String() string {
	if a == NASM {
		return "nasm"
	}

	return "gas"
}

func NewUnsupportedPlatformError(sys, machine string) UnsupportedPlatformError {
	return UnsupportedPlatformError{System: sys, Machine: machine}
}

func (e UnsupportedPlatformError) Error() string {
	if e.System == "Linux" || e.Machine != "" {
		return fmt.Sprintf("%v on %v is not supported", e.System, e.Machine)
	}

	return fmt.Sprintf("unsupported or unknown OS: %v", e.System)
}

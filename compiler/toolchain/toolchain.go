// Package toolchain runs the external assembler and linker.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Tools are the commands used. Empty fields mean "cc" and "nasm".
	Tools struct {
		CC   string `yaml:"cc"`
		NASM string `yaml:"nasm"`

		// OS selects linker flags, runtime.GOOS if empty.
		OS string `yaml:"-"`
	}

	// Syntax is the assembler input format.
	Syntax int

	ToolError struct {
		Tool   string
		Stderr string
		Code   int
	}
)

const (
	GAS Syntax = iota
	NASM
)

// Assemble turns the assembly file in into the object file out.
func (t Tools) Assemble(ctx context.Context, syntax Syntax, bits int, in, out string) (err error) {
	if syntax == NASM {
		format := "-felf64"
		if bits == 32 {
			format = "-felf32"
		}

		return t.run(ctx, t.nasm(), format, in, "-o", out)
	}

	return t.run(ctx, t.cc(), "-c", in, "-o", out)
}

// Link makes the shared library out from the object files.
func (t Tools) Link(ctx context.Context, out string, objs ...string) (err error) {
	args := []string{"-z", "noexecstack"}

	if t.os() == "darwin" {
		args = []string{"-dynamiclib"}
	} else {
		args = append(args, "-shared")
	}

	args = append(args, objs...)
	args = append(args, "-o", out)

	return t.run(ctx, t.cc(), args...)
}

func (t Tools) run(ctx context.Context, tool string, args ...string) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "run tool", "tool", tool, "args", args)
	defer tr.Finish("err", &err)

	path, err := exec.LookPath(tool)
	if err != nil {
		return errors.New("%v not found", tool)
	}

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr

	err = cmd.Run()

	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return NewToolError(tool, stderr.String(), exit.ExitCode())
	}
	if err != nil {
		return errors.Wrap(err, "%v", tool)
	}

	if stderr.Len() != 0 {
		tr.Printw("tool warning", "tool", tool, "stderr", strings.TrimSpace(stderr.String()), "", tlog.Warn)
	}

	return nil
}

func (t Tools) cc() string {
	if t.CC != "" {
		return t.CC
	}

	return "cc"
}

func (t Tools) nasm() string {
	if t.NASM != "" {
		return t.NASM
	}

	return "nasm"
}

func (t Tools) os() string {
	if t.OS != "" {
		return t.OS
	}

	return runtime.GOOS
}

func NewToolError(tool, stderr string, code int) ToolError {
	return ToolError{Tool: tool, Stderr: stderr, Code: code}
}

func (e ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%v: return code: %d", e.Tool, e.Code)
	}

	return fmt.Sprintf("%v: %v", e.Tool, e.Stderr)
}

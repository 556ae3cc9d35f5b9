package jit

import (
	"encoding/binary"
	"fmt"

	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/ir"
)

type (
	// Calls describes how generated code performs I/O.
	// In libc mode Write and Read are C callable function addresses:
	//
	//	write(c, handle) c
	//	read(handle) c or -1
	//
	// Handle is passed to every call.
	Calls struct {
		Syscalls bool

		Write  uint64
		Read   uint64
		Handle uint32
	}

	// BranchTooFarError is returned for a loop whose body
	// does not fit into a short branch.
	BranchTooFarError struct {
		Body int
	}

	codegen struct {
		buf []byte
	}
)

const (
	maxShortForward  = 127 - 2
	maxShortBackward = 128 - 7
)

// Generate encodes prog as an x86-64 function taking the tape pointer in rdi.
// The tape pointer lives in rbx.
func Generate(prog ir.Program, c Calls) ([]byte, error) {
	var a codegen

	if c.Syscalls {
		a.code("\x53")         // push rbx
		a.code("\x48\x89\xfb") // mov rbx, rdi
	} else {
		a.code("\x53")                 // push rbx
		a.code("\x41\x54")             // push r12
		a.code("\x41\x55")             // push r13
		a.code("\x48\x89\xfb")         // mov rbx, rdi
		a.code("\x49\xbc").dq(c.Write) // movabs r12, write
		a.code("\x49\xbd").dq(c.Read)  // movabs r13, read
	}

	err := a.body(prog, c)
	if err != nil {
		return nil, err
	}

	if c.Syscalls {
		a.code("\x5b") // pop rbx
	} else {
		a.code("\x41\x5d") // pop r13
		a.code("\x41\x5c") // pop r12
		a.code("\x5b")     // pop rbx
	}

	a.code("\xc3") // ret

	return a.buf, nil
}

func (a *codegen) body(prog ir.Program, c Calls) (err error) {
	for _, x := range prog {
		switch x := x.(type) {
		case ir.Add:
			switch n := x.N & 0xff; n {
			case 0:
			case 1:
				a.code("\xfe\x03") // inc byte [rbx]
			default:
				a.code("\x80\x03").db(n) // add byte [rbx], n
			}
		case ir.Sub:
			switch n := x.N & 0xff; n {
			case 0:
			case 1:
				a.code("\xfe\x0b") // dec byte [rbx]
			default:
				a.code("\x80\x2b").db(n) // sub byte [rbx], n
			}
		case ir.Forward:
			a.move(x.N, "\x48\xff\xc3", "\x48\x83\xc3", "\x48\x81\xc3")
		case ir.Back:
			a.move(x.N, "\x48\xff\xcb", "\x48\x83\xeb", "\x48\x81\xeb")
		case ir.Output:
			a.output(x.N, c)
		case ir.Input:
			a.input(x.N, c)
		case ir.Loop:
			var sub codegen

			err = sub.body(x.Body, c)
			if err != nil {
				return err
			}

			n := len(sub.buf)
			if n > maxShortForward || n > maxShortBackward {
				return BranchTooFarError{Body: n}
			}

			a.code("\x80\x3b\x00")      // cmp byte [rbx], 0
			a.code("\x74").db(n + 2)    // je end
			a.append(sub.buf)           // body
			a.code("\xeb").db(-(n + 7)) // jmp start
		default:
			return errors.New("unsupported node: %T", x)
		}
	}

	return nil
}

// move encodes rbx += n or rbx -= n with the shortest form.
func (a *codegen) move(n int, one, imm8, imm32 string) {
	if n == 1 {
		a.code(one)
		return
	}

	for n > 0 {
		d := n
		if d > 1<<31-1 {
			d = 1<<31 - 1
		}

		if d <= 127 {
			a.code(imm8).db(d)
		} else {
			a.code(imm32).dd(d)
		}

		n -= d
	}
}

func (a *codegen) output(n int, c Calls) {
	if c.Syscalls {
		a.code("\x48\x89\xde") // mov rsi, rbx
		a.code("\xbf").dd(1)   // mov edi, 1
		a.code("\xba").dd(1)   // mov edx, 1

		for i := 0; i < n; i++ {
			a.code("\xb8").dd(1) // mov eax, SYS_write
			a.code("\x0f\x05")   // syscall
		}

		return
	}

	a.code("\x0f\xb6\x3b") // movzx edi, byte [rbx]

	for i := 0; i < n; i++ {
		if i != 0 {
			a.code("\x89\xc7") // mov edi, eax
		}

		a.code("\xbe").dd(int(c.Handle)) // mov esi, handle
		a.code("\x41\xff\xd4")           // call r12
	}
}

func (a *codegen) input(n int, c Calls) {
	if c.Syscalls {
		a.code("\x48\x89\xde") // mov rsi, rbx
		a.code("\x31\xff")     // xor edi, edi
		a.code("\xba").dd(1)   // mov edx, 1

		for i := 0; i < n; i++ {
			a.code("\x31\xc0") // xor eax, eax
			a.code("\x0f\x05") // syscall
		}

		a.code("\x83\xf8\x01") // cmp eax, 1
		a.code("\x74\x03")     // je +3
		a.code("\xc6\x03\x00") // mov byte [rbx], 0

		return
	}

	for i := 0; i < n; i++ {
		a.code("\xbf").dd(int(c.Handle)) // mov edi, handle
		a.code("\x41\xff\xd5")           // call r13
	}

	a.code("\x85\xc0") // test eax, eax
	a.code("\x79\x02") // jns +2
	a.code("\x31\xc0") // xor eax, eax
	a.code("\x88\x03") // mov byte [rbx], al
}

func (a *codegen) append(v []byte)        { a.buf = append(a.buf, v...) }
func (a *codegen) code(v string) *codegen { a.buf = append(a.buf, v...); return a }

func (a *codegen) db(v int) *codegen { a.buf = append(a.buf, byte(v)); return a }

func (a *codegen) dd(v int) *codegen {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(v))
	return a
}

func (a *codegen) dq(v uint64) *codegen {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, v)
	return a
}

func (e BranchTooFarError) Error() string {
	return fmt.Sprintf("loop body of %d bytes is too big for a short branch", e.Body)
}

package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/ir"
)

var sys = Calls{Syscalls: true}

func TestEncodeLeaves(t *testing.T) {
	code, err := Generate(ir.Program{
		ir.Forward{N: 1},
		ir.Add{N: 1},
		ir.Forward{N: 1},
		ir.Add{N: 2},
	}, sys)
	require.NoError(t, err)

	assert.Equal(t, []byte{
		0x53, 0x48, 0x89, 0xfb, // prologue
		0x48, 0xff, 0xc3,       // inc rbx
		0xfe, 0x03,             // inc byte [rbx]
		0x48, 0xff, 0xc3,       // inc rbx
		0x80, 0x03, 0x02,       // add byte [rbx], 2
		0x5b, 0xc3,             // epilogue
	}, code)
}

func TestEncodeShortest(t *testing.T) {
	for _, tc := range []struct {
		x   ir.Node
		exp []byte
	}{
		{ir.Forward{N: 127}, []byte{0x48, 0x83, 0xc3, 0x7f}},
		{ir.Forward{N: 128}, []byte{0x48, 0x81, 0xc3, 0x80, 0, 0, 0}},
		{ir.Back{N: 1}, []byte{0x48, 0xff, 0xcb}},
		{ir.Back{N: 5}, []byte{0x48, 0x83, 0xeb, 0x05}},
		{ir.Back{N: 1000}, []byte{0x48, 0x81, 0xeb, 0xe8, 0x03, 0, 0}},
		{ir.Sub{N: 1}, []byte{0xfe, 0x0b}},
		{ir.Sub{N: 3}, []byte{0x80, 0x2b, 0x03}},
		{ir.Add{N: 257}, []byte{0xfe, 0x03}},
		{ir.Add{N: 256}, nil},
	} {
		code, err := Generate(ir.Program{tc.x}, sys)
		require.NoError(t, err)

		body := code[4 : len(code)-2]
		if len(tc.exp) == 0 {
			assert.Empty(t, body, "%+v", tc.x)
			continue
		}

		assert.Equal(t, tc.exp, body, "%+v", tc.x)
	}
}

func TestEncodeLoop(t *testing.T) {
	code, err := Generate(ir.Program{ir.Loop{Body: []ir.Node{ir.Sub{N: 1}}}}, sys)
	require.NoError(t, err)

	assert.Equal(t, []byte{
		0x80, 0x3b, 0x00, // cmp byte [rbx], 0
		0x74, 0x04,       // je end
		0xfe, 0x0b,       // dec byte [rbx]
		0xeb, 0xf7,       // jmp start
	}, code[4:len(code)-2])
}

func TestEncodeSyscalls(t *testing.T) {
	code, err := Generate(ir.Program{ir.Output{N: 2}, ir.Input{N: 1}}, sys)
	require.NoError(t, err)

	assert.Equal(t, []byte{
		0x48, 0x89, 0xde,             // mov rsi, rbx
		0xbf, 1, 0, 0, 0,             // mov edi, 1
		0xba, 1, 0, 0, 0,             // mov edx, 1
		0xb8, 1, 0, 0, 0, 0x0f, 0x05, // write
		0xb8, 1, 0, 0, 0, 0x0f, 0x05, // write

		0x48, 0x89, 0xde,       // mov rsi, rbx
		0x31, 0xff,             // xor edi, edi
		0xba, 1, 0, 0, 0,       // mov edx, 1
		0x31, 0xc0, 0x0f, 0x05, // read
		0x83, 0xf8, 0x01,       // cmp eax, 1
		0x74, 0x03,             // je +3
		0xc6, 0x03, 0x00,       // mov byte [rbx], 0
	}, code[4:len(code)-2])
}

func TestEncodeLibc(t *testing.T) {
	c := Calls{
		Write:  0x1122334455667788,
		Read:   0x0102030405060708,
		Handle: 7,
	}

	code, err := Generate(ir.Program{ir.Output{N: 2}, ir.Input{N: 1}}, c)
	require.NoError(t, err)

	assert.Equal(t, []byte{
		0x53, 0x41, 0x54, 0x41, 0x55,                               // push rbx, r12, r13
		0x48, 0x89, 0xfb,                                           // mov rbx, rdi
		0x49, 0xbc, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, // movabs r12, write
		0x49, 0xbd, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // movabs r13, read

		0x0f, 0xb6, 0x3b,                   // movzx edi, byte [rbx]
		0xbe, 7, 0, 0, 0, 0x41, 0xff, 0xd4, // mov esi, handle; call r12
		0x89, 0xc7,                         // mov edi, eax
		0xbe, 7, 0, 0, 0, 0x41, 0xff, 0xd4, // mov esi, handle; call r12

		0xbf, 7, 0, 0, 0, 0x41, 0xff, 0xd5, // mov edi, handle; call r13
		0x85, 0xc0,                         // test eax, eax
		0x79, 0x02,                         // jns +2
		0x31, 0xc0,                         // xor eax, eax
		0x88, 0x03,                         // mov byte [rbx], al

		0x41, 0x5d, 0x41, 0x5c, 0x5b, 0xc3, // epilogue
	}, code)
}

func TestBranchTooFar(t *testing.T) {
	body := func(add2, add1 int) []ir.Node {
		var b []ir.Node

		for i := 0; i < add2; i++ {
			b = append(b, ir.Add{N: 2}) // 3 bytes
		}

		for i := 0; i < add1; i++ {
			b = append(b, ir.Add{N: 1}) // 2 bytes
		}

		return b
	}

	code, err := Generate(ir.Program{ir.Loop{Body: body(39, 2)}}, sys)
	require.NoError(t, err)

	// 121 byte body jumps back exactly -128
	assert.Equal(t, byte(0x80), code[len(code)-3])

	_, err = Generate(ir.Program{ir.Loop{Body: body(40, 1)}}, sys)

	var be BranchTooFarError
	require.True(t, errors.As(err, &be), "err: %v", err)
	assert.Equal(t, 122, be.Body)

	_, err = Generate(ir.Program{ir.Loop{Body: []ir.Node{ir.Loop{Body: body(50, 0)}}}}, sys)
	assert.True(t, errors.As(err, &be), "err: %v", err)
}

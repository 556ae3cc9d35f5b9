package back

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/asm"
	"github.com/slowlang/bfc/compiler/ir"
	"github.com/slowlang/bfc/compiler/platform"
)

// ++>>>,[---<[.>+<-]..]<<,,
var sample = ir.Program{
	ir.Add{N: 2},
	ir.Forward{N: 3},
	ir.Input{N: 1},
	ir.Loop{Body: []ir.Node{
		ir.Sub{N: 3},
		ir.Back{N: 1},
		ir.Loop{Body: []ir.Node{
			ir.Output{N: 1},
			ir.Forward{N: 1},
			ir.Add{N: 1},
			ir.Back{N: 1},
			ir.Sub{N: 1},
		}},
		ir.Output{N: 2},
	}},
	ir.Back{N: 2},
	ir.Input{N: 2},
}

func TestGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	ctx := context.Background()

	for _, tg := range Targets() {
		t.Run(tg.String(), func(t *testing.T) {
			obj, err := New().Compile(ctx, nil, tg, sample)
			require.NoError(t, err)

			g.Assert(t, tg.String(), obj)
		})
	}
}

func TestCandidates(t *testing.T) {
	for _, tc := range []struct {
		p   platform.Info
		exp []Target
	}{
		{platform.Info{System: "Linux", Machine: "armv7l"}, []Target{ARM32Thumb, ARM32}},
		{platform.Info{System: "Linux", Machine: "i686"}, []Target{X86_32GasIntel, X86_32GasATT, X86_32NASM}},
		{platform.Info{System: "Linux", Machine: "riscv64"}, []Target{RISCV64}},
		{platform.Info{System: "Linux", Machine: "aarch64"}, []Target{ARM64}},
		{platform.Info{System: "Linux", Machine: "x86_64"}, []Target{
			X86_64GasIntel, X86_64LinuxSyscallsGasIntel,
			X86_64GasATT, X86_64LinuxSyscallsGasATT,
			X86_64NASM, X86_64LinuxSyscallsNASM,
		}},
		{platform.Info{System: "NetBSD", Machine: "evbarm", Processor: "aarch64"}, []Target{ARM64}},
		{platform.Info{System: "OpenBSD", Machine: "amd64", Processor: "amd64"}, []Target{X86_64GasIntel, X86_64GasATT, X86_64NASM}},
		{platform.Info{System: "NetBSD", Machine: "evbarm", Processor: "earmv7hf"}, []Target{ARM32Thumb, ARM32}},
		{platform.Info{System: "FreeBSD", Machine: "i386", Processor: "i386"}, []Target{X86_32GasIntel, X86_32GasATT, X86_32NASM}},
		{platform.Info{System: "Darwin", Machine: "Power Macintosh", Processor: "powerpc"}, []Target{PPC32}},
	} {
		l, err := Candidates(tc.p)
		require.NoError(t, err, "%+v", tc.p)

		assert.Equal(t, tc.exp, l, "%+v", tc.p)

		s, err := Suggest(tc.p)
		require.NoError(t, err)
		assert.Equal(t, tc.exp[0], s)
	}
}

func TestCandidatesUnsupported(t *testing.T) {
	_, err := Candidates(platform.Info{System: "Linux", Machine: "mips"})
	assert.EqualError(t, err, "Linux on mips is not supported")

	var pe UnsupportedPlatformError
	assert.True(t, errors.As(err, &pe))

	_, err = Suggest(platform.Info{System: "Windows", Machine: "AMD64"})
	assert.EqualError(t, err, "unsupported or unknown OS: Windows")

	_, err = Candidates(platform.Info{System: "OpenBSD", Machine: "sparc64", Processor: "sparc64"})
	assert.EqualError(t, err, "OpenBSD on sparc64 is not supported")

	for _, proc := range []string{"arm64", "amd64"} {
		_, err = Candidates(platform.Info{System: "Darwin", Machine: proc, Processor: proc})
		assert.EqualError(t, err, "Darwin on "+proc+" is not supported")
	}
}

func TestCandidatesCopy(t *testing.T) {
	p := platform.Info{System: "Linux", Machine: "armv7l"}

	l, err := Candidates(p)
	require.NoError(t, err)

	l[0] = PPC32

	s, err := Suggest(p)
	require.NoError(t, err)
	assert.Equal(t, ARM32Thumb, s)
}

func TestTargetNames(t *testing.T) {
	assert.Len(t, Targets(), 14)

	for _, tg := range Targets() {
		p, err := ParseTarget(tg.String())
		require.NoError(t, err)
		assert.Equal(t, tg, p)

		b, err := tg.MarshalText()
		require.NoError(t, err)

		var u Target
		require.NoError(t, u.UnmarshalText(b))
		assert.Equal(t, tg, u)
	}

	p, err := ParseTarget("X86_64_GAS_INTEL")
	require.NoError(t, err)
	assert.Equal(t, X86_64GasIntel, p)

	_, err = ParseTarget("z80")
	assert.Error(t, err)

	assert.Equal(t, "target(99)", Target(99).String())
}

func TestTargetProperties(t *testing.T) {
	assert.Equal(t, NASM, X86_32NASM.Assembler())
	assert.Equal(t, NASM, X86_64LinuxSyscallsNASM.Assembler())
	assert.Equal(t, GAS, X86_64GasATT.Assembler())
	assert.Equal(t, GAS, RISCV64.Assembler())

	assert.Equal(t, 32, ARM32Thumb.Bits())
	assert.Equal(t, 32, X86_32GasATT.Bits())
	assert.Equal(t, 64, X86_64NASM.Bits())
	assert.Equal(t, 64, ARM64.Bits())

	assert.True(t, X86_64LinuxSyscallsGasATT.Syscalls())
	assert.False(t, X86_64GasATT.Syscalls())
}

func TestUnhandledTarget(t *testing.T) {
	_, err := Emit(context.Background(), Target(99), sample)
	assert.EqualError(t, err, "unhandled target 99, this is a bug")
}

func TestEveryKind(t *testing.T) {
	ctx := context.Background()

	for _, tg := range Targets() {
		for _, k := range ir.Kinds() {
			var x ir.Node = ir.Loop{Body: []ir.Node{ir.Add{N: 1}}}
			if k != ir.KindLoop {
				x = ir.Leaf(k, 3)
			}

			lines, err := Emit(ctx, tg, ir.Program{x})

			var ue asm.UnimplementedError
			assert.False(t, errors.As(err, &ue), "%v %v: %v", tg, k, err)
			assert.NoError(t, err, "%v %v", tg, k)
			assert.NotEmpty(t, lines)
		}
	}
}

type unknownNode struct{}

func (unknownNode) Kind() ir.Kind { return ir.Kind(100) }

func TestUnimplementedNode(t *testing.T) {
	ctx := context.Background()

	for _, tg := range Targets() {
		_, err := Emit(ctx, tg, ir.Program{ir.Loop{Body: []ir.Node{unknownNode{}}}})

		var ue asm.UnimplementedError
		require.True(t, errors.As(err, &ue), "%v: %v", tg, err)

		assert.Equal(t, ir.Kind(100), ue.Kind)
		assert.Contains(t, err.Error(), "this is a bug")
	}
}

var labelRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):`)

func TestLabelsUnique(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewSource(3))

	for i := 0; i < 50; i++ {
		prog := randomIR(r, 4)

		for _, tg := range Targets() {
			lines, err := Emit(ctx, tg, prog)
			require.NoError(t, err)

			seen := map[string]bool{}

			for _, l := range lines {
				m := labelRe.FindStringSubmatch(l)
				if m == nil {
					continue
				}

				assert.False(t, seen[m[1]], "%v: duplicate label %v", tg, m[1])

				seen[m[1]] = true
			}

			for _, l := range lines {
				f := strings.Fields(l)
				if len(f) < 2 || labelRe.MatchString(l) {
					continue
				}

				ref := f[len(f)-1]

				if strings.HasPrefix(ref, "start_") || strings.HasPrefix(ref, "end_") || strings.HasPrefix(ref, "read_") {
					assert.True(t, seen[ref], "%v: undefined label %v", tg, ref)
				}
			}
		}
	}
}

func TestLargeImmediates(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		tg  Target
		exp []string
	}{
		{ARM32, []string{"add    r0, r0, 255", "add    r0, r0, 255", "add    r0, r0, 90"}},
		{ARM64, []string{"add    x0, x0, 600"}},
		{RISCV64, []string{"addi   a0, a0, 600"}},
		{PPC32, []string{"addi   r3, r3, 600"}},
		{X86_64GasIntel, []string{"add   rdi, 600"}},
	} {
		lines, err := Emit(ctx, tc.tg, ir.Program{ir.Forward{N: 600}, ir.Add{N: 300}})
		require.NoError(t, err)

		var got []string

		for _, l := range lines {
			l = strings.TrimSpace(l)

			if strings.Contains(l, "600") || strings.Contains(l, "255") || strings.Contains(l, ", 90") {
				got = append(got, l)
			}
		}

		assert.Equal(t, tc.exp, got, "%v", tc.tg)

		// 300 mod 256
		assert.Contains(t, strings.Join(lines, "\n"), "44", "%v", tc.tg)
	}
}

func TestThumbLongLoop(t *testing.T) {
	body := make([]ir.Node, 0, 40)

	for i := 0; i < 20; i++ {
		body = append(body, ir.Add{N: 1}, ir.Forward{N: 1})
	}

	lines, err := Emit(context.Background(), ARM32Thumb, ir.Program{ir.Loop{Body: body}})
	require.NoError(t, err)

	text := strings.Join(lines, "\n")

	assert.NotContains(t, text, "cbz")
	assert.Contains(t, text, "beq    end_0")

	lines, err = Emit(context.Background(), ARM32Thumb, ir.Program{ir.Loop{Body: body[:2]}})
	require.NoError(t, err)

	assert.Contains(t, strings.Join(lines, "\n"), "cbz    r1, end_0")
}

func TestConcurrentEmit(t *testing.T) {
	ctx := context.Background()

	exp := map[Target]string{}

	for _, tg := range Targets() {
		obj, err := New().Compile(ctx, nil, tg, sample)
		require.NoError(t, err)

		exp[tg] = string(obj)
	}

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		for _, tg := range Targets() {
			wg.Add(1)

			go func(tg Target) {
				defer wg.Done()

				obj, err := New().Compile(ctx, nil, tg, sample)
				assert.NoError(t, err)
				assert.Equal(t, exp[tg], string(obj))
			}(tg)
		}
	}

	wg.Wait()
}

func randomIR(r *rand.Rand, depth int) []ir.Node {
	n := r.Intn(6)
	res := make([]ir.Node, 0, n)

	for i := 0; i < n; i++ {
		if depth > 0 && r.Intn(3) == 0 {
			res = append(res, ir.Loop{Body: randomIR(r, depth-1)})
			continue
		}

		k := ir.Kind(r.Intn(int(ir.KindLoop)))

		res = append(res, ir.Leaf(k, 1+r.Intn(3)))
	}

	return res
}

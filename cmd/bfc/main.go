package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/bfc/compiler"
	"github.com/slowlang/bfc/compiler/analyze"
	"github.com/slowlang/bfc/compiler/back"
	"github.com/slowlang/bfc/compiler/config"
	"github.com/slowlang/bfc/compiler/format"
	"github.com/slowlang/bfc/compiler/platform"
	"github.com/slowlang/bfc/compiler/tape"
)

var warnf = color.New(color.FgYellow).SprintfFunc()

func main() {
	common := []*cli.Flag{
		cli.NewFlag("config", "", "config file, "+config.DefaultFile+" if exists"),
		cli.NewFlag("v", "", "tlog verbosity topics"),
	}

	targeted := append([]*cli.Flag{
		cli.NewFlag("target,t", "", "target, suggested for the host if empty"),
		cli.NewFlag("output,o", "", "output file, derived from the input if empty"),
	}, common...)

	asmCmd := &cli.Command{
		Name:        "asm",
		Description: "compile source files to assembly",
		Action:      asmAct,
		Args:        cli.Args{},
		Flags:       targeted,
	}

	sharedCmd := &cli.Command{
		Name:        "shared",
		Description: "compile source files to shared libraries",
		Action:      sharedAct,
		Args:        cli.Args{},
		Flags:       targeted,
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "run a source file",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: append([]*cli.Flag{
			cli.NewFlag("target,t", "", "target for no-jit mode"),
			cli.NewFlag("mode,m", "", "jit-libc, jit-syscalls or no-jit, host default if empty"),
			cli.NewFlag("tape", 0, "tape size in cells"),
		}, common...),
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "print intermediate representation",
		Action:      irAct,
		Args:        cli.Args{},
		Flags:       common,
	}

	targetsCmd := &cli.Command{
		Name:        "targets",
		Description: "list targets and the ones usable on this host",
		Action:      targetsAct,
		Flags:       common,
	}

	app := &cli.Command{
		Name:        "bfc",
		Description: "bfc compiles the eight command tape language to assembly, shared libraries and machine code",
		Commands: []*cli.Command{
			asmCmd,
			sharedCmd,
			runCmd,
			irCmd,
			targetsCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

type overrides struct {
	target string
	mode   string
	tape   int
}

func setup(c *cli.Command, o overrides) (ctx context.Context, cfg config.Config, host platform.Info, err error) {
	tlog.SetVerbosity(c.String("v"))

	ctx = context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	host, err = platform.Query()
	if err != nil {
		return ctx, cfg, host, errors.Wrap(err, "query platform")
	}

	cfg, err = config.Load(c.String("config"))
	if err != nil {
		return ctx, cfg, host, err
	}

	if o.target != "" {
		t, err := back.ParseTarget(o.target)
		if err != nil {
			return ctx, cfg, host, err
		}

		cfg.Target = &t
	}

	if o.mode != "" {
		m, err := platform.ParseMode(o.mode)
		if err != nil {
			return ctx, cfg, host, err
		}

		cfg.Mode = &m
	}

	if o.tape != 0 {
		cfg.Tape = o.tape
	}

	cfg, err = cfg.Resolve(host)
	if err != nil {
		return ctx, cfg, host, err
	}

	tlog.V("config").Printw("config", "target", *cfg.Target, "mode", *cfg.Mode, "tape", cfg.Tape, "system", host.System, "machine", host.Machine)

	return ctx, cfg, host, nil
}

func withTimeout(ctx context.Context, cfg config.Config) (context.Context, context.CancelFunc) {
	if cfg.Tools.Timeout == 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, cfg.Tools.Timeout)
}

func asmAct(c *cli.Command) (err error) {
	ctx, cfg, _, err := setup(c, overrides{target: c.String("target")})
	if err != nil {
		return err
	}

	ext := ".s"
	if cfg.Target.Assembler() == back.NASM {
		ext = ".asm"
	}

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read file")
		}

		prog, ws, err := compiler.ToIR(ctx, text)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		printWarnings(a, ws)

		obj, err := back.New().Compile(ctx, nil, *cfg.Target, prog)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out := outName(c, a, ext)

		err = os.WriteFile(out, obj, 0o644)
		if err != nil {
			return errors.Wrap(err, "write %v", out)
		}
	}

	return nil
}

func sharedAct(c *cli.Command) (err error) {
	ctx, cfg, host, err := setup(c, overrides{target: c.String("target")})
	if err != nil {
		return err
	}

	ext := ".so"
	if host.System == "Darwin" {
		ext = ".dylib"
	}

	for _, a := range c.Args {
		err = func() error {
			ctx, cancel := withTimeout(ctx, cfg)
			defer cancel()

			return compiler.FileToShared(ctx, a, outName(c, a, ext), *cfg.Target, cfg.Tools.Tools)
		}()
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx, cfg, _, err := setup(c, overrides{
		target: c.String("target"),
		mode:   c.String("mode"),
		tape:   c.Int("tape"),
	})
	if err != nil {
		return err
	}

	if len(c.Args) != 1 {
		return errors.New("exactly one source file expected")
	}

	text, err := os.ReadFile(c.Args[0])
	if err != nil {
		return errors.Wrap(err, "read file")
	}

	var out io.Writer = os.Stdout

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		w := bufio.NewWriter(os.Stdout)
		defer func() {
			e := w.Flush()
			if err == nil && e != nil {
				err = errors.Wrap(e, "flush")
			}
		}()

		out = w
	}

	opts := compiler.Options{
		Target: *cfg.Target,
		Tools:  cfg.Tools.Tools,
	}

	opts.JIT.In = os.Stdin
	opts.JIT.Out = out

	bctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	r, err := compiler.ToFunction(bctx, text, *cfg.Mode, opts)
	if err != nil {
		return errors.Wrap(err, "compile %v", c.Args[0])
	}

	defer func() {
		e := r.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close")
		}
	}()

	err = r.Run(tape.New(cfg.Tape))
	if err != nil {
		return errors.Wrap(err, "run")
	}

	return nil
}

func irAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	tlog.SetVerbosity(c.String("v"))

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read file")
		}

		prog, ws, err := compiler.ToIR(ctx, text)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		printWarnings(a, ws)

		b, err := format.Format(ctx, nil, prog)
		if err != nil {
			return errors.Wrap(err, "format")
		}

		fmt.Printf("%s", b)
	}

	return nil
}

func targetsAct(c *cli.Command) (err error) {
	host, err := platform.Query()
	if err != nil {
		return errors.Wrap(err, "query platform")
	}

	usable := map[back.Target]bool{}

	l, err := back.Candidates(host)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", warnf("%v", err))
	}

	for _, t := range l {
		usable[t] = true
	}

	fmt.Printf("host: %v %v, default mode: %v\n", host.System, host.Machine, platform.DefaultMode(host))

	for _, t := range back.Targets() {
		mark := " "
		if usable[t] {
			mark = "*"
		}

		fmt.Printf("%v %-32v %v %d-bit\n", mark, t, t.Assembler(), t.Bits())
	}

	return nil
}

func printWarnings(file string, ws []analyze.Warning) {
	for _, w := range ws {
		fmt.Fprintf(os.Stderr, "%v: %s\n", file, warnf("warning: %v", w))
	}
}

func outName(c *cli.Command, in, ext string) string {
	if o := c.String("output"); o != "" && len(c.Args) == 1 {
		return o
	}

	return strings.TrimSuffix(in, filepath.Ext(in)) + ext
}

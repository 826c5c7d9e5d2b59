// Package pipeline drives a compilation from a resolved program to MMIX
// assembly. After the whole-program stages (layout, intermediate code,
// linearization) every function is selected and allocated on its own, so
// functions can be processed in parallel.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/asmgen"
	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/attr"
	"github.com/raymyers/prevc/pkg/config"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/imcgen"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/interp"
	"github.com/raymyers/prevc/pkg/livean"
	"github.com/raymyers/prevc/pkg/memory"
	"github.com/raymyers/prevc/pkg/mmix"
	"github.com/raymyers/prevc/pkg/regall"
)

// Listings receives the intermediate forms of a compilation. Nil writers
// are skipped.
type Listings struct {
	IMC    io.Writer // intermediate code trees
	Lin    io.Writer // canonical statement lists
	Asm    io.Writer // selected instructions
	Live   io.Writer // selected instructions with liveness
	RegAll io.Writer // allocated instructions
}

// Options controls a compilation.
type Options struct {
	NRegs    int
	Jobs     int
	Args     asmgen.ArgPassing
	Listings Listings
}

// NewOptions derives compilation options from a configuration.
func NewOptions(cfg config.Config) Options {
	opts := Options{NRegs: cfg.NRegs, Jobs: cfg.Jobs, Args: asmgen.ArgsImmediate}
	if cfg.ArgsViaRegister {
		opts.Args = asmgen.ArgsRegister
	}
	return opts
}

// Unit is one compiled function.
type Unit struct {
	Chunk *imclin.CodeChunk
	Code  *asm.Code
	Alloc *regall.Result

	asm, live, regall bytes.Buffer
}

// Result is a compiled program.
type Result struct {
	Lin   *imclin.Program
	Units []*Unit
	NRegs int
}

// Compile lays out, translates and allocates a resolved program.
func Compile(ctx context.Context, prog *ast.Program, t *attr.Tables, opts Options) (res *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile program", "nregs", opts.NRegs, "jobs", opts.Jobs)
	defer tr.Finish("err", &err)

	if err = memory.NewEvaluator(t).Layout(prog); err != nil {
		return nil, errors.Wrap(err, "layout")
	}

	if err = imcgen.NewGenerator(t).GenerateProgram(prog); err != nil {
		return nil, errors.Wrap(err, "generate intermediate code")
	}

	if w := opts.Listings.IMC; w != nil {
		printTrees(w, prog, t)
	}

	lin, err := imclin.Linearize(prog, t)
	if err != nil {
		return nil, errors.Wrap(err, "linearize")
	}

	tr.Printw("linearized", "data_chunks", len(lin.Data), "code_chunks", len(lin.Code))

	if w := opts.Listings.Lin; w != nil {
		printChunks(w, lin)
	}

	units := make([]*Unit, len(lin.Code))

	var g errgroup.Group
	g.SetLimit(max(opts.Jobs, 1))

	for i, chunk := range lin.Code {
		i, chunk := i, chunk

		g.Go(func() error {
			u, err := compileUnit(ctx, chunk, opts)
			if err != nil {
				return errors.Wrap(err, "function %v", chunk.Frame.Label)
			}

			units[i] = u

			return nil
		})
	}

	if err = g.Wait(); err != nil {
		return nil, err
	}

	for _, u := range units {
		flush(opts.Listings.Asm, &u.asm)
		flush(opts.Listings.Live, &u.live)
		flush(opts.Listings.RegAll, &u.regall)
	}

	return &Result{Lin: lin, Units: units, NRegs: opts.NRegs}, nil
}

func compileUnit(ctx context.Context, chunk *imclin.CodeChunk, opts Options) (u *Unit, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "compile function", "label", chunk.Frame.Label)
	defer tr.Finish("err", &err)

	u = &Unit{Chunk: chunk}

	u.Code, err = asmgen.SelectCode(chunk, asmgen.Options{Args: opts.Args})
	if err != nil {
		return nil, errors.Wrap(err, "select instructions")
	}

	tr.Printw("selected", "instrs", len(u.Code.Instrs))

	if opts.Listings.Asm != nil {
		asm.NewPrinter(&u.asm).PrintCode(u.Code)
	}

	if opts.Listings.Live != nil {
		passes, err := livean.Analyze(u.Code)
		if err != nil {
			return nil, errors.Wrap(err, "analyze liveness")
		}

		tr.Printw("liveness", "passes", passes)

		p := asm.NewPrinter(&u.live)
		p.Live = true
		p.PrintCode(u.Code)
	}

	u.Alloc, err = regall.Allocate(u.Code, opts.NRegs)
	if err != nil {
		return nil, errors.Wrap(err, "allocate registers")
	}

	tr.Printw("allocated", "rounds", u.Alloc.Rounds, "spilled", u.Alloc.Spilled, "frame_size", u.Code.FrameSize())

	if opts.Listings.RegAll != nil {
		p := asm.NewPrinter(&u.regall)
		p.Window = opts.NRegs
		p.PrintCode(u.Code)
	}

	return u, nil
}

func flush(w io.Writer, b *bytes.Buffer) {
	if w != nil {
		_, _ = b.WriteTo(w)
	}
}

func printTrees(w io.Writer, prog *ast.Program, t *attr.Tables) {
	p := imc.NewPrinter(w)
	for _, fun := range ast.Functions(prog) {
		if fun.Expr == nil {
			continue
		}

		frame := t.Frames[fun]
		fmt.Fprintf(w, "%s: %s\n", frame.Label, frame)
		p.PrintStmt(imc.MOVE{Dst: imc.TEMP{Temp: frame.RV}, Src: t.ExprIR[fun.Expr]})
		fmt.Fprintln(w)
	}
}

func printChunks(w io.Writer, lin *imclin.Program) {
	for _, d := range lin.Data {
		if d.Init != nil {
			fmt.Fprintf(w, "%s: size=%d init=%q\n", d.Label, d.Size, *d.Init)
			continue
		}
		fmt.Fprintf(w, "%s: size=%d\n", d.Label, d.Size)
	}
	if len(lin.Data) != 0 {
		fmt.Fprintln(w)
	}

	p := imc.NewPrinter(w)
	for _, c := range lin.Code {
		fmt.Fprintf(w, "%s: %s entry=%s exit=%s\n", c.Frame.Label, c.Frame, c.Entry, c.Exit)
		p.PrintStmts(c.Stmts)
		fmt.Fprintln(w)
	}
}

// Program collects the final program for emission.
func (r *Result) Program() *mmix.Program {
	prog := &mmix.Program{Data: r.Lin.Data}
	for _, u := range r.Units {
		prog.Code = append(prog.Code, u.Code)
	}
	return prog
}

// WriteAssembly writes the program as MMIXAL.
func (r *Result) WriteAssembly(w io.Writer) error {
	if err := mmix.NewPrinter(w, r.NRegs).PrintProgram(r.Program()); err != nil {
		return errors.Wrap(err, "emit")
	}
	return nil
}

// Run interprets the linearized program and returns its exit code.
func (r *Result) Run(in io.Reader, out io.Writer) (int64, error) {
	m := interp.New(in, out)
	m.LoadProgram(r.Lin)
	return m.Run()
}

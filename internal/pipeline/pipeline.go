// Package pipeline drives a type-checked program through the backend:
// layout validation, IR generation, optimisation, code generation and
// finalisation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"swayc/internal/asm"
	"swayc/internal/asmgen"
	"swayc/internal/ast"
	"swayc/internal/diag"
	"swayc/internal/finalize"
	"swayc/internal/ir"
	"swayc/internal/irgen"
	"swayc/internal/layout"
	"swayc/internal/logx"
	"swayc/internal/observ"
	"swayc/internal/opt"
	"swayc/internal/source"
	"swayc/internal/storagekey"
	"swayc/internal/trace"
)

// Stage names used for trace spans and timings.
const (
	StageLayout   = "layout"
	StageIRGen    = "irgen"
	StageVerify   = "verify"
	StageOptimize = "optimize"
	StageCodegen  = "codegen"
	StageFinalize = "finalize"
)

// Options configures Compile.
type Options struct {
	// Passes lists the optimisation passes; nil selects opt.DefaultPasses.
	// Return-value demotion is always appended.
	Passes []string
	// Legacy selects the direct AST-to-assembly generator.
	Legacy bool
	// Jobs bounds concurrent per-function code generation; 0 uses GOMAXPROCS.
	Jobs         int
	VerifyStrict bool
	// Timer records stage durations when set.
	Timer *observ.Timer
}

// Selector is the ABI selector of one contract entry.
type Selector struct {
	Name     string `msgpack:"name"`
	Selector uint32 `msgpack:"selector"`
}

// Artifact is everything a build produces.
type Artifact struct {
	Name         string                    `msgpack:"name"`
	Kind         ast.ProgramKind           `msgpack:"kind"`
	Bytecode     []byte                    `msgpack:"bytecode"`
	SourceMap    []finalize.SourceMapEntry `msgpack:"source_map"`
	StorageSlots []storagekey.Slot         `msgpack:"storage_slots"`
	Selectors    []Selector                `msgpack:"selectors"`
	IRText       string                    `msgpack:"ir"`
	AsmText      string                    `msgpack:"asm"`
	Listing      string                    `msgpack:"listing"`
	Passes       []opt.PassStat            `msgpack:"-"`
}

type compiler struct {
	prog *ast.Program
	opts Options
	bag  *diag.Bag
}

// Compile builds prog. Diagnostics of every stage are collected; code
// generation does not start once an error was reported.
func Compile(ctx context.Context, prog *ast.Program, opts Options) diag.Result[*Artifact] {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &compiler{prog: prog, opts: opts, bag: diag.NewBag(0)}
	art, err := c.run(ctx)
	if err != nil {
		c.bag.Add(diag.NewError(diag.InternalInvariant, source.Span{}, err.Error()))
		return diag.FromBag[*Artifact](nil, false, c.bag)
	}
	if art == nil {
		return diag.FromBag[*Artifact](nil, false, c.bag)
	}
	return diag.FromBag(art, true, c.bag)
}

// stage opens a trace span and a timer phase for name. The returned
// context parents nested spans under the stage.
func (c *compiler) stage(ctx context.Context, name string) (context.Context, func(detail string)) {
	sctx, span := trace.Start(ctx, trace.ScopeStage, name)
	idx := c.opts.Timer.Begin(name)
	return sctx, func(detail string) {
		span.End(detail)
		c.opts.Timer.End(idx, detail)
	}
}

func (c *compiler) run(ctx context.Context) (*Artifact, error) {
	if c.prog == nil || c.prog.Types == nil || c.prog.Decls == nil {
		return nil, errors.New("pipeline: incomplete program")
	}
	logger := logx.FromContext(ctx).With("program", c.prog.Name)
	logger.Info("compiling", "kind", c.prog.Kind.String(), "legacy", c.opts.Legacy)

	lay := layout.New(c.prog.Types)
	_, done := c.stage(ctx, StageLayout)
	validateLayouts(c.prog.Types, lay, diag.BagReporter{Bag: c.bag})
	done(fmt.Sprintf("types=%d", c.prog.Types.Len()-1))
	if c.bag.HasErrors() {
		logger.Debug("stopping after layout validation", "errors", len(c.bag.Errors()))
		return nil, nil
	}

	art := &Artifact{Name: c.prog.Name, Kind: c.prog.Kind}
	var prog *asm.Program
	if c.opts.Legacy {
		prog = c.legacy(ctx, lay)
	} else {
		mod, err := c.buildIR(ctx)
		if err != nil || mod == nil {
			return nil, err
		}
		art.IRText = irText(mod)
		art.StorageSlots = mod.StorageSlots
		art.Passes = mod.passes
		prog, err = c.codegen(ctx, mod.Module)
		if err != nil {
			return nil, err
		}
	}
	if prog == nil {
		return nil, nil
	}
	art.AsmText = prog.String()
	for _, f := range prog.Funcs {
		if f.HasSelector {
			art.Selectors = append(art.Selectors, Selector{Name: f.Name, Selector: f.Selector})
		}
	}

	_, done = c.stage(ctx, StageFinalize)
	bin, err := finalize.Finalize(prog, c.prog.Files)
	if err != nil {
		done("failed")
		return nil, fmt.Errorf("finalize: %w", err)
	}
	done(fmt.Sprintf("instrs=%d data=%d", len(bin.Instrs), len(bin.Data)))
	art.Bytecode = bin.Bytecode()
	art.SourceMap = bin.SourceMap
	var sb strings.Builder
	if err := finalize.Print(&sb, bin); err != nil {
		return nil, err
	}
	art.Listing = sb.String()
	logger.Info("compiled", "bytes", len(art.Bytecode), "selectors", len(art.Selectors))
	return art, nil
}

type optimizedModule struct {
	*ir.Module
	passes []opt.PassStat
}

// buildIR generates, verifies and optimises the IR. A nil module with a
// nil error means diagnostics were reported.
func (c *compiler) buildIR(ctx context.Context) (*optimizedModule, error) {
	logger := logx.FromContext(ctx)

	_, done := c.stage(ctx, StageIRGen)
	mod, ok := irgen.Build(c.prog).Unwrap(c.bag)
	done(fmt.Sprintf("ok=%v", ok))
	if !ok || c.bag.HasErrors() {
		return nil, nil
	}
	if !c.verify(ctx, mod, "irgen") {
		return nil, nil
	}

	passes := c.opts.Passes
	if passes == nil {
		passes = opt.DefaultPasses()
	}
	if !slices.Contains(passes, "ret-demotion") {
		passes = append(slices.Clone(passes), "ret-demotion")
	}
	octx, done := c.stage(ctx, StageOptimize)
	mgr := opt.NewManager()
	if err := mgr.Run(octx, mod, passes); err != nil {
		done("failed")
		if errors.Is(err, opt.ErrUnknownPass) {
			return nil, err
		}
		c.bag.Add(diag.NewError(diag.InternalInvariant, source.Span{}, err.Error()))
		return nil, nil
	}
	stats := slices.Clone(mgr.Stats())
	done(fmt.Sprintf("passes=%d", len(passes)))
	logger.Debug("optimised", "passes", strings.Join(passes, ","))

	if !c.verify(ctx, mod, "optimize") {
		return nil, nil
	}
	return &optimizedModule{Module: mod, passes: stats}, nil
}

func (c *compiler) verify(ctx context.Context, mod *ir.Module, after string) bool {
	_, done := c.stage(ctx, StageVerify)
	err := ir.Verify(mod, ir.VerifyOptions{Strict: c.opts.VerifyStrict})
	if err == nil {
		done("after " + after)
		return true
	}
	done("failed after " + after)
	for _, e := range unjoin(err) {
		c.bag.Add(diag.NewError(diag.InternalIRVerify, source.Span{}, after+": "+e.Error()))
	}
	return false
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

// codegen lowers every function concurrently and assembles them in module
// order.
func (c *compiler) codegen(ctx context.Context, mod *ir.Module) (*asm.Program, error) {
	gctx, done := c.stage(ctx, StageCodegen)

	jobs := c.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	funcs := make([]*asm.Function, len(mod.Funcs))
	diags := make([][]diag.Diagnostic, len(mod.Funcs))

	g, egctx := errgroup.WithContext(gctx)
	g.SetLimit(max(1, min(jobs, len(mod.Funcs))))
	for i, f := range mod.Funcs {
		g.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			_, span := trace.Start(egctx, trace.ScopeFunction, f.Name)
			funcs[i], diags[i] = asmgen.CompileFunc(mod, f)
			span.End(fmt.Sprintf("diags=%d", len(diags[i])))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		done("canceled")
		return nil, err
	}
	for _, ds := range diags {
		for _, d := range ds {
			c.bag.Add(d)
		}
	}
	if c.bag.HasErrors() {
		done("failed")
		return nil, nil
	}
	prog, err := asmgen.Assemble(mod.Kind, funcs)
	if err != nil {
		done("failed")
		c.bag.Add(diag.NewError(diag.InternalInvariant, source.Span{}, err.Error()))
		return nil, nil
	}
	done(fmt.Sprintf("funcs=%d", len(funcs)))
	return prog, nil
}

func (c *compiler) legacy(ctx context.Context, lay *layout.LayoutEngine) *asm.Program {
	_, done := c.stage(ctx, StageCodegen)
	prog, ok := asmgen.NewLegacy(c.prog, lay, nil).CompileLegacy().Unwrap(c.bag)
	if !ok || c.bag.HasErrors() {
		done("failed")
		return nil
	}
	done(fmt.Sprintf("funcs=%d legacy", len(prog.Funcs)))
	return prog
}

func irText(m *optimizedModule) string {
	var sb strings.Builder
	_ = ir.Print(&sb, m.Module)
	return sb.String()
}

// Package opt runs IR-to-IR optimisation passes.
package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"swayc/internal/analysis"
	"swayc/internal/ir"
	"swayc/internal/logx"
	"swayc/internal/trace"
)

// AnalysisID names a cached analysis.
type AnalysisID string

const (
	AnalysisDominators AnalysisID = "dominators"
	AnalysisEscape     AnalysisID = "escaped-symbols"
)

// Context is handed to every pass.
type Context struct {
	Module   *ir.Module
	Analyses *Analyses
	Logger   *slog.Logger
}

// Pass is one IR transform. Exactly one of RunFunc and RunModule is set.
// A pass returns true when it changed the IR.
type Pass struct {
	Name      string
	Descr     string
	Deps      []AnalysisID
	RunFunc   func(ctx *Context, f *ir.Function) (bool, error)
	RunModule func(ctx *Context, m *ir.Module) (bool, error)
}

// Analyses caches analysis results per function until a pass reports a
// change to that function.
type Analyses struct {
	doms     map[*ir.Function]*analysis.DomTree
	escape   map[*ir.Function]*analysis.EscapeInfo
	computed map[AnalysisID]int
}

func NewAnalyses() *Analyses {
	return &Analyses{
		doms:     make(map[*ir.Function]*analysis.DomTree),
		escape:   make(map[*ir.Function]*analysis.EscapeInfo),
		computed: make(map[AnalysisID]int),
	}
}

func (a *Analyses) Dominators(f *ir.Function) *analysis.DomTree {
	if t, ok := a.doms[f]; ok {
		return t
	}
	t := analysis.Dominators(f)
	a.doms[f] = t
	a.computed[AnalysisDominators]++
	return t
}

func (a *Analyses) Escape(f *ir.Function) *analysis.EscapeInfo {
	if e, ok := a.escape[f]; ok {
		return e
	}
	e := analysis.EscapedSymbols(f)
	a.escape[f] = e
	a.computed[AnalysisEscape]++
	return e
}

// Computed reports how many times an analysis ran.
func (a *Analyses) Computed(id AnalysisID) int {
	return a.computed[id]
}

func (a *Analyses) ensure(id AnalysisID, f *ir.Function) {
	switch id {
	case AnalysisDominators:
		a.Dominators(f)
	case AnalysisEscape:
		a.Escape(f)
	}
}

// Invalidate drops every cached result for f.
func (a *Analyses) Invalidate(f *ir.Function) {
	delete(a.doms, f)
	delete(a.escape, f)
}

// InvalidateAll drops every cached result.
func (a *Analyses) InvalidateAll() {
	clear(a.doms)
	clear(a.escape)
}

// Canonical pass order. Return-value demotion must run after every other
// structural transform.
var canonicalOrder = []string{
	"simplify-cfg",
	"sroa",
	"dce",
	"reg-pressure",
	"ret-demotion",
}

// DefaultPasses is the pipeline used when no pass list is configured.
func DefaultPasses() []string {
	return slices.Clone(canonicalOrder)
}

// ErrUnknownPass is returned for pass names that are not registered.
var ErrUnknownPass = errors.New("unknown pass")

// PassStat records one pass execution.
type PassStat struct {
	Pass    string
	Func    string
	Changed bool
}

// Manager registers passes and runs them in canonical order.
type Manager struct {
	passes   map[string]Pass
	stats    []PassStat
	analyses *Analyses
}

// NewManager creates a manager with every built-in pass registered.
func NewManager() *Manager {
	m := &Manager{passes: make(map[string]Pass)}
	for _, p := range []Pass{SimplifyCFGPass(), DCEPass(), SROAPass(), RegPressurePass(), RetDemotionPass()} {
		m.passes[p.Name] = p
	}
	return m
}

// Register adds or replaces a pass.
func (m *Manager) Register(p Pass) {
	m.passes[p.Name] = p
}

// Passes lists the registered passes sorted by name.
func (m *Manager) Passes() []Pass {
	out := make([]Pass, 0, len(m.passes))
	for _, p := range m.passes {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Pass) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

// Analyses returns the analysis cache of the last Run.
func (m *Manager) Analyses() *Analyses {
	return m.analyses
}

// Stats returns the executions recorded by the last Run.
func (m *Manager) Stats() []PassStat {
	return m.stats
}

// order sorts names into canonical order; passes outside it keep their
// relative order after the canonical ones but before ret-demotion.
func order(names []string) []string {
	rank := func(n string) int {
		if i := slices.Index(canonicalOrder, n); i >= 0 {
			if n == "ret-demotion" {
				return len(canonicalOrder) + 1
			}
			return i
		}
		return len(canonicalOrder)
	}
	out := slices.Clone(names)
	slices.SortStableFunc(out, func(a, b string) int { return rank(a) - rank(b) })
	return slices.Compact(out)
}

// Run executes the named passes over mod.
func (m *Manager) Run(ctx context.Context, mod *ir.Module, names []string) error {
	m.stats = m.stats[:0]
	logger := logx.FromContext(ctx)
	m.analyses = NewAnalyses()
	pctx := &Context{Module: mod, Analyses: m.analyses, Logger: logger}

	for _, name := range order(names) {
		p, ok := m.passes[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPass, name)
		}
		_, span := trace.Start(ctx, trace.ScopePass, p.Name)
		changed, err := m.runPass(pctx, p)
		span.End(fmt.Sprintf("changed=%v", changed))
		if err != nil {
			return fmt.Errorf("pass %s: %w", p.Name, err)
		}
		logger.Debug("pass finished", "pass", p.Name, "changed", changed)
	}
	return nil
}

func (m *Manager) runPass(ctx *Context, p Pass) (bool, error) {
	if p.RunModule != nil {
		for _, f := range ctx.Module.Funcs {
			for _, dep := range p.Deps {
				ctx.Analyses.ensure(dep, f)
			}
		}
		changed, err := p.RunModule(ctx, ctx.Module)
		if changed {
			ctx.Analyses.InvalidateAll()
		}
		m.stats = append(m.stats, PassStat{Pass: p.Name, Changed: changed})
		return changed, err
	}
	anyChanged := false
	for _, f := range ctx.Module.Funcs {
		for _, dep := range p.Deps {
			ctx.Analyses.ensure(dep, f)
		}
		changed, err := p.RunFunc(ctx, f)
		if err != nil {
			return anyChanged, fmt.Errorf("function %s: %w", f.Name, err)
		}
		if changed {
			ctx.Analyses.Invalidate(f)
			anyChanged = true
		}
		m.stats = append(m.stats, PassStat{Pass: p.Name, Func: f.Name, Changed: changed})
	}
	return anyChanged, nil
}

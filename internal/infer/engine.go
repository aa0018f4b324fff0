// Package infer is the whole-program error-contract inference engine.
//
// The engine iterates four phases to a fixpoint over every basic block
// of the program: extracting basic facts (blocks proven to report a
// success code or to handle a known error), generalizing from
// recognized error-reporting functions, an accepted-but-inert third
// generalization rule, and transitive propagation of callee codes
// through returned call results. Iteration stops when neither the
// summary nor the learned state changed.
package infer

import (
	"github.com/Meai1/foreign-inference/internal/diag"
	"github.com/Meai1/foreign-inference/internal/formula"
	"github.com/Meai1/foreign-inference/internal/ir"
	"github.com/Meai1/foreign-inference/internal/pathcond"
	"github.com/Meai1/foreign-inference/internal/solver"
	"github.com/Meai1/foreign-inference/internal/summary"
)

// maxIterations bounds a run against a non-converging configuration.
// The learned sets are finite, so well-formed inputs converge long
// before this.
const maxIterations = 64

// Engine runs the inference over one program.
type Engine struct {
	prog     *ir.Program
	sum      *summary.Summary
	state    *State
	pc       *pathcond.Builder
	oracle   solver.Oracle
	resolver ir.CallResolver
	store    Store
	rep      *diag.Reporter
	opts     Options

	// warned dedupes indirect-disagreement diagnostics per call site
	// across iterations.
	warned map[ir.InstrID]bool
}

// Config wires the engine's collaborators. Nil fields fall back to
// safe defaults: no indirect resolution, no dependency store, the
// built-in evaluator oracle, a fresh reporter.
type Config struct {
	Resolver ir.CallResolver
	Store    Store
	Oracle   solver.Oracle
	Reporter *diag.Reporter
	Options  Options
}

// NewEngine prepares an engine for prog.
func NewEngine(prog *ir.Program, cfg Config) *Engine {
	if cfg.Resolver == nil {
		cfg.Resolver = ir.ResolverFunc(func(*ir.Instr) []*ir.Function { return nil })
	}
	if cfg.Store == nil {
		cfg.Store = emptyStore{}
	}
	if cfg.Oracle == nil {
		cfg.Oracle = solver.NewEvaluator()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = &diag.Reporter{}
	}
	return &Engine{
		prog:     prog,
		sum:      summary.New(),
		state:    NewState(),
		pc:       pathcond.NewBuilder(),
		oracle:   cfg.Oracle,
		resolver: cfg.Resolver,
		store:    cfg.Store,
		rep:      cfg.Reporter,
		opts:     cfg.Options,
		warned:   make(map[ir.InstrID]bool),
	}
}

// ComputeErrorSummary runs inference to a fixpoint and returns the
// resulting summary.
func ComputeErrorSummary(prog *ir.Program, cfg Config) *summary.Summary {
	e := NewEngine(prog, cfg)
	e.Run()
	return e.Summary()
}

// Summary exposes the accumulated descriptors and block facts.
func (e *Engine) Summary() *summary.Summary { return e.sum }

// Run iterates the phases until nothing changes.
func (e *Engine) Run() {
	for i := 0; i < maxIterations; i++ {
		before := e.sum.Revision() + e.state.Revision()

		e.extractBasicFacts()
		e.generalizeFromErrorFuncs()
		e.generalizeFromReturns()
		e.propagateTransitive()

		if e.sum.Revision()+e.state.Revision() == before {
			return
		}
	}
}

// AnnotationFor merges fn's descriptors into one queryable annotation.
// The bool result is false for functions with no recorded descriptors.
func (e *Engine) AnnotationFor(fn *ir.Function) (summary.Annotation, bool) {
	return summary.Merge(e.sum.DescriptorsFor(fn))
}

// --- Phase 1: basic facts ---

func (e *Engine) extractBasicFacts() {
	for _, fn := range e.prog.Functions() {
		for _, blk := range fn.Blocks {
			e.classifyBlock(fn, blk)
		}
	}
}

// --- Phase 2: generalization from error-reporting functions ---

// generalizeFromErrorFuncs commits descriptors for blocks that return
// a constant and call a recognized error-reporting function. A
// function is recognized when it was the sole action of a previously
// learned single-action descriptor, or when the configured classifier
// vouches for it.
func (e *Engine) generalizeFromErrorFuncs() {
	for _, fn := range e.prog.Functions() {
		for _, blk := range fn.Blocks {
			e.generalizeBlock(fn, blk)
		}
	}
}

func (e *Engine) generalizeBlock(fn *ir.Function, blk *ir.Block) {
	if _, ok := e.sum.Fact(blk); ok {
		return
	}
	c, ok := singleReturnConst(blk)
	if !ok || e.state.IsSuccess(fn, c) {
		return
	}

	for _, call := range blk.Calls() {
		name := call.CalleeName
		if name == "" {
			continue
		}
		if !e.state.IsErrorFunc(name) && !e.opts.Classifier.reports(featureVector(call)) {
			continue
		}

		// Only the recognized call is the action; co-located cleanup
		// calls are not reporting evidence.
		action, forwarded := callAction(call)
		desc := summary.Descriptor{
			Actions: []summary.Action{action},
			Returns: summary.NewReturns(codeKind(fn), c),
			Witnesses: []summary.Witness{{
				Site: call.ID,
				Tag:  "reports-error",
				Pos:  call.Pos,
			}},
		}
		if e.commit(fn, desc) {
			e.sum.MarkError(blk, forwarded)
		}
		return
	}
}

// --- Phase 3: generalization from returned codes ---

// generalizeFromReturns is accepted for configuration compatibility
// but intentionally does nothing.
func (e *Engine) generalizeFromReturns() {}

// --- Phase 4: transitive propagation ---

// propagateTransitive copies callee descriptors forward through blocks
// that return a call's result directly, keeping only the codes that
// remain feasible under the block's path condition and the caller's
// success model.
func (e *Engine) propagateTransitive() {
	for _, fn := range e.prog.Functions() {
		for _, blk := range fn.Blocks {
			e.propagateBlock(fn, blk)
		}
	}
}

func (e *Engine) propagateBlock(fn *ir.Function, blk *ir.Block) {
	if _, ok := e.sum.Fact(blk); ok {
		return
	}
	term := blk.Terminator()
	if term == nil || term.Op != ir.OpReturn || term.Ret == nil {
		return
	}
	res, ok := ir.Unwrap(term.Ret).(ir.Result)
	if !ok || res.Instr.Op != ir.OpCall {
		return
	}
	call := res.Instr
	if call.Indirect {
		return
	}

	pathF, _ := e.pc.RelevantFacts(blk, call)

	for _, d := range e.calleeDescriptors(call) {
		kept := make([]int32, 0, len(d.Returns.Codes))
		for _, c := range d.Returns.Codes {
			if e.state.IsSuccess(fn, c) {
				continue
			}
			if !e.oracle.IsSatisfiable(formula.Conj(formula.NewCmp(formula.EQ, c), pathF)) {
				continue
			}
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			continue
		}

		witnesses := make([]summary.Witness, 0, len(d.Witnesses)+1)
		witnesses = append(witnesses, d.Witnesses...)
		witnesses = append(witnesses, summary.Witness{
			Site: term.ID,
			Tag:  "transitive",
			Pos:  term.Pos,
		})
		e.commit(fn, summary.Descriptor{
			Actions:   d.Actions,
			Returns:   summary.NewReturns(d.Returns.Kind, kept...),
			Witnesses: witnesses,
		})
	}
}

// calleeDescriptors collects the known descriptors of a direct call's
// callee, from the in-progress summary for program functions and from
// the dependency store for external names.
func (e *Engine) calleeDescriptors(call *ir.Instr) []summary.Descriptor {
	if call.Callee != nil {
		return e.sum.DescriptorsFor(call.Callee)
	}
	if call.CalleeName == "" {
		return nil
	}
	ann, ok := e.store.ReportsErrors(call.CalleeName)
	if !ok || len(ann.Returns.Codes) == 0 {
		return nil
	}
	return []summary.Descriptor{{
		Actions:   ann.Actions,
		Returns:   ann.Returns,
		Witnesses: ann.Witnesses,
	}}
}

// --- Commit ---

// commit adds a descriptor and folds its consequences into the learned
// state: every integer code becomes a learned code, and the callee of
// a single-action descriptor becomes a recognized error-reporting
// function.
func (e *Engine) commit(fn *ir.Function, desc summary.Descriptor) bool {
	if !e.sum.Add(fn, desc) {
		return false
	}
	if desc.Returns.Kind == summary.IntCodes {
		for _, c := range desc.Returns.Codes {
			e.state.LearnCode(c)
		}
	}
	if len(desc.Actions) == 1 {
		e.state.LearnErrorFunc(desc.Actions[0].Callee)
	}
	return true
}

func featureVector(call *ir.Instr) FeatureVector {
	fv := FeatureVector{Callee: call.CalleeName, Args: len(call.Args)}
	for _, a := range call.Args {
		switch ir.Unwrap(a).(type) {
		case ir.Const:
			fv.LiteralArgs++
		case ir.Arg:
			fv.ForwardedArgs++
		}
	}
	return fv
}

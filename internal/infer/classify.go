package infer

import (
	"sort"

	"github.com/Meai1/foreign-inference/internal/diag"
	"github.com/Meai1/foreign-inference/internal/formula"
	"github.com/Meai1/foreign-inference/internal/ir"
	"github.com/Meai1/foreign-inference/internal/summary"
)

// Block classification: the three mutually exclusive outcomes of one
// block: proven success path, confirmed known-error path, or
// unclassified (eligible for generalization). Outcomes are cached as
// block facts in the summary, so each block is decided at most once.

// classifyBlock computes the block's basic fact, if any.
func (e *Engine) classifyBlock(fn *ir.Function, blk *ir.Block) {
	if _, ok := e.sum.Fact(blk); ok {
		return
	}
	if e.reportsSuccess(fn, blk) {
		return
	}
	e.handlesKnownError(fn, blk)
}

// reportsSuccess proves that blk lies on a non-error path: its single
// predecessor branches on a known error check, and no value of the
// checked call satisfies both "the error occurred" and "control went
// this way". The block's return constant then becomes a success code
// of fn, shielding it from later misclassification as an error return.
func (e *Engine) reportsSuccess(fn *ir.Function, blk *ir.Block) bool {
	c, ok := singleReturnConst(blk)
	if !ok || len(blk.Preds) != 1 {
		return false
	}
	pred := blk.Preds[0]

	chk, ok := e.errorCheckAt(pred)
	if !ok {
		return false
	}

	rel, ok := branchRelation(fn, pred, blk, chk)
	if !ok {
		return false
	}
	anc, _ := e.pc.RelevantFacts(pred, chk.call)

	if e.oracle.IsSatisfiable(formula.Conj(errorOccurred(chk.codes), rel, anc)) {
		return false
	}

	// This edge provably cannot be the error edge.
	e.state.AddSuccess(fn, c)
	e.sum.MarkSuccess(blk)
	return true
}

// handlesKnownError confirms blk as an error-reporting block: it
// returns one known constant, and every control-dependency branch that
// checks a call against known error codes leaves the error case
// feasible on the path into blk.
func (e *Engine) handlesKnownError(fn *ir.Function, blk *ir.Block) bool {
	c, ok := singleReturnConst(blk)
	if !ok {
		return false
	}

	found := false
	for _, dep := range fn.ControlDeps(blk) {
		chk, ok := e.errorCheckAt(dep)
		if !ok {
			continue
		}

		pathF, _ := e.pc.RelevantFacts(blk, chk.call)
		if !e.oracle.IsSatisfiable(formula.Conj(pathF, errorOccurred(chk.codes))) {
			// The error case is impossible on this path.
			return false
		}
		found = true
	}
	if !found {
		return false
	}

	if e.state.IsSuccess(fn, c) {
		// Misattributed success: withdraw codes now contradicted by the
		// success model instead of committing a bogus descriptor.
		e.removeImprobableErrors(fn)
		return false
	}

	actions, forwarded := blockActions(blk)
	desc := summary.Descriptor{
		Actions: actions,
		Returns: summary.NewReturns(codeKind(fn), c),
		Witnesses: []summary.Witness{{
			Site: blk.Terminator().ID,
			Tag:  "handles-known-error",
			Pos:  blk.Terminator().Pos,
		}},
	}
	if e.commit(fn, desc) {
		e.sum.MarkError(blk, forwarded)
	}
	return true
}

// removeImprobableErrors retracts every recorded code of fn that the
// success model contradicts. Bounded: each contradiction fires once.
func (e *Engine) removeImprobableErrors(fn *ir.Function) {
	bad := e.state.SuccessCodes(fn)
	if len(bad) == 0 {
		return
	}
	if e.sum.Retract(fn, bad) {
		sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })
		e.rep.Phase(diag.PhaseFacts).Warn(fn.Pos, diag.RetractedSuccessCodes(),
			"retracted success codes %v previously recorded as errors of %s", bad, fn.Name)
	}
}

// errorCheck is a recognized "branch on a known error code" pattern.
type errorCheck struct {
	call  *ir.Instr // the checked call
	cmp   *ir.Instr // the comparison feeding the branch
	k     int32     // the compared constant
	codes []int32   // the callee's known error codes; k is among them
}

// errorCheckAt recognizes blk's terminator as a conditional branch
// comparing a (possibly indirect) call's result against one of the
// callee's known error codes.
func (e *Engine) errorCheckAt(blk *ir.Block) (errorCheck, bool) {
	term := blk.Terminator()
	if term == nil || term.Op != ir.OpBranch {
		return errorCheck{}, false
	}
	cond, ok := ir.Unwrap(term.Cond).(ir.Result)
	if !ok || cond.Instr.Op != ir.OpCompare {
		return errorCheck{}, false
	}
	cmp := cond.Instr

	call, k, ok := callAgainstConst(cmp)
	if !ok {
		return errorCheck{}, false
	}

	codes, ok := e.calleeErrorCodes(call)
	if !ok || !containsCode(codes, k) {
		return errorCheck{}, false
	}

	return errorCheck{call: call, cmp: cmp, k: k, codes: codes}, true
}

// callAgainstConst matches "call() PRED const" with either operand
// order, unwrapping casts on both sides.
func callAgainstConst(cmp *ir.Instr) (*ir.Instr, int32, bool) {
	if r, ok := ir.Unwrap(cmp.X).(ir.Result); ok && r.Instr.Op == ir.OpCall {
		if c, ok := ir.Unwrap(cmp.Y).(ir.Const); ok {
			return r.Instr, constCode(c), true
		}
	}
	if r, ok := ir.Unwrap(cmp.Y).(ir.Result); ok && r.Instr.Op == ir.OpCall {
		if c, ok := ir.Unwrap(cmp.X).(ir.Const); ok {
			return r.Instr, constCode(c), true
		}
	}
	return nil, 0, false
}

// branchRelation orients the recognized comparison along the edge from
// the branch block into blk: kept when the true target dominates blk,
// negated otherwise.
func branchRelation(fn *ir.Function, branch, blk *ir.Block, chk errorCheck) (formula.Formula, bool) {
	term := branch.Terminator()
	if term == nil || term.Op != ir.OpBranch {
		return nil, false
	}

	pred := chk.cmp.Pred
	if _, ok := ir.Unwrap(chk.cmp.X).(ir.Const); ok {
		pred = mirrorPred(pred)
	}

	rel := formula.NewCmp(pred, chk.k)
	if fn.Dominates(term.True, blk) {
		return rel, true
	}
	return formula.Negate(rel), true
}

func mirrorPred(p formula.Pred) formula.Pred {
	switch p {
	case formula.SLT:
		return formula.SGT
	case formula.SLE:
		return formula.SGE
	case formula.SGT:
		return formula.SLT
	case formula.SGE:
		return formula.SLE
	default:
		return p
	}
}

// errorOccurred is the disjunction "the call returned one of its known
// error codes".
func errorOccurred(codes []int32) formula.Formula {
	fs := make([]formula.Formula, len(codes))
	for i, c := range codes {
		fs[i] = formula.NewCmp(formula.EQ, c)
	}
	return formula.Disj(fs...)
}

// calleeErrorCodes resolves the checked call's known error codes,
// consulting the in-progress summary first and the dependency store
// second.
//
// Indirect calls apply the agreement policy: every resolved candidate
// must report the same code set for the check to be trusted. A
// candidate lacking information makes the check abstain silently;
// candidates with disjoint non-empty sets additionally raise a
// diagnostic.
func (e *Engine) calleeErrorCodes(call *ir.Instr) ([]int32, bool) {
	if !call.Indirect {
		return e.namedCalleeCodes(call.Callee, call.CalleeName)
	}

	candidates := e.resolver.Resolve(call)
	if len(candidates) == 0 {
		return nil, false
	}

	var agreed []int32
	for i, cand := range candidates {
		codes, ok := e.namedCalleeCodes(cand, cand.Name)
		if !ok {
			return nil, false
		}
		if i == 0 {
			agreed = codes
			continue
		}
		if sameCodes(agreed, codes) {
			continue
		}
		if disjointCodes(agreed, codes) && !e.warned[call.ID] {
			e.warned[call.ID] = true
			e.rep.Phase(diag.PhaseFacts).Warn(call.Pos, diag.IndirectDisagreement(),
				"indirect call candidates %s and %s report disjoint error codes %v vs %v",
				candidates[0].Name, cand.Name, agreed, codes)
		}
		return nil, false
	}
	return agreed, true
}

func (e *Engine) namedCalleeCodes(fn *ir.Function, name string) ([]int32, bool) {
	if fn != nil {
		if codes, ok := e.sum.ErrorCodes(fn); ok {
			return codes, true
		}
	}
	if name != "" {
		if ann, ok := e.store.ReportsErrors(name); ok && len(ann.Returns.Codes) > 0 {
			return ann.Returns.Codes, true
		}
	}
	return nil, false
}

// blockActions classifies every named call of the block as a reporting
// action and collects the parameter indices forwarded into them.
func blockActions(blk *ir.Block) ([]summary.Action, []int) {
	var actions []summary.Action
	var forwarded []int
	seen := make(map[int]bool)

	for _, call := range blk.Calls() {
		if call.CalleeName == "" {
			continue
		}
		action, fwd := callAction(call)
		actions = append(actions, action)
		for _, idx := range fwd {
			if !seen[idx] {
				seen[idx] = true
				forwarded = append(forwarded, idx)
			}
		}
	}
	return actions, forwarded
}

// callAction describes one named call as a reporting action, returning
// the parameter indices it forwards.
func callAction(call *ir.Instr) (summary.Action, []int) {
	action := summary.Action{Callee: call.CalleeName, Args: make(map[int]summary.ActionArg)}
	var forwarded []int
	seen := make(map[int]bool)
	for i, a := range call.Args {
		switch v := ir.Unwrap(a).(type) {
		case ir.Const:
			action.Args[i] = summary.ActionArg{Kind: summary.ArgLiteral, Literal: constCode(v)}
		case ir.Arg:
			action.Args[i] = summary.ActionArg{
				Kind:  summary.ArgForwarded,
				Type:  v.Type,
				Index: v.Index,
			}
			if !seen[v.Index] {
				seen[v.Index] = true
				forwarded = append(forwarded, v.Index)
			}
		}
	}
	return action, forwarded
}

func singleReturnConst(blk *ir.Block) (int32, bool) {
	rets, ok := blk.BlockReturns()
	if !ok || len(rets) == 0 {
		return 0, false
	}
	c := constCode(rets[0])
	for _, r := range rets[1:] {
		if constCode(r) != c {
			return 0, false
		}
	}
	return c, true
}

func codeKind(fn *ir.Function) summary.CodeKind {
	if fn.RetKind == ir.RetPointer {
		return summary.PointerCodes
	}
	return summary.IntCodes
}

func constCode(c ir.Const) int32 {
	if c.Null {
		return 0
	}
	return int32(c.Val)
}

func containsCode(codes []int32, k int32) bool {
	for _, c := range codes {
		if c == k {
			return true
		}
	}
	return false
}

func sameCodes(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func disjointCodes(a, b []int32) bool {
	set := make(map[int32]bool, len(a))
	for _, c := range a {
		set[c] = true
	}
	for _, c := range b {
		if set[c] {
			return false
		}
	}
	return len(a) > 0 && len(b) > 0
}

// Package pathcond constructs path conditions: the constraint over one
// instruction's result that must hold for control to reach a block.
//
// The walk follows the control-dependence relation backwards. Each
// direct dependency is a conditional branch; when its comparison,
// after unwrapping casts, relates the target instruction to a
// constant, the branch contributes that relation, negated unless the
// path towards the block follows the true edge. A block reachable
// through several dependencies combines them by disjunction, each
// disjunct conjoined with its own ancestor constraints.
//
// Without memoization the recursion is exponential in the depth of the
// dependence chains, so results are cached twice: per (function, root
// block, target instruction) across the whole run, and per dependency
// block within one computation to short-circuit shared ancestors. A
// visited set guards against cyclic control dependence on irreducible
// graphs; a revisited dependency contributes no constraint (unknown,
// not false).
package pathcond

import (
	"github.com/Meai1/foreign-inference/internal/formula"
	"github.com/Meai1/foreign-inference/internal/ir"
)

// Builder computes and memoizes path conditions. The cache stays valid
// for the lifetime of one inference run: structural facts never change
// during it.
type Builder struct {
	cache map[cacheKey]cacheEntry
}

type cacheKey struct {
	fn     ir.FuncID
	block  ir.BlockID
	target ir.InstrID
}

type cacheEntry struct {
	f  formula.Formula
	ok bool
}

// NewBuilder creates a builder with an empty cache.
func NewBuilder() *Builder {
	return &Builder{cache: make(map[cacheKey]cacheEntry)}
}

// RelevantFacts returns the constraint over target's result that must
// hold at blk. The bool result is false when no control dependency
// constrains the target; reaching the block is then vacuously
// possible for any result value.
func (b *Builder) RelevantFacts(blk *ir.Block, target *ir.Instr) (formula.Formula, bool) {
	key := cacheKey{fn: blk.Fn.ID, block: blk.ID, target: target.ID}
	if e, ok := b.cache[key]; ok {
		return e.f, e.ok
	}

	w := walker{
		fn:      blk.Fn,
		target:  target,
		memo:    make(map[ir.BlockID]formula.Formula),
		visited: make(map[ir.BlockID]bool),
	}
	f := w.facts(blk)

	e := cacheEntry{f: f, ok: f != nil}
	b.cache[key] = e
	return e.f, e.ok
}

type walker struct {
	fn     *ir.Function
	target *ir.Instr

	// memo short-circuits shared ancestors within one computation.
	memo map[ir.BlockID]formula.Formula
	// visited is the recursion stack guard for cyclic dependence.
	visited map[ir.BlockID]bool
}

func (w *walker) facts(blk *ir.Block) formula.Formula {
	if f, ok := w.memo[blk.ID]; ok {
		return f
	}
	if w.visited[blk.ID] {
		return nil
	}
	w.visited[blk.ID] = true
	defer delete(w.visited, blk.ID)

	var disjuncts []formula.Formula
	informative := false
	for _, dep := range w.fn.ControlDeps(blk) {
		rel := w.edgeConstraint(dep, blk)
		anc := w.facts(dep)

		// A dependency whose comparison carries no information still
		// passes its ancestors' constraints through.
		d := formula.Conj(rel, anc)
		if d != nil {
			informative = true
		}
		disjuncts = append(disjuncts, d)
	}

	// One unconstrained way into the block makes the disjunction
	// vacuous, so only fully-constrained dependency sets survive.
	if !informative {
		w.memo[blk.ID] = nil
		return nil
	}
	for _, d := range disjuncts {
		if d == nil {
			w.memo[blk.ID] = nil
			return nil
		}
	}

	f := formula.Disj(disjuncts...)
	w.memo[blk.ID] = f
	return f
}

// edgeConstraint extracts the relation a branch imposes on the target
// along the edge towards blk, or nil when the comparison does not
// involve the target against a constant.
func (w *walker) edgeConstraint(dep, blk *ir.Block) formula.Formula {
	term := dep.Terminator()
	if term == nil || term.Op != ir.OpBranch {
		return nil
	}

	cmp, ok := ir.Unwrap(term.Cond).(ir.Result)
	if !ok || cmp.Instr.Op != ir.OpCompare {
		return nil
	}

	rel, ok := compareAgainstConst(cmp.Instr, w.target)
	if !ok {
		return nil
	}

	// The path follows the true edge when the true target dominates
	// the dependent block; otherwise the relation is negated.
	if w.fn.Dominates(term.True, blk) {
		return rel
	}
	return formula.Negate(rel)
}

// compareAgainstConst turns "target PRED const" (either operand order,
// casts unwrapped) into a formula over the target's result.
func compareAgainstConst(cmp *ir.Instr, target *ir.Instr) (formula.Formula, bool) {
	if ir.SameResult(cmp.X, target) {
		if c, ok := ir.Unwrap(cmp.Y).(ir.Const); ok {
			return formula.NewCmp(cmp.Pred, constValue(c)), true
		}
		return nil, false
	}
	if ir.SameResult(cmp.Y, target) {
		if c, ok := ir.Unwrap(cmp.X).(ir.Const); ok {
			return formula.NewCmp(mirror(cmp.Pred), constValue(c)), true
		}
	}
	return nil, false
}

// mirror flips a predicate for a constant on the left-hand side:
// "c < x" is "x > c".
func mirror(p formula.Pred) formula.Pred {
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

func constValue(c ir.Const) int32 {
	if c.Null {
		return 0
	}
	return int32(c.Val)
}

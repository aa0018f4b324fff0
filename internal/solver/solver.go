// Package solver provides the satisfiability oracle consulted while
// classifying blocks.
//
// The oracle answers one question: does any value of the single free
// 32-bit variable satisfy a formula. Two implementations exist:
//
//   - the default exact evaluator (this file), which enumerates the
//     finitely many candidate values at which the formula's truth value
//     can change;
//   - a Z3-backed solver built under the "z3" tag, for parity checking
//     against a real decision procedure.
//
// Both are pure and side-effect-free; a run may issue thousands of
// queries, so callers memoize formulas upstream rather than here.
package solver

import (
	"math"

	"github.com/Meai1/foreign-inference/internal/formula"
)

// Oracle decides satisfiability of formulas over one free 32-bit
// signed integer. Implementations always return a definite answer.
type Oracle interface {
	IsSatisfiable(f formula.Formula) bool
}

// Evaluator is the exact default oracle.
//
// A formula built from comparisons of the free variable against
// constants is piecewise-constant: its truth value can only change at
// a mentioned constant or one step around it. Testing every such
// candidate plus the domain bounds is therefore a complete decision
// procedure, not a heuristic.
type Evaluator struct{}

// NewEvaluator returns the default oracle.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// IsSatisfiable implements Oracle.
func (e *Evaluator) IsSatisfiable(f formula.Formula) bool {
	if f == nil {
		// Absent constraint is vacuously true.
		return true
	}

	for _, x := range candidates(f) {
		if f.Eval(x) {
			return true
		}
	}
	return false
}

func candidates(f formula.Formula) []int32 {
	consts := formula.Constants(f)
	out := make([]int32, 0, len(consts)*3+2)
	out = append(out, math.MinInt32, math.MaxInt32)
	for _, c := range consts {
		out = append(out, c)
		if c != math.MinInt32 {
			out = append(out, c-1)
		}
		if c != math.MaxInt32 {
			out = append(out, c+1)
		}
	}
	return out
}

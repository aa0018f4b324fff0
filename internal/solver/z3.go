//go:build z3

package solver

import (
	"github.com/aclements/go-z3/z3"

	"github.com/Meai1/foreign-inference/internal/formula"
)

// Z3Oracle decides satisfiability with Z3 over a 32-bit bitvector.
// It exists to cross-check the evaluator; the default build never
// links Z3.
type Z3Oracle struct {
	ctx    *z3.Context
	solver *z3.Solver
	x      z3.BV
}

// NewZ3Oracle creates a Z3-backed oracle with one free variable.
func NewZ3Oracle() *Z3Oracle {
	config := z3.NewContextConfig()
	ctx := z3.NewContext(config)
	return &Z3Oracle{
		ctx:    ctx,
		solver: z3.NewSolver(ctx),
		x:      ctx.BVConst("x", 32),
	}
}

// IsSatisfiable implements Oracle.
func (o *Z3Oracle) IsSatisfiable(f formula.Formula) bool {
	if f == nil {
		return true
	}

	o.solver.Reset()
	o.solver.Assert(o.translate(f))
	sat, err := o.solver.Check()
	if err != nil {
		// The oracle contract has no failure channel. Treat a solver
		// breakdown as satisfiable: the caller then abstains from
		// marking the path impossible, which only loses precision.
		return true
	}
	return sat
}

func (o *Z3Oracle) translate(f formula.Formula) z3.Bool {
	switch v := f.(type) {
	case *formula.Cmp:
		c := o.ctx.FromInt(int64(v.Const), o.ctx.BVSort(32)).(z3.BV)
		switch v.Op {
		case formula.EQ:
			return o.x.Eq(c)
		case formula.NE:
			return o.x.NE(c)
		case formula.SLT:
			return o.x.SLT(c)
		case formula.SLE:
			return o.x.SLE(c)
		case formula.SGT:
			return o.x.SGT(c)
		case formula.SGE:
			return o.x.SGE(c)
		}
	case *formula.And:
		out := o.ctx.FromBool(true)
		for _, op := range v.Operands {
			out = out.And(o.translate(op))
		}
		return out
	case *formula.Or:
		out := o.ctx.FromBool(false)
		for _, op := range v.Operands {
			out = out.Or(o.translate(op))
		}
		return out
	case *formula.Not:
		return o.translate(v.F).Not()
	}
	return o.ctx.FromBool(true)
}

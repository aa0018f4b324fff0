package solver

import (
	"math"
	"testing"

	"github.com/Meai1/foreign-inference/internal/formula"
)

func TestEvaluatorSatisfiability(t *testing.T) {
	tests := []struct {
		name string
		f    formula.Formula
		want bool
	}{
		{"absent constraint", nil, true},
		{"single eq", formula.NewCmp(formula.EQ, -1), true},
		{
			"contradiction",
			formula.Conj(
				formula.NewCmp(formula.EQ, -1),
				formula.NewCmp(formula.NE, -1),
			),
			false,
		},
		{
			"disjoint eq pair",
			formula.Conj(
				formula.NewCmp(formula.EQ, -1),
				formula.NewCmp(formula.EQ, -2),
			),
			false,
		},
		{
			"range with hole",
			formula.Conj(
				formula.NewCmp(formula.SGE, -2),
				formula.NewCmp(formula.SLE, 0),
				formula.NewCmp(formula.NE, -1),
			),
			true,
		},
		{
			"empty range",
			formula.Conj(
				formula.NewCmp(formula.SGT, 0),
				formula.NewCmp(formula.SLT, 1),
			),
			false,
		},
		{
			"disjunction saves it",
			formula.Disj(
				formula.Conj(
					formula.NewCmp(formula.EQ, 1),
					formula.NewCmp(formula.EQ, 2),
				),
				formula.NewCmp(formula.EQ, 3),
			),
			true,
		},
		{
			"negated tautology",
			formula.Negate(formula.Disj(
				formula.NewCmp(formula.SLT, 5),
				formula.NewCmp(formula.SGE, 5),
			)),
			false,
		},
		{
			"domain bounds",
			formula.NewCmp(formula.SLT, math.MinInt32),
			false,
		},
		{
			"single point at max",
			formula.Conj(
				formula.NewCmp(formula.SGE, math.MaxInt32),
				formula.NewCmp(formula.SLE, math.MaxInt32),
			),
			true,
		},
	}

	oracle := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := oracle.IsSatisfiable(tt.f); got != tt.want {
				t.Errorf("IsSatisfiable(%v) = %v, want %v", tt.f, got, tt.want)
			}
		})
	}
}

// The transitive-filter query shape used by the engine: x == c conjoined
// with the path condition in scope at a forwarding return.
func TestEvaluatorTransitiveFilterShape(t *testing.T) {
	oracle := NewEvaluator()

	path := formula.NewCmp(formula.NE, -1) // the "rc == -1" branch was not taken

	if oracle.IsSatisfiable(formula.Conj(formula.NewCmp(formula.EQ, -1), path)) {
		t.Error("code -1 must be filtered out under path rc != -1")
	}
	if !oracle.IsSatisfiable(formula.Conj(formula.NewCmp(formula.EQ, -2), path)) {
		t.Error("code -2 must survive under path rc != -1")
	}
}

// Package formula defines the constraint language handed to the
// satisfiability oracle.
//
// Every formula is a predicate over exactly one free signed 32-bit
// integer variable, conventionally the result of one call instruction.
// The tree is deliberately tiny: comparisons against constants combined
// with conjunction, disjunction and negation. Keeping it an explicit
// tree (instead of opaque closures) gives us structural equality for
// memoization and deterministic tests.
package formula

import (
	"fmt"
	"strings"
)

// Formula is a predicate over the single free variable.
type Formula interface {
	// Eval reports whether the predicate holds for the given value.
	Eval(x int32) bool

	// String renders a canonical form usable as a cache key:
	// structurally equal formulas render identically.
	String() string

	isFormula()
}

// Pred is a signed comparison operator of a Cmp node.
type Pred int

const (
	predInvalid Pred = iota
	EQ
	NE
	SLT
	SLE
	SGT
	SGE
)

var predNames = [...]string{
	EQ:  "==",
	NE:  "!=",
	SLT: "<",
	SLE: "<=",
	SGT: ">",
	SGE: ">=",
}

func (p Pred) String() string {
	if p > predInvalid && int(p) < len(predNames) {
		return predNames[p]
	}
	return fmt.Sprintf("pred-unknown(%d)", int(p))
}

// Negate returns the complementary comparison.
func (p Pred) Negate() Pred {
	switch p {
	case EQ:
		return NE
	case NE:
		return EQ
	case SLT:
		return SGE
	case SLE:
		return SGT
	case SGT:
		return SLE
	case SGE:
		return SLT
	default:
		return predInvalid
	}
}

// Cmp compares the free variable against a constant.
type Cmp struct {
	Op    Pred
	Const int32
}

func (c *Cmp) Eval(x int32) bool {
	switch c.Op {
	case EQ:
		return x == c.Const
	case NE:
		return x != c.Const
	case SLT:
		return x < c.Const
	case SLE:
		return x <= c.Const
	case SGT:
		return x > c.Const
	case SGE:
		return x >= c.Const
	default:
		return false
	}
}

func (c *Cmp) String() string {
	return fmt.Sprintf("(x %s %d)", c.Op, c.Const)
}

func (*Cmp) isFormula() {}

// And is the conjunction of its operands.
type And struct {
	Operands []Formula
}

func (a *And) Eval(x int32) bool {
	for _, op := range a.Operands {
		if !op.Eval(x) {
			return false
		}
	}
	return true
}

func (a *And) String() string { return renderNary("and", a.Operands) }

func (*And) isFormula() {}

// Or is the disjunction of its operands.
type Or struct {
	Operands []Formula
}

func (o *Or) Eval(x int32) bool {
	for _, op := range o.Operands {
		if op.Eval(x) {
			return true
		}
	}
	return false
}

func (o *Or) String() string { return renderNary("or", o.Operands) }

func (*Or) isFormula() {}

// Not negates its operand.
type Not struct {
	F Formula
}

func (n *Not) Eval(x int32) bool { return !n.F.Eval(x) }

func (n *Not) String() string { return "(not " + n.F.String() + ")" }

func (*Not) isFormula() {}

// NewCmp builds a comparison node.
func NewCmp(op Pred, c int32) Formula { return &Cmp{Op: op, Const: c} }

// Conj combines formulas by conjunction.
//   - no operands  => nil (vacuously true, represented as "no constraint")
//   - one operand  => that operand
func Conj(fs ...Formula) Formula {
	return combine(fs, func(ops []Formula) Formula { return &And{Operands: ops} })
}

// Disj combines formulas by disjunction with the same collapsing rules
// as Conj.
func Disj(fs ...Formula) Formula {
	return combine(fs, func(ops []Formula) Formula { return &Or{Operands: ops} })
}

// Negate wraps a formula in a negation, collapsing double negation.
func Negate(f Formula) Formula {
	if f == nil {
		return nil
	}
	if n, ok := f.(*Not); ok {
		return n.F
	}
	return &Not{F: f}
}

func combine(fs []Formula, nary func([]Formula) Formula) Formula {
	ops := make([]Formula, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			ops = append(ops, f)
		}
	}
	switch len(ops) {
	case 0:
		return nil
	case 1:
		return ops[0]
	default:
		return nary(ops)
	}
}

// Constants returns every constant mentioned in the formula, in
// first-appearance order. The evaluator oracle derives its candidate
// set from these.
func Constants(f Formula) []int32 {
	var out []int32
	seen := make(map[int32]bool)
	walk(f, func(c *Cmp) {
		if !seen[c.Const] {
			seen[c.Const] = true
			out = append(out, c.Const)
		}
	})
	return out
}

func walk(f Formula, visit func(*Cmp)) {
	switch v := f.(type) {
	case *Cmp:
		visit(v)
	case *And:
		for _, op := range v.Operands {
			walk(op, visit)
		}
	case *Or:
		for _, op := range v.Operands {
			walk(op, visit)
		}
	case *Not:
		walk(v.F, visit)
	case nil:
	}
}

func renderNary(op string, operands []Formula) string {
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(op)
	for _, o := range operands {
		sb.WriteByte(' ')
		sb.WriteString(o.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

package pathcond

import (
	"testing"

	"github.com/Meai1/foreign-inference/internal/formula"
	"github.com/Meai1/foreign-inference/internal/ir"
)

// checkedCall builds
//
//	b0: rc = call callee(); if rc == -1 -> b1 | b2
//	b1: return -99
//	b2: return rc
func checkedCall(t *testing.T) (fn *ir.Function, call *ir.Instr) {
	t.Helper()

	b := ir.NewBuilder()
	cb := b.Func("callee", ir.RetInt)
	cblk := cb.Block()
	cb.Return(cblk, ir.IntConst(-1))

	fb := b.Func("caller", ir.RetInt)
	b0 := fb.Block()
	b1 := fb.Block()
	b2 := fb.Block()

	call = fb.Call(b0, cb.Fn())
	cmp := fb.Compare(b0, formula.EQ, ir.Result{Instr: call}, ir.IntConst(-1))
	fb.Branch(b0, ir.Result{Instr: cmp}, b1, b2)
	fb.Return(b1, ir.IntConst(-99))
	fb.Return(b2, ir.Result{Instr: call})

	b.Finalize()
	return fb.Fn(), call
}

func TestDirectDependency(t *testing.T) {
	fn, call := checkedCall(t)
	b1, b2 := fn.Blocks[1], fn.Blocks[2]
	pc := NewBuilder()

	f, ok := pc.RelevantFacts(b1, call)
	if !ok || f.String() != "(x == -1)" {
		t.Errorf("true-edge facts = %v (ok=%v), want (x == -1)", f, ok)
	}

	f, ok = pc.RelevantFacts(b2, call)
	if !ok || f.String() != "(not (x == -1))" {
		t.Errorf("false-edge facts = %v (ok=%v), want (not (x == -1))", f, ok)
	}
}

func TestNestedDependenciesConjoin(t *testing.T) {
	b := ir.NewBuilder()
	cb := b.Func("callee", ir.RetInt)
	cblk := cb.Block()
	cb.Return(cblk, ir.IntConst(-1))

	fb := b.Func("caller", ir.RetInt)
	b0 := fb.Block()
	b1 := fb.Block()
	b2 := fb.Block()
	b3 := fb.Block()
	b4 := fb.Block()

	call := fb.Call(b0, cb.Fn())
	outer := fb.Compare(b0, formula.SLT, ir.Result{Instr: call}, ir.IntConst(0))
	fb.Branch(b0, ir.Result{Instr: outer}, b1, b4)

	inner := fb.Compare(b1, formula.EQ, ir.Result{Instr: call}, ir.IntConst(-2))
	fb.Branch(b1, ir.Result{Instr: inner}, b2, b3)

	fb.Return(b2, ir.IntConst(-2))
	fb.Return(b3, ir.IntConst(-1))
	fb.Return(b4, ir.IntConst(0))
	b.Finalize()

	pc := NewBuilder()
	f, ok := pc.RelevantFacts(b2, call)
	if !ok {
		t.Fatal("nested block must be constrained")
	}
	if want := "(and (x == -2) (x < 0))"; f.String() != want {
		t.Errorf("facts = %s, want %s", f, want)
	}

	f, ok = pc.RelevantFacts(b3, call)
	if !ok {
		t.Fatal("else arm must be constrained")
	}
	if want := "(and (not (x == -2)) (x < 0))"; f.String() != want {
		t.Errorf("facts = %s, want %s", f, want)
	}
}

func TestCastUnwrapping(t *testing.T) {
	b := ir.NewBuilder()
	cb := b.Func("callee", ir.RetInt)
	cblk := cb.Block()
	cb.Return(cblk, ir.IntConst(-1))

	fb := b.Func("caller", ir.RetInt)
	b0 := fb.Block()
	b1 := fb.Block()
	b2 := fb.Block()

	call := fb.Call(b0, cb.Fn())
	cast := fb.Cast(b0, ir.Result{Instr: call})
	// Constant on the left: -1 < (cast rc)  <=>  rc > -1.
	cmp := fb.Compare(b0, formula.SLT, ir.IntConst(-1), ir.Result{Instr: cast})
	fb.Branch(b0, ir.Result{Instr: cmp}, b1, b2)
	fb.Return(b1, ir.IntConst(0))
	fb.Return(b2, ir.IntConst(-1))
	b.Finalize()

	pc := NewBuilder()
	f, ok := pc.RelevantFacts(b1, call)
	if !ok || f.String() != "(x > -1)" {
		t.Errorf("facts through cast = %v (ok=%v), want (x > -1)", f, ok)
	}
}

func TestNoDependenciesMeansAbsent(t *testing.T) {
	fn, call := checkedCall(t)
	pc := NewBuilder()

	if f, ok := pc.RelevantFacts(fn.Blocks[0], call); ok {
		t.Errorf("entry block has no control deps, want absent formula, got %v", f)
	}
}

func TestUninformativeComparisonAbstains(t *testing.T) {
	b := ir.NewBuilder()
	cb := b.Func("callee", ir.RetInt)
	cblk := cb.Block()
	cb.Return(cblk, ir.IntConst(-1))

	fb := b.Func("caller", ir.RetInt)
	b0 := fb.Block()
	b1 := fb.Block()
	b2 := fb.Block()

	call := fb.Call(b0, cb.Fn())
	// Compares two unknowns: no information about the call result.
	cmp := fb.Compare(b0, formula.EQ, ir.Opaque{}, ir.Opaque{})
	fb.Branch(b0, ir.Result{Instr: cmp}, b1, b2)
	fb.Return(b1, ir.IntConst(0))
	fb.Return(b2, ir.Result{Instr: call})
	b.Finalize()

	pc := NewBuilder()
	if f, ok := pc.RelevantFacts(b1, call); ok {
		t.Errorf("uninformative branch must yield absent formula, got %v", f)
	}
}

func TestMemoizationIsStable(t *testing.T) {
	fn, call := checkedCall(t)
	b2 := fn.Blocks[2]
	pc := NewBuilder()

	f1, ok1 := pc.RelevantFacts(b2, call)
	f2, ok2 := pc.RelevantFacts(b2, call)
	if ok1 != ok2 || f1.String() != f2.String() {
		t.Errorf("memoized recomputation differs: %v vs %v", f1, f2)
	}
	if f1 != f2 {
		t.Error("second query must come from the cache, not be rebuilt")
	}
}

func TestCyclicDependenceTerminates(t *testing.T) {
	b := ir.NewBuilder()
	cb := b.Func("callee", ir.RetInt)
	cblk := cb.Block()
	cb.Return(cblk, ir.IntConst(-1))

	fb := b.Func("loopy", ir.RetInt)
	b0 := fb.Block()
	b1 := fb.Block()
	b2 := fb.Block()
	b3 := fb.Block()

	call := fb.Call(b0, cb.Fn())
	c0 := fb.Compare(b0, formula.EQ, ir.Result{Instr: call}, ir.IntConst(-1))
	fb.Branch(b0, ir.Result{Instr: c0}, b1, b3)

	// b1 and b2 branch into each other: cyclic control dependence.
	c1 := fb.Compare(b1, formula.SLT, ir.Result{Instr: call}, ir.IntConst(0))
	fb.Branch(b1, ir.Result{Instr: c1}, b2, b3)
	c2 := fb.Compare(b2, formula.SGT, ir.Result{Instr: call}, ir.IntConst(-10))
	fb.Branch(b2, ir.Result{Instr: c2}, b1, b3)

	fb.Return(b3, ir.Result{Instr: call})
	b.Finalize()

	pc := NewBuilder()
	// Must terminate; the exact formula is not pinned down here.
	pc.RelevantFacts(b2, call)
	pc.RelevantFacts(b1, call)
	pc.RelevantFacts(b3, call)
}

package summary

import (
	"reflect"
	"testing"

	"github.com/sirkon/deepequal"

	"github.com/Meai1/foreign-inference/internal/ir"
)

func testFunc(t *testing.T, name string) (*ir.Function, *ir.Block) {
	t.Helper()

	b := ir.NewBuilder()
	fb := b.Func(name, ir.RetInt)
	blk := fb.Block()
	fb.Return(blk, ir.IntConst(0))
	b.Finalize()
	return fb.Fn(), blk
}

func assertSame(t *testing.T, name string, expected, got any) {
	t.Helper()
	if !reflect.DeepEqual(expected, got) {
		t.Errorf("unexpected %s", name)
		deepequal.SideBySide(t, name, expected, got)
	}
}

func logAction() Action {
	return Action{Callee: "logError", Args: map[int]ActionArg{0: {Kind: ArgLiteral, Literal: 3}}}
}

func cleanupAction() Action {
	return Action{Callee: "cleanup", Args: nil}
}

func TestAddDeduplicates(t *testing.T) {
	fn, _ := testFunc(t, "f")
	s := New()

	d := Descriptor{
		Actions: []Action{logAction()},
		Returns: NewReturns(IntCodes, -1),
	}
	if !s.Add(fn, d) {
		t.Fatal("first Add must change the summary")
	}
	rev := s.Revision()

	if s.Add(fn, d) {
		t.Error("identical descriptor must be deduplicated")
	}
	if s.Revision() != rev {
		t.Error("revision must not move on a no-op Add")
	}

	if s.Add(fn, Descriptor{Returns: NewReturns(IntCodes)}) {
		t.Error("descriptor without codes must be rejected")
	}
}

func TestErrorCodesUnion(t *testing.T) {
	fn, _ := testFunc(t, "f")
	s := New()
	s.Add(fn, Descriptor{Returns: NewReturns(IntCodes, -2, -1)})
	s.Add(fn, Descriptor{Actions: []Action{logAction()}, Returns: NewReturns(IntCodes, -1, -3)})

	codes, ok := s.ErrorCodes(fn)
	if !ok {
		t.Fatal("codes must be known")
	}
	assertSame(t, "error codes", []int32{-3, -2, -1}, codes)
}

func TestRetract(t *testing.T) {
	fn, _ := testFunc(t, "f")
	s := New()
	s.Add(fn, Descriptor{Returns: NewReturns(IntCodes, 0, -1)})
	s.Add(fn, Descriptor{Returns: NewReturns(IntCodes, 0)})

	if !s.Retract(fn, []int32{0}) {
		t.Fatal("retraction must report a change")
	}

	ds := s.DescriptorsFor(fn)
	if len(ds) != 1 {
		t.Fatalf("descriptors after retraction = %d, want 1", len(ds))
	}
	assertSame(t, "codes", []int32{-1}, ds[0].Returns.Codes)

	if s.Retract(fn, []int32{7}) {
		t.Error("retracting an absent code must be a no-op")
	}
}

func TestBlockFactsExclusive(t *testing.T) {
	_, blk := testFunc(t, "f")
	s := New()

	if !s.MarkSuccess(blk) {
		t.Fatal("first mark must succeed")
	}
	if s.MarkError(blk, nil) {
		t.Error("a success block must refuse the error tag")
	}

	fact, ok := s.Fact(blk)
	if !ok || fact.Kind != FactSuccess {
		t.Errorf("fact = %+v (ok=%v), want the original success tag", fact, ok)
	}
}

func TestMergeKindPurity(t *testing.T) {
	ann, ok := Merge([]Descriptor{
		{Returns: NewReturns(PointerCodes, 0), Witnesses: []Witness{{Tag: "ptr"}}},
		{Returns: NewReturns(IntCodes, -1), Witnesses: []Witness{{Tag: "int"}}},
	})
	if !ok {
		t.Fatal("merge of non-empty descriptors must produce an annotation")
	}
	if ann.Returns.Kind != IntCodes {
		t.Errorf("kind = %s, want int (pointer codes excluded when ints present)", ann.Returns.Kind)
	}
	assertSame(t, "codes", []int32{-1}, ann.Returns.Codes)

	// Witnesses stay: they are provenance, not findings.
	if len(ann.Witnesses) != 2 || ann.Witnesses[0].Tag != "ptr" || ann.Witnesses[1].Tag != "int" {
		t.Errorf("witnesses = %+v, want both in input order", ann.Witnesses)
	}
}

func TestMergeActionPreference(t *testing.T) {
	log := logAction()

	ann, ok := Merge([]Descriptor{
		{Actions: []Action{log}, Returns: NewReturns(IntCodes, -1)},
		{Actions: []Action{log, cleanupAction()}, Returns: NewReturns(IntCodes, -1)},
	})
	if !ok {
		t.Fatal("merge failed")
	}
	if len(ann.Actions) != 1 || ann.Actions[0].Callee != "logError" {
		t.Errorf("actions = %+v, want the single-action set", ann.Actions)
	}
}

func TestMergeActionAgreementAndConflict(t *testing.T) {
	log := logAction()
	cleanup := cleanupAction()

	ann, _ := Merge([]Descriptor{
		{Actions: []Action{cleanup, log}, Returns: NewReturns(IntCodes, -1)},
		{Actions: []Action{log, cleanup}, Returns: NewReturns(IntCodes, -2)},
	})
	if len(ann.Actions) != 2 {
		t.Errorf("order-insensitive agreement must keep the set, got %+v", ann.Actions)
	}
	assertSame(t, "codes", []int32{-2, -1}, ann.Returns.Codes)

	ann, _ = Merge([]Descriptor{
		{Actions: []Action{log, cleanup}, Returns: NewReturns(IntCodes, -1)},
		{Actions: []Action{cleanup, Action{Callee: "abort"}}, Returns: NewReturns(IntCodes, -2)},
	})
	if len(ann.Actions) != 0 {
		t.Errorf("multi-action conflict must yield no actions, got %+v", ann.Actions)
	}
}

func TestMergeEmpty(t *testing.T) {
	if _, ok := Merge(nil); ok {
		t.Error("merging nothing must report absence")
	}
}

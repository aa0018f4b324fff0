// Package witness locates inference evidence in source terms: it maps
// positions to the innermost enclosing function span and keeps the
// witnesses recorded against it. The driver uses it to phrase
// diagnostics as "inferred at <site> in <function>".
package witness

import (
	"go/token"

	"github.com/sirkon/rbtree"

	"github.com/Meai1/foreign-inference/internal/ir"
	"github.com/Meai1/foreign-inference/internal/summary"
)

// Index holds one span tree per file. Spans within a file either nest
// or are disjoint (functions and their literals), which is exactly the
// shape the RB-tree ordering below relies on.
type Index struct {
	files map[string]*rbtree.Tree[*spanNode]
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{files: make(map[string]*rbtree.Tree[*spanNode])}
}

// spanNode is a [start,end] byte-offset span of one function within a
// file, plus a nested tree for function literals contained in it.
type spanNode struct {
	start int
	end   int

	fn        *ir.Function
	witnesses []summary.Witness
	children  *rbtree.Tree[*spanNode]
}

// Cmp orders disjoint spans by position. Overlap of any kind compares
// equal; under the containment invariant that always means one span
// encloses the other, and InsertReturn hands the overlapping node back
// for the fix-up.
func (n *spanNode) Cmp(other *spanNode) int {
	if n.end < other.start {
		return -1
	}
	if n.start > other.end {
		return 1
	}
	return 0
}

func contains(a, b *spanNode) bool {
	return a.start <= b.start && a.end >= b.end
}

// AddSpan registers fn's source span. Spans must nest or be disjoint;
// a partial overlap means broken position info and panics.
func (ix *Index) AddSpan(fn *ir.Function, start, end token.Position) {
	if start.Filename == "" || start.Filename != end.Filename {
		return
	}
	t := ix.files[start.Filename]
	if t == nil {
		t = rbtree.New[*spanNode]()
		ix.files[start.Filename] = t
	}
	attachInto(t, &spanNode{start: start.Offset, end: end.Offset, fn: fn})
}

// attachInto inserts s keeping strict containment: a disjoint span
// becomes a sibling; a superspan takes the tree slot of the node it
// covers and adopts it as a child; a subspan descends into the node
// that covers it.
func attachInto(t *rbtree.Tree[*spanNode], s *spanNode) {
	r := t.InsertReturn(s)
	if r == s {
		return
	}

	if contains(s, r) {
		// s covers r: overwrite r in place so the tree handle now
		// represents s, then re-attach the old r beneath it.
		old := *r
		*r = *s
		if r.children == nil {
			r.children = rbtree.New[*spanNode]()
		}
		attachInto(r.children, &old)
		return
	}

	if contains(r, s) {
		if r.children == nil {
			r.children = rbtree.New[*spanNode]()
		}
		attachInto(r.children, s)
		return
	}

	panic("attachInto: partial-overlap spans are not supported")
}

// Attach records w against the innermost function span covering its
// position. Reports whether a span was found.
func (ix *Index) Attach(w summary.Witness) bool {
	n := ix.lookup(w.Pos)
	if n == nil {
		return false
	}
	n.witnesses = append(n.witnesses, w)
	return true
}

// FunctionAt returns the innermost function whose span covers pos, or
// nil.
func (ix *Index) FunctionAt(pos token.Position) *ir.Function {
	n := ix.lookup(pos)
	if n == nil {
		return nil
	}
	return n.fn
}

// WitnessesAt returns the witnesses recorded against the innermost
// function span covering pos.
func (ix *Index) WitnessesAt(pos token.Position) []summary.Witness {
	n := ix.lookup(pos)
	if n == nil {
		return nil
	}
	return n.witnesses
}

func (ix *Index) lookup(pos token.Position) *spanNode {
	t := ix.files[pos.Filename]
	if t == nil {
		return nil
	}
	probe := &spanNode{start: pos.Offset, end: pos.Offset}
	n := t.Search(probe)
	if n == nil {
		return nil
	}
	return descend(n, probe)
}

func descend(n *spanNode, probe *spanNode) *spanNode {
	for n.children != nil {
		child := n.children.Search(probe)
		if child == nil {
			return n
		}
		n = child
	}
	return n
}

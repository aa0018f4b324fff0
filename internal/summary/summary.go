// Package summary holds the inferred error contracts.
//
// A Descriptor records one way a function signals failure: the
// constant codes it returns and the observable actions (reporting
// calls with classified arguments) on that path. The Summary
// accumulates descriptors for every function across fixpoint
// iterations, together with per-block basic facts and a revision
// counter the engine uses to detect convergence.
package summary

import (
	"fmt"
	"go/token"
	"sort"
	"strings"

	"github.com/Meai1/foreign-inference/internal/ir"
)

// CodeKind separates the two return-code spaces. A descriptor never
// mixes them.
type CodeKind int

const (
	codeKindInvalid CodeKind = iota
	// IntCodes are integer error constants.
	IntCodes
	// PointerCodes are pointer-space constants; nil is code 0.
	PointerCodes
)

func (k CodeKind) String() string {
	switch k {
	case IntCodes:
		return "int"
	case PointerCodes:
		return "pointer"
	default:
		return fmt.Sprintf("code-kind-unknown(%d)", int(k))
	}
}

// Returns is the set of constants a descriptor reports. Never empty.
type Returns struct {
	Kind  CodeKind
	Codes []int32 // sorted, unique
}

// NewReturns builds a normalized Returns value.
func NewReturns(kind CodeKind, codes ...int32) Returns {
	return Returns{Kind: kind, Codes: normalizeCodes(codes)}
}

// Contains reports whether c is among the codes.
func (r Returns) Contains(c int32) bool {
	i := sort.Search(len(r.Codes), func(i int) bool { return r.Codes[i] >= c })
	return i < len(r.Codes) && r.Codes[i] == c
}

func normalizeCodes(codes []int32) []int32 {
	out := append([]int32(nil), codes...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, c := range out {
		if i == 0 || c != out[n-1] {
			out[n] = c
			n++
		}
	}
	return out[:n]
}

// ArgKind classifies one argument of a reporting action.
type ArgKind int

const (
	argKindInvalid ArgKind = iota
	// ArgLiteral is a known integer constant argument.
	ArgLiteral
	// ArgForwarded is a formal parameter of the erring function passed
	// through to the reporting call.
	ArgForwarded
)

// ActionArg is one classified argument of a reporting action.
type ActionArg struct {
	Kind    ArgKind
	Literal int32  // ArgLiteral
	Type    string // ArgForwarded
	Index   int    // ArgForwarded: parameter index in the erring function
}

func (a ActionArg) key() string {
	switch a.Kind {
	case ArgLiteral:
		return fmt.Sprintf("lit:%d", a.Literal)
	case ArgForwarded:
		return fmt.Sprintf("fwd:%s:%d", a.Type, a.Index)
	default:
		return "invalid"
	}
}

// Action is one observable error-reporting act: a named call with its
// classified arguments by position.
type Action struct {
	Callee string
	Args   map[int]ActionArg
}

func (a Action) key() string {
	positions := make([]int, 0, len(a.Args))
	for p := range a.Args {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	var sb strings.Builder
	sb.WriteString(a.Callee)
	for _, p := range positions {
		fmt.Fprintf(&sb, "|%d=%s", p, a.Args[p].key())
	}
	return sb.String()
}

// actionSetKey renders a canonical key for an action set, independent
// of slice order.
func actionSetKey(actions []Action) string {
	keys := make([]string, len(actions))
	for i, a := range actions {
		keys[i] = a.key()
	}
	sort.Strings(keys)
	return strings.Join(keys, ";")
}

// Witness records where and why a descriptor was inferred. Provenance
// only: it never influences classification.
type Witness struct {
	Site ir.InstrID
	Tag  string
	Pos  token.Position
}

// Descriptor is one inferred error contract of a function.
type Descriptor struct {
	Actions   []Action
	Returns   Returns
	Witnesses []Witness
}

func (d Descriptor) key() string {
	var sb strings.Builder
	sb.WriteString(d.Returns.Kind.String())
	for _, c := range d.Returns.Codes {
		fmt.Fprintf(&sb, ",%d", c)
	}
	sb.WriteByte('#')
	sb.WriteString(actionSetKey(d.Actions))
	return sb.String()
}

// FactKind discriminates basic block facts.
type FactKind int

const (
	factKindInvalid FactKind = iota
	// FactError marks a block confirmed to report an error.
	FactError
	// FactSuccess marks a block proven to lie on a non-error path.
	FactSuccess
)

// BlockFact is the per-block outcome of classification. A block never
// carries both kinds.
type BlockFact struct {
	Kind FactKind
	// Forwarded lists parameter indices of the erring function passed
	// through to reporting actions in this block. Set for FactError.
	Forwarded []int
}

// Summary is the process-wide result of one inference run.
type Summary struct {
	descriptors map[ir.FuncID][]Descriptor
	known       map[ir.FuncID]map[string]bool // descriptor keys, for dedupe
	facts       map[ir.BlockID]BlockFact
	revision    uint64
}

// New creates an empty summary.
func New() *Summary {
	return &Summary{
		descriptors: make(map[ir.FuncID][]Descriptor),
		known:       make(map[ir.FuncID]map[string]bool),
		facts:       make(map[ir.BlockID]BlockFact),
	}
}

// Revision increases on every observable mutation. The fixpoint driver
// compares revisions between iterations to detect convergence.
func (s *Summary) Revision() uint64 { return s.revision }

// Add records a descriptor for fn unless an identical one is already
// present. It reports whether the summary changed.
func (s *Summary) Add(fn *ir.Function, d Descriptor) bool {
	if len(d.Returns.Codes) == 0 {
		// A descriptor must name at least one code.
		return false
	}

	key := d.key()
	if s.known[fn.ID][key] {
		return false
	}
	if s.known[fn.ID] == nil {
		s.known[fn.ID] = make(map[string]bool)
	}
	s.known[fn.ID][key] = true
	s.descriptors[fn.ID] = append(s.descriptors[fn.ID], d)
	s.revision++
	return true
}

// DescriptorsFor returns fn's descriptors in insertion order.
func (s *Summary) DescriptorsFor(fn *ir.Function) []Descriptor {
	return s.descriptors[fn.ID]
}

// ErrorCodes returns the union of fn's integer-space error codes, and
// whether any are known.
func (s *Summary) ErrorCodes(fn *ir.Function) ([]int32, bool) {
	var all []int32
	for _, d := range s.descriptors[fn.ID] {
		all = append(all, d.Returns.Codes...)
	}
	if len(all) == 0 {
		return nil, false
	}
	return normalizeCodes(all), true
}

// Retract removes the given codes from every descriptor of fn,
// dropping descriptors left without codes. This is the bounded
// retraction used when a code turns out to be a success value.
func (s *Summary) Retract(fn *ir.Function, bad []int32) bool {
	ds := s.descriptors[fn.ID]
	if len(ds) == 0 {
		return false
	}

	badSet := make(map[int32]bool, len(bad))
	for _, c := range bad {
		badSet[c] = true
	}

	changed := false
	kept := ds[:0]
	for _, d := range ds {
		codes := d.Returns.Codes[:0:0]
		for _, c := range d.Returns.Codes {
			if badSet[c] {
				changed = true
				continue
			}
			codes = append(codes, c)
		}
		if len(codes) == 0 {
			continue
		}
		d.Returns.Codes = codes
		kept = append(kept, d)
	}

	if !changed {
		return false
	}

	s.descriptors[fn.ID] = kept
	keys := make(map[string]bool, len(kept))
	for _, d := range kept {
		keys[d.key()] = true
	}
	s.known[fn.ID] = keys
	s.revision++
	return true
}

// Fact returns the classification of blk, if any.
func (s *Summary) Fact(blk *ir.Block) (BlockFact, bool) {
	f, ok := s.facts[blk.ID]
	return f, ok
}

// MarkError tags blk as an error block. A block already tagged as a
// success block keeps its tag: the first proof wins, and the caller
// abstains. Reports whether the fact was recorded.
func (s *Summary) MarkError(blk *ir.Block, forwarded []int) bool {
	return s.mark(blk, BlockFact{Kind: FactError, Forwarded: forwarded})
}

// MarkSuccess tags blk as a success block under the same
// first-proof-wins policy as MarkError.
func (s *Summary) MarkSuccess(blk *ir.Block) bool {
	return s.mark(blk, BlockFact{Kind: FactSuccess})
}

func (s *Summary) mark(blk *ir.Block, fact BlockFact) bool {
	if old, ok := s.facts[blk.ID]; ok {
		return old.Kind == fact.Kind
	}
	s.facts[blk.ID] = fact
	s.revision++
	return true
}

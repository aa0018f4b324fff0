// Package ir is the program model the inference engine runs on.
//
// It is a deliberately small instruction graph: functions, basic
// blocks, and the handful of instruction forms the error-contract
// analysis cares about (calls, comparisons, branches, returns, casts,
// phi merges). Everything else a source language produces lowers to an
// opaque value.
//
// Handles are stable: every function, block and instruction receives
// one ID when the program is finalized, and all engine-side state
// (formula caches, block facts, summaries) is keyed by those handles.
// Structural facts (edges, dominators, control dependence) are
// immutable after Finalize.
package ir

import (
	"go/token"

	"github.com/Meai1/foreign-inference/internal/formula"
)

// FuncID is a stable function handle.
type FuncID int

// BlockID is a stable basic-block handle, unique program-wide.
type BlockID int

// InstrID is a stable instruction handle, unique program-wide.
type InstrID int

// RetKind tells how a function's return value participates in error
// signaling. A descriptor never mixes the two code spaces.
type RetKind int

const (
	// RetNone marks functions whose result is not analyzed.
	RetNone RetKind = iota
	// RetInt marks integer-code returning functions.
	RetInt
	// RetPointer marks pointer returning functions; nil lowers to
	// constant 0 in their code space.
	RetPointer
)

// Program owns every function and the structural queries over them.
type Program struct {
	funcs  []*Function
	byName map[string]*Function

	finalized bool
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{byName: make(map[string]*Function)}
}

// Functions lists every function in load order.
func (p *Program) Functions() []*Function { return p.funcs }

// FuncByName resolves a function by its qualified name.
func (p *Program) FuncByName(name string) *Function { return p.byName[name] }

// Function is one analyzed function.
type Function struct {
	ID      FuncID
	Name    string
	RetKind RetKind
	Params  []Param
	Blocks  []*Block
	Pos     token.Position

	dom  *domTree
	cdep map[*Block][]*Block
}

// Param describes one formal parameter, used to classify forwarded
// action arguments.
type Param struct {
	Index int
	Name  string
	Type  string
}

// Entry returns the function's entry block, or nil for bodyless
// functions.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Dominates reports whether block a dominates block b. Both must
// belong to the function.
func (f *Function) Dominates(a, b *Block) bool {
	return f.dom.dominates(a, b)
}

// ControlDeps returns the blocks b is directly control dependent on:
// each holds a conditional branch whose outcome decides whether b
// executes. Transitive dependencies are reached by walking these
// recursively.
func (f *Function) ControlDeps(b *Block) []*Block {
	return f.cdep[b]
}

// Block is one basic block. Instrs ends with the terminator.
type Block struct {
	ID    BlockID
	Index int
	Fn    *Function
	Preds []*Block
	Succs []*Block

	Instrs []*Instr
}

// Terminator returns the block's final instruction, or nil for an
// empty block.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

// Calls lists the call instructions of the block in order.
func (b *Block) Calls() []*Instr {
	var out []*Instr
	for _, in := range b.Instrs {
		if in.Op == OpCall {
			out = append(out, in)
		}
	}
	return out
}

// Op discriminates instruction forms.
type Op int

const (
	// OpUnknown is any instruction the analysis has no model for.
	OpUnknown Op = iota
	// OpCall invokes a callee, direct or through a value.
	OpCall
	// OpCompare relates two values.
	OpCompare
	// OpBranch transfers control on a comparison result.
	OpBranch
	// OpJump transfers control unconditionally.
	OpJump
	// OpReturn leaves the function, possibly with a value.
	OpReturn
	// OpCast forwards a value through a representation change
	// (truncation, extension, pointer/int conversion).
	OpCast
	// OpPhi merges values flowing in from predecessor blocks.
	OpPhi
)

// Instr is one instruction. Only the fields of its Op form are set.
type Instr struct {
	ID    InstrID
	Op    Op
	Block *Block
	Pos   token.Position

	// OpCall
	Callee     *Function // static callee within the program, if any
	CalleeName string    // qualified name, set for both static and external callees
	Indirect   bool      // callee is a value; resolve through a CallResolver
	Args       []Value

	// OpCompare
	Pred formula.Pred
	X, Y Value

	// OpBranch
	Cond        Value
	True, False *Block

	// OpReturn
	Ret Value

	// OpCast / OpPhi
	Src Value
	Ins []Value
}

// CallResolver maps an indirect call to its candidate concrete
// callees. Implementations come from a points-to style analysis; the
// engine only consumes the candidate list.
type CallResolver interface {
	Resolve(call *Instr) []*Function
}

// ResolverFunc adapts a function to the CallResolver interface.
type ResolverFunc func(call *Instr) []*Function

// Resolve implements CallResolver.
func (f ResolverFunc) Resolve(call *Instr) []*Function { return f(call) }

// BlockReturns reports the block's possible return constants.
//
// The bool result is true when the value space is fully known: the
// terminator returns a constant, or a phi whose incoming values are
// all constants. Blocks that do not return, or return an unknown
// value, report false.
func (b *Block) BlockReturns() ([]Const, bool) {
	term := b.Terminator()
	if term == nil || term.Op != OpReturn || term.Ret == nil {
		return nil, false
	}
	return possibleConsts(term.Ret, make(map[*Instr]bool))
}

func possibleConsts(v Value, seen map[*Instr]bool) ([]Const, bool) {
	switch w := Unwrap(v).(type) {
	case Const:
		return []Const{w}, true
	case Result:
		if w.Instr.Op != OpPhi || seen[w.Instr] {
			return nil, false
		}
		seen[w.Instr] = true
		var out []Const
		for _, in := range w.Instr.Ins {
			cs, ok := possibleConsts(in, seen)
			if !ok {
				return nil, false
			}
			out = append(out, cs...)
		}
		return out, true
	default:
		return nil, false
	}
}

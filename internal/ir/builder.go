package ir

import (
	"fmt"
	"go/token"

	"github.com/Meai1/foreign-inference/internal/formula"
)

// Builder assembles a Program. Lowerings and tests construct blocks
// and instructions through it; Finalize freezes the structure, derives
// predecessor edges and computes the dominance and control-dependence
// relations.
type Builder struct {
	prog    *Program
	nextIn  InstrID
	nextBlk BlockID
}

// NewBuilder creates a builder over a fresh program.
func NewBuilder() *Builder {
	return &Builder{prog: NewProgram()}
}

// Func starts a new function. Parameters are declared in order.
func (b *Builder) Func(name string, ret RetKind, params ...Param) *FuncBuilder {
	f := &Function{
		ID:      FuncID(len(b.prog.funcs)),
		Name:    name,
		RetKind: ret,
		Params:  params,
	}
	b.prog.funcs = append(b.prog.funcs, f)
	b.prog.byName[name] = f
	return &FuncBuilder{parent: b, fn: f}
}

// Finalize freezes the program. No structural mutation is allowed
// afterwards.
func (b *Builder) Finalize() *Program {
	if b.prog.finalized {
		panic("ir: Finalize called twice")
	}

	for _, f := range b.prog.funcs {
		for _, blk := range f.Blocks {
			for _, succ := range blk.Succs {
				succ.Preds = append(succ.Preds, blk)
			}
		}
		f.dom = computeDominators(f)
		pdom := computePostdominators(f)
		f.cdep = computeControlDeps(f, pdom)
	}

	b.prog.finalized = true
	return b.prog
}

// FuncBuilder assembles one function.
type FuncBuilder struct {
	parent *Builder
	fn     *Function
}

// Fn exposes the function under construction, for self-references and
// cross-function calls.
func (fb *FuncBuilder) Fn() *Function { return fb.fn }

// Block appends a new basic block.
func (fb *FuncBuilder) Block() *Block {
	blk := &Block{
		ID:    fb.parent.nextBlk,
		Index: len(fb.fn.Blocks),
		Fn:    fb.fn,
	}
	fb.parent.nextBlk++
	fb.fn.Blocks = append(fb.fn.Blocks, blk)
	return blk
}

func (fb *FuncBuilder) emit(blk *Block, in *Instr) *Instr {
	in.ID = fb.parent.nextIn
	in.Block = blk
	fb.parent.nextIn++
	blk.Instrs = append(blk.Instrs, in)
	return in
}

// Call emits a direct call to fn.
func (fb *FuncBuilder) Call(blk *Block, fn *Function, args ...Value) *Instr {
	return fb.emit(blk, &Instr{Op: OpCall, Callee: fn, CalleeName: fn.Name, Args: args})
}

// CallExternal emits a call to a function outside the program, known
// only through the summary store.
func (fb *FuncBuilder) CallExternal(blk *Block, name string, args ...Value) *Instr {
	return fb.emit(blk, &Instr{Op: OpCall, CalleeName: name, Args: args})
}

// CallIndirect emits a call through a value; candidates come from a
// CallResolver.
func (fb *FuncBuilder) CallIndirect(blk *Block, args ...Value) *Instr {
	return fb.emit(blk, &Instr{Op: OpCall, Indirect: true, Args: args})
}

// Compare emits x PRED y.
func (fb *FuncBuilder) Compare(blk *Block, pred formula.Pred, x, y Value) *Instr {
	return fb.emit(blk, &Instr{Op: OpCompare, Pred: pred, X: x, Y: y})
}

// Cast emits a representation change of src.
func (fb *FuncBuilder) Cast(blk *Block, src Value) *Instr {
	return fb.emit(blk, &Instr{Op: OpCast, Src: src})
}

// Phi emits a merge of the given incoming values.
func (fb *FuncBuilder) Phi(blk *Block, ins ...Value) *Instr {
	return fb.emit(blk, &Instr{Op: OpPhi, Ins: ins})
}

// Branch terminates blk with a conditional transfer.
func (fb *FuncBuilder) Branch(blk *Block, cond Value, then, els *Block) *Instr {
	in := fb.emit(blk, &Instr{Op: OpBranch, Cond: cond, True: then, False: els})
	blk.Succs = append(blk.Succs, then, els)
	return in
}

// Jump terminates blk with an unconditional transfer.
func (fb *FuncBuilder) Jump(blk, to *Block) *Instr {
	in := fb.emit(blk, &Instr{Op: OpJump})
	blk.Succs = append(blk.Succs, to)
	return in
}

// Return terminates blk, returning v (which may be nil).
func (fb *FuncBuilder) Return(blk *Block, v Value) *Instr {
	return fb.emit(blk, &Instr{Op: OpReturn, Ret: v})
}

// SetPos attaches a source position to the last emitted instruction of
// the block.
func (fb *FuncBuilder) SetPos(blk *Block, pos token.Position) {
	if len(blk.Instrs) == 0 {
		panic(fmt.Sprintf("ir: SetPos on empty block %d", blk.ID))
	}
	blk.Instrs[len(blk.Instrs)-1].Pos = pos
}

// IntConst is shorthand for an integer constant operand.
func IntConst(v int64) Const { return Const{Val: v} }

// NullConst is shorthand for a nil-pointer constant operand.
func NullConst() Const { return Const{Null: true} }

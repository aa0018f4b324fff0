// Package ssair lowers go/ssa functions into the engine's instruction
// graph. Only the forms the inference cares about survive the
// lowering: calls, integer comparisons, branches, returns, conversions
// and phi merges. Every other instruction contributes opaque operands.
package ssair

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"

	"github.com/Meai1/foreign-inference/internal/formula"
	"github.com/Meai1/foreign-inference/internal/ir"
)

// Lowering is the result of translating a set of SSA functions, with
// enough bookkeeping kept to resolve indirect calls afterwards.
type Lowering struct {
	Program *ir.Program

	fnOf   map[*ssa.Function]*ir.Function
	sites  map[ssa.CallInstruction]*ir.Instr
	params map[*ssa.Parameter]int
	values map[ssa.Value]*ir.Instr
}

// Lower translates fns into one program. Bodyless functions are
// included with no blocks so call edges to them stay direct.
func Lower(fns []*ssa.Function) *Lowering {
	l := &Lowering{
		fnOf:   make(map[*ssa.Function]*ir.Function),
		sites:  make(map[ssa.CallInstruction]*ir.Instr),
		params: make(map[*ssa.Parameter]int),
		values: make(map[ssa.Value]*ir.Instr),
	}

	b := ir.NewBuilder()
	builders := make(map[*ssa.Function]*ir.FuncBuilder, len(fns))
	for _, fn := range fns {
		fb := b.Func(fn.String(), retKindOf(fn.Signature), paramsOf(fn)...)
		builders[fn] = fb
		l.fnOf[fn] = fb.Fn()
		for i, p := range fn.Params {
			l.params[p] = i
		}
	}

	// First pass: emit instruction shells and the complete control
	// flow. Operands wait for the second pass because SSA values may
	// be defined after their uses in block order (loop phis).
	type patch struct {
		instr *ir.Instr
		src   ssa.Instruction
	}
	var patches []patch

	for _, fn := range fns {
		fb := builders[fn]
		if fn.Pos().IsValid() && fn.Prog != nil {
			fb.Fn().Pos = fn.Prog.Fset.Position(fn.Pos())
		}

		blocks := make(map[*ssa.BasicBlock]*ir.Block, len(fn.Blocks))
		for _, sb := range fn.Blocks {
			blocks[sb] = fb.Block()
		}

		for _, sb := range fn.Blocks {
			blk := blocks[sb]
			for _, in := range sb.Instrs {
				emitted := l.emit(fb, blk, blocks, in)
				if emitted == nil {
					continue
				}
				if pos := in.Pos(); pos.IsValid() && fn.Prog != nil {
					fb.SetPos(blk, fn.Prog.Fset.Position(pos))
				}
				patches = append(patches, patch{instr: emitted, src: in})
			}
		}
	}

	for _, p := range patches {
		l.connect(p.instr, p.src)
	}

	l.Program = b.Finalize()
	return l
}

// FunctionOf maps an SSA function to its lowered counterpart.
func (l *Lowering) FunctionOf(fn *ssa.Function) (*ir.Function, bool) {
	f, ok := l.fnOf[fn]
	return f, ok
}

// emit creates the instruction shell for in, or nil for forms the
// analysis has no model of.
func (l *Lowering) emit(fb *ir.FuncBuilder, blk *ir.Block, blocks map[*ssa.BasicBlock]*ir.Block, in ssa.Instruction) *ir.Instr {
	switch v := in.(type) {
	case *ssa.Call:
		out := l.emitCall(fb, blk, v)
		l.sites[v] = out
		l.values[v] = out
		return out

	case *ssa.BinOp:
		pred, ok := predOf(v.Op)
		if !ok {
			return nil
		}
		out := fb.Compare(blk, pred, nil, nil)
		l.values[v] = out
		return out

	case *ssa.Convert:
		out := fb.Cast(blk, nil)
		l.values[v] = out
		return out

	case *ssa.ChangeType:
		out := fb.Cast(blk, nil)
		l.values[v] = out
		return out

	case *ssa.Phi:
		out := fb.Phi(blk, make([]ir.Value, len(v.Edges))...)
		l.values[v] = out
		return out

	case *ssa.If:
		return fb.Branch(blk, nil, blocks[v.Block().Succs[0]], blocks[v.Block().Succs[1]])

	case *ssa.Jump:
		return fb.Jump(blk, blocks[v.Block().Succs[0]])

	case *ssa.Return:
		return fb.Return(blk, nil)

	default:
		return nil
	}
}

func (l *Lowering) emitCall(fb *ir.FuncBuilder, blk *ir.Block, call *ssa.Call) *ir.Instr {
	common := call.Common()
	if common.IsInvoke() {
		return fb.CallIndirect(blk)
	}
	callee := common.StaticCallee()
	if callee == nil {
		return fb.CallIndirect(blk)
	}
	if target, ok := l.fnOf[callee]; ok {
		return fb.Call(blk, target)
	}
	return fb.CallExternal(blk, callee.String())
}

// connect fills the operand fields of an emitted shell.
func (l *Lowering) connect(out *ir.Instr, in ssa.Instruction) {
	switch v := in.(type) {
	case *ssa.Call:
		args := v.Common().Args
		out.Args = make([]ir.Value, len(args))
		for i, a := range args {
			out.Args[i] = l.valueOf(a)
		}

	case *ssa.BinOp:
		out.X = l.valueOf(v.X)
		out.Y = l.valueOf(v.Y)

	case *ssa.Convert:
		out.Src = l.valueOf(v.X)

	case *ssa.ChangeType:
		out.Src = l.valueOf(v.X)

	case *ssa.Phi:
		for i, e := range v.Edges {
			out.Ins[i] = l.valueOf(e)
		}

	case *ssa.If:
		out.Cond = l.valueOf(v.Cond)

	case *ssa.Return:
		if len(v.Results) == 1 {
			out.Ret = l.valueOf(v.Results[0])
		}
	}
}

func (l *Lowering) valueOf(v ssa.Value) ir.Value {
	switch w := v.(type) {
	case *ssa.Const:
		if w.IsNil() {
			return ir.NullConst()
		}
		if t, ok := w.Type().Underlying().(*types.Basic); ok && t.Info()&types.IsInteger != 0 {
			return ir.IntConst(w.Int64())
		}
		return ir.Opaque{}

	case *ssa.Parameter:
		if idx, ok := l.params[w]; ok {
			return ir.Arg{Index: idx, Type: w.Type().String()}
		}
		return ir.Opaque{}

	default:
		if in, ok := l.values[v]; ok {
			return ir.Result{Instr: in}
		}
		return ir.Opaque{}
	}
}

// CHAResolver builds an indirect-call resolver from class hierarchy
// analysis over the whole SSA program. Candidates outside the lowered
// function set are dropped, which makes the engine abstain on such
// checks rather than trust a partial view.
func (l *Lowering) CHAResolver(prog *ssa.Program) ir.CallResolver {
	g := cha.CallGraph(prog)

	candidates := make(map[ir.InstrID][]*ir.Function)
	seen := make(map[ir.InstrID]map[*ir.Function]bool)
	for _, node := range g.Nodes {
		for _, edge := range node.Out {
			if edge.Site == nil {
				continue
			}
			site, ok := l.sites[edge.Site]
			if !ok || !site.Indirect {
				continue
			}
			target, ok := l.fnOf[edge.Callee.Func]
			if !ok {
				continue
			}
			if seen[site.ID] == nil {
				seen[site.ID] = make(map[*ir.Function]bool)
			}
			if seen[site.ID][target] {
				continue
			}
			seen[site.ID][target] = true
			candidates[site.ID] = append(candidates[site.ID], target)
		}
	}

	return ir.ResolverFunc(func(call *ir.Instr) []*ir.Function {
		return candidates[call.ID]
	})
}

func predOf(op token.Token) (formula.Pred, bool) {
	switch op {
	case token.EQL:
		return formula.EQ, true
	case token.NEQ:
		return formula.NE, true
	case token.LSS:
		return formula.SLT, true
	case token.LEQ:
		return formula.SLE, true
	case token.GTR:
		return formula.SGT, true
	case token.GEQ:
		return formula.SGE, true
	default:
		return 0, false
	}
}

func retKindOf(sig *types.Signature) ir.RetKind {
	if sig == nil || sig.Results().Len() != 1 {
		return ir.RetNone
	}
	switch t := sig.Results().At(0).Type().Underlying().(type) {
	case *types.Basic:
		if t.Info()&types.IsInteger != 0 {
			return ir.RetInt
		}
		if t.Kind() == types.UnsafePointer {
			return ir.RetPointer
		}
	case *types.Pointer:
		return ir.RetPointer
	}
	return ir.RetNone
}

func paramsOf(fn *ssa.Function) []ir.Param {
	out := make([]ir.Param, 0, len(fn.Params))
	for i, p := range fn.Params {
		out = append(out, ir.Param{Index: i, Name: p.Name(), Type: p.Type().String()})
	}
	return out
}

// SpanOf reports fn's source span for witness indexing. The bool
// result is false for synthetic functions without syntax.
func SpanOf(fn *ssa.Function) (start, end token.Position, ok bool) {
	syntax := fn.Syntax()
	if syntax == nil || fn.Prog == nil || !syntax.Pos().IsValid() || !syntax.End().IsValid() {
		return token.Position{}, token.Position{}, false
	}
	return fn.Prog.Fset.Position(syntax.Pos()), fn.Prog.Fset.Position(syntax.End()), true
}

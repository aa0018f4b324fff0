package ir

// Value is an operand of an instruction.
type Value interface {
	isValue()
}

// Const is a known constant. Nil pointers lower to Null with Val 0.
type Const struct {
	Val  int64
	Null bool
}

func (Const) isValue() {}

// Result references the value computed by another instruction.
type Result struct {
	Instr *Instr
}

func (Result) isValue() {}

// Arg references a formal parameter of the enclosing function.
type Arg struct {
	Index int
	Type  string
}

func (Arg) isValue() {}

// Opaque stands for any value the lowering has no model for.
type Opaque struct{}

func (Opaque) isValue() {}

// Unwrap strips cast chains: truncations, extensions and pointer/int
// conversions never change which computation a value denotes, so
// comparisons and returns are matched against the unwrapped operand.
func Unwrap(v Value) Value {
	for {
		r, ok := v.(Result)
		if !ok || r.Instr.Op != OpCast {
			return v
		}
		v = r.Instr.Src
	}
}

// SameResult reports whether v, ignoring casts, is the result of
// instruction target.
func SameResult(v Value, target *Instr) bool {
	r, ok := Unwrap(v).(Result)
	return ok && r.Instr == target
}

package infer

import (
	"sort"

	"github.com/Meai1/foreign-inference/internal/ir"
)

// State is the fixpoint-local knowledge accumulated while iterating:
// error codes seen so far, names of functions believed to be
// error-reporting, and the per-function success model. All three grow
// monotonically (only descriptors in the summary ever shrink), which
// is what bounds the fixpoint.
type State struct {
	learnedCodes map[int32]bool
	errorFuncs   map[string]bool
	successModel map[ir.FuncID]map[int32]bool

	revision uint64
}

// NewState creates an empty fixpoint state.
func NewState() *State {
	return &State{
		learnedCodes: make(map[int32]bool),
		errorFuncs:   make(map[string]bool),
		successModel: make(map[ir.FuncID]map[int32]bool),
	}
}

// Revision increases on every mutation, mirroring the summary's
// revision for convergence detection.
func (s *State) Revision() uint64 { return s.revision }

// LearnCode records an inferred error code.
func (s *State) LearnCode(c int32) {
	if !s.learnedCodes[c] {
		s.learnedCodes[c] = true
		s.revision++
	}
}

// LearnErrorFunc records a function name believed to report errors.
func (s *State) LearnErrorFunc(name string) {
	if name != "" && !s.errorFuncs[name] {
		s.errorFuncs[name] = true
		s.revision++
	}
}

// IsErrorFunc reports whether name was learned as error-reporting.
func (s *State) IsErrorFunc(name string) bool { return s.errorFuncs[name] }

// LearnedCodes snapshots the inferred error codes in ascending order.
func (s *State) LearnedCodes() []int32 {
	out := make([]int32, 0, len(s.learnedCodes))
	for c := range s.learnedCodes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ErrorFuncNames snapshots the learned reporter names in sorted order.
func (s *State) ErrorFuncNames() []string {
	out := make([]string, 0, len(s.errorFuncs))
	for name := range s.errorFuncs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AddSuccess records c as a success code of fn.
func (s *State) AddSuccess(fn *ir.Function, c int32) {
	m := s.successModel[fn.ID]
	if m == nil {
		m = make(map[int32]bool)
		s.successModel[fn.ID] = m
	}
	if !m[c] {
		m[c] = true
		s.revision++
	}
}

// IsSuccess reports whether c is a known success code of fn.
func (s *State) IsSuccess(fn *ir.Function, c int32) bool {
	return s.successModel[fn.ID][c]
}

// SuccessCodes lists fn's known success codes.
func (s *State) SuccessCodes(fn *ir.Function) []int32 {
	m := s.successModel[fn.ID]
	out := make([]int32, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}

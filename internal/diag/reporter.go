package diag

import (
	"fmt"
	"go/token"
	"sync"
)

// Reporter collects warnings emitted during an inference run.
type Reporter struct {
	mu      sync.Mutex
	reports []Report
}

// Report represents a single warning entry.
type Report struct {
	Phase   Phase
	Tag     Tag
	Pos     token.Position // may be zero when no location applies
	Message string
}

// Phase marks the inference stage where a report was generated.
type Phase int

const (
	phaseInvalid    Phase = iota
	PhaseFacts            // basic-fact extraction / block classification
	PhaseGeneralize       // generalization rules
	PhasePropagate        // transitive propagation
	PhaseStore            // summary store loading
)

func (p Phase) String() string {
	switch p {
	case PhaseFacts:
		return "facts"
	case PhaseGeneralize:
		return "generalize"
	case PhasePropagate:
		return "propagate"
	case PhaseStore:
		return "store"
	default:
		return fmt.Sprintf("unknown-phase(%d)", int(p))
	}
}

// ReporterPhase binds a Reporter to a fixed phase, so a whole pass can
// record warnings without repeating it.
type ReporterPhase struct {
	parent *Reporter
	phase  Phase
}

// Phase returns a phase-bound reporter.
func (r *Reporter) Phase(p Phase) *ReporterPhase {
	return &ReporterPhase{parent: r, phase: p}
}

// Report adds a new record to the reporter.
func (r *Reporter) Report(rep Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// Warn records a new warning under the bound phase.
func (rp *ReporterPhase) Warn(pos token.Position, tag Tag, format string, args ...any) {
	rp.parent.Report(Report{
		Phase:   rp.phase,
		Tag:     tag,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// Reports returns a snapshot of all collected records.
func (r *Reporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

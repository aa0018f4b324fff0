package diag

import (
	"go/token"
	"testing"
)

func TestReporterPhases(t *testing.T) {
	tests := []struct {
		name     string
		phase    Phase
		tag      Tag
		message  string
		filename string
		line     int
	}{
		{
			name:     "facts-phase disagreement",
			phase:    PhaseFacts,
			tag:      IndirectDisagreement(),
			message:  "candidates report disjoint code sets",
			filename: "lib.go",
			line:     10,
		},
		{
			name:     "facts-phase retraction",
			phase:    PhaseFacts,
			tag:      RetractedSuccessCodes(),
			message:  "code 0 of openConn proved to be a success value",
			filename: "conn.go",
			line:     42,
		},
		{
			name:     "store-phase schema",
			phase:    PhaseStore,
			tag:      StoreSchemaViolation(),
			message:  "libc.yaml: returns.codes must be an array",
			filename: "libc.yaml",
			line:     1,
		},
	}

	var r Reporter

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase := r.Phase(tt.phase)
			phase.Warn(token.Position{Filename: tt.filename, Line: tt.line}, tt.tag, "%s", tt.message)
		})
	}

	reps := r.Reports()
	if len(reps) != len(tests) {
		t.Fatalf("expected %d reports, got %d", len(tests), len(reps))
	}
	for i, tt := range tests {
		rep := reps[i]
		if rep.Phase != tt.phase || rep.Tag != tt.tag || rep.Message != tt.message {
			t.Errorf("report %d = %+v, want phase=%s tag=%s message=%q",
				i, rep, tt.phase, tt.tag, tt.message)
		}
		if rep.Pos.Filename != tt.filename || rep.Pos.Line != tt.line {
			t.Errorf("report %d position = %v, want %s:%d", i, rep.Pos, tt.filename, tt.line)
		}
	}
}

func TestTagStrings(t *testing.T) {
	if got := EHW001IndirectDisagreement.String(); got != "EHW001: IndirectDisagreement" {
		t.Errorf("String() = %q", got)
	}
	if Tag(999).Description() == "" {
		t.Error("unknown tags must still describe themselves")
	}
}

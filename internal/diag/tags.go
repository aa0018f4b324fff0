// Package diag is the diagnostics sink of the inference engine.
//
// The engine never fails a run: sub-computations that cannot decide
// abstain silently, and only genuinely suspicious situations surface
// here as tagged warnings. Each tag names one distinct situation.
package diag

import "fmt"

// Tag identifies a warning category (EHW-series).
type Tag int

const (
	tagInvalid Tag = iota

	// EHW001IndirectDisagreement: candidates of an indirect call report
	// disjoint error-code sets, so the branch is not trusted as an
	// error check.
	EHW001IndirectDisagreement

	// EHW010RetractedSuccessCodes: previously recorded error codes of a
	// function were withdrawn after one of them was proven to be a
	// success value.
	EHW010RetractedSuccessCodes

	// EHW020StoreSchemaViolation: a library annotation file failed
	// schema validation and was ignored.
	EHW020StoreSchemaViolation
)

// String returns the canonical code and short name of the tag.
// Example: "EHW001: IndirectDisagreement"
func (t Tag) String() string {
	switch t {
	case EHW001IndirectDisagreement:
		return "EHW001: IndirectDisagreement"
	case EHW010RetractedSuccessCodes:
		return "EHW010: RetractedSuccessCodes"
	case EHW020StoreSchemaViolation:
		return "EHW020: StoreSchemaViolation"
	default:
		return fmt.Sprintf("tag-unknown(%d)", int(t))
	}
}

// Description returns the human-readable explanation of the tag.
func (t Tag) Description() string {
	switch t {
	case EHW001IndirectDisagreement:
		return "Indirect call candidates disagree on error codes; the check is not trusted."
	case EHW010RetractedSuccessCodes:
		return "Error codes were retracted after being proven success values."
	case EHW020StoreSchemaViolation:
		return "Library annotation file rejected by schema validation."
	default:
		return fmt.Sprintf("unknown tag (%d)", int(t))
	}
}

// Canonical constructors for stable call sites.

func IndirectDisagreement() Tag  { return EHW001IndirectDisagreement }
func RetractedSuccessCodes() Tag { return EHW010RetractedSuccessCodes }
func StoreSchemaViolation() Tag  { return EHW020StoreSchemaViolation }

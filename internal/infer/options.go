package infer

import (
	"github.com/Meai1/foreign-inference/internal/summary"
)

// ClassifierKind selects the strategy for recognizing error-reporting
// functions beyond those learned from confirmed descriptors.
type ClassifierKind int

const (
	// ClassifierNone disables extra classification; only functions
	// derived from learned single-action descriptors count.
	ClassifierNone ClassifierKind = iota

	// ClassifierHeuristic trusts a fixed table of known reporting
	// function names.
	ClassifierHeuristic

	// ClassifierExternal delegates to a pluggable scoring function over
	// a feature vector.
	ClassifierExternal
)

// Class is the verdict of an external classifier.
type Class int

const (
	// ClassUnknown means the call tells us nothing.
	ClassUnknown Class = iota
	// ClassErrorReporter means the callee reports errors.
	ClassErrorReporter
)

// FeatureVector describes one call site for an external classifier.
type FeatureVector struct {
	Callee        string
	Args          int
	LiteralArgs   int
	ForwardedArgs int
}

// Classifier is a tagged variant, not an open hierarchy: exactly the
// fields of its Kind are consulted.
type Classifier struct {
	Kind ClassifierKind

	// Known holds reporting function names for ClassifierHeuristic.
	Known map[string]bool

	// Score is the external decision procedure for ClassifierExternal.
	Score func(FeatureVector) Class
}

// reports applies the configured strategy to one call site.
func (c Classifier) reports(fv FeatureVector) bool {
	switch c.Kind {
	case ClassifierHeuristic:
		return c.Known[fv.Callee]
	case ClassifierExternal:
		return c.Score != nil && c.Score(fv) == ClassErrorReporter
	default:
		return false
	}
}

// Options configures one inference run.
type Options struct {
	Classifier Classifier

	// GeneralizeFromReturns enables the third generalization rule.
	// Upstream left that rule without semantics, so it is accepted but
	// acts as a no-op.
	GeneralizeFromReturns bool
}

// Store supplies prior annotations for functions known outside the
// analyzed program, keyed by qualified name.
type Store interface {
	ReportsErrors(name string) (summary.Annotation, bool)
}

// emptyStore is the default when no dependency summaries exist.
type emptyStore struct{}

func (emptyStore) ReportsErrors(string) (summary.Annotation, bool) {
	return summary.Annotation{}, false
}

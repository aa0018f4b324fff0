package summary

// Annotation is the exported, canonical form of a function's error
// contract: the merge of all its descriptors.
type Annotation struct {
	Actions   []Action
	Returns   Returns
	Witnesses []Witness
}

// Merge canonicalizes descriptors into one annotation.
//
// Return codes are unioned, but the two code spaces never mix: when
// any descriptor carries integer codes, pointer-code descriptors are
// excluded from the merge (precision over recall).
//
// Actions merge by confidence: identical sets are kept as-is; when the
// sets disagree, the first descriptor carrying exactly one action wins
// (multi-action descriptors tend to mix in unrelated cleanup). Any
// other disagreement yields an empty action set while the merged codes
// are still reported.
//
// Witnesses of all descriptors are concatenated in input order,
// including those of descriptors excluded by the kind rule: they are
// provenance, not findings.
func Merge(descriptors []Descriptor) (Annotation, bool) {
	if len(descriptors) == 0 {
		return Annotation{}, false
	}

	kind := PointerCodes
	for _, d := range descriptors {
		if d.Returns.Kind == IntCodes {
			kind = IntCodes
			break
		}
	}

	var witnesses []Witness
	for _, d := range descriptors {
		witnesses = append(witnesses, d.Witnesses...)
	}

	var merged []Descriptor
	var codes []int32
	for _, d := range descriptors {
		if d.Returns.Kind != kind {
			continue
		}
		merged = append(merged, d)
		codes = append(codes, d.Returns.Codes...)
	}

	return Annotation{
		Actions:   mergeActions(merged),
		Returns:   Returns{Kind: kind, Codes: normalizeCodes(codes)},
		Witnesses: witnesses,
	}, true
}

func mergeActions(descriptors []Descriptor) []Action {
	if len(descriptors) == 0 {
		return nil
	}

	first := descriptors[0].Actions
	firstKey := actionSetKey(first)
	agree := true
	for _, d := range descriptors[1:] {
		if actionSetKey(d.Actions) != firstKey {
			agree = false
			break
		}
	}
	if agree {
		return first
	}

	// On disagreement a single-action descriptor outranks multi-action
	// ones: the latter tend to mix in unrelated cleanup calls. The
	// first single-action set wins for determinism.
	for _, d := range descriptors {
		if len(d.Actions) == 1 {
			return d.Actions
		}
	}
	return nil
}

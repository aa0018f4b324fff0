package store

import (
	"fmt"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/Meai1/foreign-inference/internal/summary"
)

// Export renders annotations as a YAML document that Load accepts.
// Functions are emitted in name order so exports diff cleanly.
func Export(anns map[string]summary.Annotation) ([]byte, error) {
	names := make([]string, 0, len(anns))
	for name := range anns {
		names = append(names, name)
	}
	sort.Strings(names)

	file := annotationsFile{}
	for _, name := range names {
		entry, err := entryOf(name, anns[name])
		if err != nil {
			return nil, err
		}
		file.Annotations = append(file.Annotations, entry)
	}

	out, err := yaml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("marshal annotations: %w", err)
	}
	return out, nil
}

func entryOf(name string, ann summary.Annotation) (annotationEntry, error) {
	if len(ann.Returns.Codes) == 0 {
		return annotationEntry{}, fmt.Errorf("annotation of %s has no codes", name)
	}

	kind := "int"
	if ann.Returns.Kind == summary.PointerCodes {
		kind = "pointer"
	}

	entry := annotationEntry{
		Function: name,
		Kind:     kind,
		Codes:    ann.Returns.Codes,
	}
	for _, a := range ann.Actions {
		entry.Actions = append(entry.Actions, actionEntryOf(a))
	}
	return entry, nil
}

func actionEntryOf(a summary.Action) actionEntry {
	out := actionEntry{Callee: a.Callee}

	idxs := make([]int, 0, len(a.Args))
	for i := range a.Args {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	for _, i := range idxs {
		arg := a.Args[i]
		e := argEntry{Index: i}
		switch arg.Kind {
		case summary.ArgLiteral:
			lit := arg.Literal
			e.Literal = &lit
		case summary.ArgForwarded:
			fwd := arg.Index
			e.Forwarded = &fwd
			e.Type = arg.Type
		}
		out.Args = append(out.Args, e)
	}
	return out
}

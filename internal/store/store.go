// Package store loads and serves prior error-contract annotations for
// functions living outside the analyzed program, typically produced by
// an earlier run over a dependency.
//
// Annotation files are YAML validated against a JSON Schema before any
// field is trusted; a file that fails validation is rejected wholesale
// and each violation is reported.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"go/token"
	"os"

	qjsonschema "github.com/qri-io/jsonschema"
	"sigs.k8s.io/yaml"

	"github.com/Meai1/foreign-inference/internal/diag"
	"github.com/Meai1/foreign-inference/internal/summary"
)

// annotationsSchema is the contract annotation files must satisfy.
const annotationsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["annotations"],
	"additionalProperties": false,
	"properties": {
		"annotations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["function", "kind", "codes"],
				"additionalProperties": false,
				"properties": {
					"function": {"type": "string", "minLength": 1},
					"kind": {"enum": ["int", "pointer"]},
					"codes": {
						"type": "array",
						"minItems": 1,
						"items": {"type": "integer"}
					},
					"actions": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["callee"],
							"additionalProperties": false,
							"properties": {
								"callee": {"type": "string", "minLength": 1},
								"args": {
									"type": "array",
									"items": {
										"type": "object",
										"required": ["index"],
										"additionalProperties": false,
										"properties": {
											"index":     {"type": "integer", "minimum": 0},
											"literal":   {"type": "integer"},
											"forwarded": {"type": "integer", "minimum": 0},
											"type":      {"type": "string"}
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`

// annotationsFile mirrors the YAML document shape.
type annotationsFile struct {
	Annotations []annotationEntry `json:"annotations"`
}

type annotationEntry struct {
	Function string        `json:"function"`
	Kind     string        `json:"kind"`
	Codes    []int32       `json:"codes"`
	Actions  []actionEntry `json:"actions,omitempty"`
}

type actionEntry struct {
	Callee string     `json:"callee"`
	Args   []argEntry `json:"args,omitempty"`
}

type argEntry struct {
	Index     int    `json:"index"`
	Literal   *int32 `json:"literal,omitempty"`
	Forwarded *int   `json:"forwarded,omitempty"`
	Type      string `json:"type,omitempty"`
}

// FileStore serves annotations loaded from files, keyed by qualified
// function name.
type FileStore struct {
	anns map[string]summary.Annotation
}

// NewFileStore creates an empty store.
func NewFileStore() *FileStore {
	return &FileStore{anns: make(map[string]summary.Annotation)}
}

// ReportsErrors returns the prior annotation of name, if any.
func (s *FileStore) ReportsErrors(name string) (summary.Annotation, bool) {
	ann, ok := s.anns[name]
	return ann, ok
}

// Len reports the number of loaded annotations.
func (s *FileStore) Len() int { return len(s.anns) }

// LoadFile reads, validates and merges one annotation file. Later
// files win on name collisions.
func (s *FileStore) LoadFile(path string, rep *diag.ReporterPhase) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read annotations: %w", err)
	}
	if err := s.Load(data, rep); err != nil {
		return fmt.Errorf("load annotations from %s: %w", path, err)
	}
	return nil
}

// Load validates and merges one annotation document.
func (s *FileStore) Load(data []byte, rep *diag.ReporterPhase) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("annotations are not valid YAML: %w", err)
	}

	schema := &qjsonschema.Schema{}
	if err := json.Unmarshal([]byte(annotationsSchema), schema); err != nil {
		return fmt.Errorf("parse annotations schema: %w", err)
	}

	errs, err := schema.ValidateBytes(context.Background(), jsonData)
	if err != nil {
		return fmt.Errorf("validate annotations: %w", err)
	}
	if len(errs) > 0 {
		if rep != nil {
			for _, ke := range errs {
				rep.Warn(token.Position{}, diag.StoreSchemaViolation(),
					"%s: %s", ke.PropertyPath, ke.Message)
			}
		}
		return fmt.Errorf("annotations violate the schema: %d problem(s), first is %s: %s",
			len(errs), errs[0].PropertyPath, errs[0].Message)
	}

	var file annotationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode annotations: %w", err)
	}

	for _, e := range file.Annotations {
		s.anns[e.Function] = e.annotation()
	}
	return nil
}

func (e annotationEntry) annotation() summary.Annotation {
	kind := summary.IntCodes
	if e.Kind == "pointer" {
		kind = summary.PointerCodes
	}

	var actions []summary.Action
	for _, a := range e.Actions {
		action := summary.Action{Callee: a.Callee}
		if len(a.Args) > 0 {
			action.Args = make(map[int]summary.ActionArg)
		}
		for _, arg := range a.Args {
			switch {
			case arg.Literal != nil:
				action.Args[arg.Index] = summary.ActionArg{
					Kind:    summary.ArgLiteral,
					Literal: *arg.Literal,
				}
			case arg.Forwarded != nil:
				action.Args[arg.Index] = summary.ActionArg{
					Kind:  summary.ArgForwarded,
					Index: *arg.Forwarded,
					Type:  arg.Type,
				}
			}
		}
		actions = append(actions, action)
	}

	return summary.Annotation{
		Actions: actions,
		Returns: summary.NewReturns(kind, e.Codes...),
	}
}

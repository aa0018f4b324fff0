package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/Meai1/foreign-inference/internal/diag"
	"github.com/Meai1/foreign-inference/internal/infer"
	"github.com/Meai1/foreign-inference/internal/ssair"
	"github.com/Meai1/foreign-inference/internal/store"
	"github.com/Meai1/foreign-inference/internal/summary"
	"github.com/Meai1/foreign-inference/internal/witness"
)

const doc = `errinfer infers error-handling contracts: which integer or pointer
constants a function returns to signal failure, and which reporting
calls accompany them`

// Analyzer is the main entry point for the inference.
var Analyzer = &analysis.Analyzer{
	Name:     "errinfer",
	Doc:      doc,
	Requires: []*analysis.Analyzer{buildssa.Analyzer},
	Run:      run,
}

var configPath string

func init() {
	Analyzer.Flags.StringVar(&configPath, "config", "", "path to the configuration file")
}

func main() {
	singlechecker.Main(Analyzer)
}

func run(pass *analysis.Pass) (any, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	ssainfo := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	lowering := ssair.Lower(ssainfo.SrcFuncs)

	rep := &diag.Reporter{}
	deps := store.NewFileStore()
	for _, path := range cfg.Annotations {
		if err := deps.LoadFile(path, rep.Phase(diag.PhaseStore)); err != nil {
			return nil, err
		}
	}

	engine := infer.NewEngine(lowering.Program, infer.Config{
		Resolver: lowering.CHAResolver(ssainfo.Pkg.Prog),
		Store:    deps,
		Reporter: rep,
		Options: infer.Options{
			Classifier:            classifierOf(cfg),
			GeneralizeFromReturns: cfg.GeneralizeFromReturns,
		},
	})
	engine.Run()

	index := witness.NewIndex()
	for _, fn := range ssainfo.SrcFuncs {
		start, end, ok := ssair.SpanOf(fn)
		if !ok {
			continue
		}
		if lowered, found := lowering.FunctionOf(fn); found {
			index.AddSpan(lowered, start, end)
		}
	}

	anns := make(map[string]summary.Annotation)
	for _, fn := range ssainfo.SrcFuncs {
		lowered, ok := lowering.FunctionOf(fn)
		if !ok {
			continue
		}
		ann, ok := engine.AnnotationFor(lowered)
		if !ok {
			continue
		}
		anns[lowered.Name] = ann
		for _, w := range ann.Witnesses {
			index.Attach(w)
		}
	}

	for _, fn := range ssainfo.SrcFuncs {
		lowered, ok := lowering.FunctionOf(fn)
		if !ok {
			continue
		}
		ann, ok := anns[lowered.Name]
		if !ok {
			continue
		}
		msg := describe(lowered.Name, ann)
		if site, ok := evidenceSite(index, ann); ok {
			msg += ", inferred at " + site
		}
		pass.Reportf(fn.Pos(), "%s", msg)
	}

	if len(pass.Files) > 0 {
		pkgPos := pass.Files[0].Pos()
		for _, r := range rep.Reports() {
			pass.Reportf(pkgPos, "%s: %s", r.Tag, r.Message)
		}
	}

	if cfg.Export != "" {
		data, err := store.Export(anns)
		if err != nil {
			return nil, fmt.Errorf("export annotations: %w", err)
		}
		if err := os.WriteFile(cfg.Export, data, 0o644); err != nil {
			return nil, fmt.Errorf("write annotations: %w", err)
		}
	}

	return nil, nil
}

func classifierOf(cfg Config) infer.Classifier {
	switch cfg.Classifier {
	case ClassifierModeHeuristic:
		return infer.Classifier{
			Kind:  infer.ClassifierHeuristic,
			Known: newKnownReportingFuncs(cfg.Reporters).names(),
		}
	default:
		return infer.Classifier{Kind: infer.ClassifierNone}
	}
}

// evidenceSite resolves the first locatable witness of ann through the
// span index to "<position> in <function>". When several pieces of
// evidence landed in that function's span, the count is appended.
func evidenceSite(index *witness.Index, ann summary.Annotation) (string, bool) {
	for _, w := range ann.Witnesses {
		owner := index.FunctionAt(w.Pos)
		if owner == nil {
			continue
		}
		if n := len(index.WitnessesAt(w.Pos)); n > 1 {
			return fmt.Sprintf("%s in %s (%d witnesses)", w.Pos, owner.Name, n), true
		}
		return fmt.Sprintf("%s in %s", w.Pos, owner.Name), true
	}
	return "", false
}

// describe phrases one inferred annotation for a diagnostic.
func describe(name string, ann summary.Annotation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s reports errors with %s codes %v", name, ann.Returns.Kind, ann.Returns.Codes)

	if len(ann.Actions) > 0 {
		callees := make([]string, 0, len(ann.Actions))
		for _, a := range ann.Actions {
			callees = append(callees, a.Callee)
		}
		sort.Strings(callees)
		fmt.Fprintf(&sb, ", reporting via %s", strings.Join(callees, ", "))
	}
	return sb.String()
}

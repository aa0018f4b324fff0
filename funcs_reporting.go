package main

import (
	"strings"
)

type knownReportingFuncs struct {
	known map[packagedFunc]bool
}

// newKnownReportingFuncs builds the heuristic table of functions whose
// presence next to a constant return marks the block as error
// reporting. Custom entries come from the config as qualified names.
func newKnownReportingFuncs(custom []string) *knownReportingFuncs {
	predefined := map[packagedFunc]bool{
		// Stdlib.
		{pkgPath: "log", name: "Print"}:      true,
		{pkgPath: "log", name: "Printf"}:     true,
		{pkgPath: "log", name: "Println"}:    true,
		{pkgPath: "log", name: "Panic"}:      true,
		{pkgPath: "log", name: "Panicf"}:     true,
		{pkgPath: "log", name: "Panicln"}:    true,
		{pkgPath: "log", name: "Fatal"}:      true,
		{pkgPath: "log", name: "Fatalf"}:     true,
		{pkgPath: "log", name: "Fatalln"}:    true,
		{pkgPath: "log/slog", name: "Warn"}:  true,
		{pkgPath: "log/slog", name: "Error"}: true,

		// Zap.
		{pkgPath: "github.com/uber-go/zap", name: "Error"}:  true,
		{pkgPath: "github.com/uber-go/zap", name: "DPanic"}: true,
		{pkgPath: "github.com/uber-go/zap", name: "Panic"}:  true,
		{pkgPath: "github.com/uber-go/zap", name: "Fatal"}:  true,

		// Zerolog.
		{pkgPath: "github.com/rs/zerolog/log", name: "Error"}: true,
		{pkgPath: "github.com/rs/zerolog/log", name: "Fatal"}: true,
		{pkgPath: "github.com/rs/zerolog/log", name: "Panic"}: true,

		// Classic C-side reporting, seen through cgo or translated
		// bindings.
		{pkgPath: "", name: "perror"}:  true,
		{pkgPath: "", name: "syslog"}:  true,
		{pkgPath: "", name: "err"}:     true,
		{pkgPath: "", name: "errx"}:    true,
		{pkgPath: "", name: "warn"}:    true,
		{pkgPath: "", name: "warnx"}:   true,
		{pkgPath: "", name: "abort"}:   true,
		{pkgPath: "", name: "g_error"}: true,

		{pkgPath: "github.com/sirkon/message", name: "Warning"}:  true,
		{pkgPath: "github.com/sirkon/message", name: "Warningf"}: true,
		{pkgPath: "github.com/sirkon/message", name: "Error"}:    true,
		{pkgPath: "github.com/sirkon/message", name: "Errorf"}:   true,
		{pkgPath: "github.com/sirkon/message", name: "Critical"}: true,
		{pkgPath: "github.com/sirkon/message", name: "Fatal"}:    true,
		{pkgPath: "github.com/sirkon/message", name: "Fatalf"}:   true,
	}

	for _, name := range custom {
		predefined[splitQualified(name)] = true
	}

	return &knownReportingFuncs{known: predefined}
}

// names flattens the table into the qualified-name set the engine's
// classifier consumes.
func (k *knownReportingFuncs) names() map[string]bool {
	out := make(map[string]bool, len(k.known))
	for pf, ok := range k.known {
		if ok {
			out[pf.qualified()] = true
		}
	}
	return out
}

func splitQualified(name string) packagedFunc {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return packagedFunc{name: name}
	}
	return packagedFunc{pkgPath: name[:i], name: name[i+1:]}
}

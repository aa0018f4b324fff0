package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type packagedFunc struct {
	pkgPath string
	name    string
}

// qualified renders the name the way lowered call sites carry it.
func (p packagedFunc) qualified() string {
	if p.pkgPath == "" {
		return p.name
	}
	return p.pkgPath + "." + p.name
}

// ClassifierMode selects how error-reporting functions are recognized
// beyond the ones the inference learns on its own.
type ClassifierMode int

const (
	ClassifierModeInvalid ClassifierMode = iota

	// ClassifierModeNone relies on learned descriptors only.
	ClassifierModeNone

	// ClassifierModeHeuristic trusts the predefined reporting function
	// table plus anything listed in the config.
	ClassifierModeHeuristic
)

var classifierModeValueMap = map[ClassifierMode]string{
	ClassifierModeNone:      "none",
	ClassifierModeHeuristic: "heuristic",
}

func (m ClassifierMode) String() string {
	v, ok := classifierModeValueMap[m]
	if !ok {
		return fmt.Sprintf("invalid(%d)", m)
	}

	return v
}

// UnmarshalText for setting values with configs, CLI, etc.
func (m *ClassifierMode) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for k, v := range classifierModeValueMap {
		if v == text {
			*m = k
			return nil
		}
	}

	return fmt.Errorf("unknown classifier mode %q", text)
}

// Config is the analyzer configuration file.
type Config struct {
	// Classifier selects the generalization strategy. Empty means none.
	Classifier ClassifierMode `yaml:"classifier"`

	// Annotations lists prior annotation files to consult for
	// dependencies.
	Annotations []string `yaml:"annotations"`

	// Export, when set, is where the inferred annotations are written.
	Export string `yaml:"export"`

	// Reporters adds custom reporting functions to the heuristic
	// table, as qualified "pkg/path.Name" strings.
	Reporters []string `yaml:"reporters"`

	// GeneralizeFromReturns toggles the reserved third generalization
	// rule. Accepted for forward compatibility; it has no effect.
	GeneralizeFromReturns bool `yaml:"generalize_from_returns"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		cfg.Classifier = ClassifierModeNone
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	cfg, err = parseConfig(data)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Classifier == ClassifierModeInvalid {
		cfg.Classifier = ClassifierModeNone
	}
	return cfg, nil
}

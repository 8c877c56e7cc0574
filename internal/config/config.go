// Package config provides the profile configuration schema, loader, and
// validation for the Lexigraph corpus compiler.
package config

// LogLevel controls log verbosity for the compiler.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Casing selects token case normalization during corpus assembly.
type Casing string

const (
	CasingLower Casing = "lower"
	CasingUpper Casing = "upper"
	CasingNone  Casing = "none"
)

// IsValid reports whether c is a recognised casing mode.
func (c Casing) IsValid() bool {
	switch c {
	case CasingLower, CasingUpper, CasingNone:
		return true
	}
	return false
}

// Config is the root profile configuration for a training pass.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Profile      ProfileConfig    `yaml:"profile"`
	Logging      LoggingConfig    `yaml:"logging"`
	Training     TrainingConfig   `yaml:"training"`
	Intents      []IntentConfig   `yaml:"intents"`
	Slots        SlotsConfig      `yaml:"slots"`
	Dictionaries DictionaryConfig `yaml:"dictionaries"`
	Output       OutputConfig     `yaml:"output"`
	History      HistoryConfig    `yaml:"history"`
	Metrics      MetricsConfig    `yaml:"metrics"`
}

// ProfileConfig names the profile being trained.
type ProfileConfig struct {
	// Name identifies the profile in logs, history records, and metrics.
	Name string `yaml:"name"`

	// Language is an informational language code (e.g., "en").
	Language string `yaml:"language"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level controls verbosity. Default: info.
	Level LogLevel `yaml:"level"`

	// JSON switches the log handler from text to JSON output.
	JSON bool `yaml:"json"`
}

// TrainingConfig holds corpus assembly knobs.
type TrainingConfig struct {
	// Casing normalizes token case: lower, upper, or none. Default: lower.
	Casing Casing `yaml:"casing"`

	// Replace lists token substitution rules applied in order before the
	// split pattern.
	Replace []ReplaceRule `yaml:"replace"`

	// SplitPattern re-splits tokens after substitution. Default: any
	// whitespace run.
	SplitPattern string `yaml:"split_pattern"`

	// Balance repeats smaller intents' sentences in the plain corpus so
	// no intent is underrepresented relative to the largest one.
	Balance bool `yaml:"balance"`

	// ExpansionLimit caps concrete sentences per intent. Exceeding it
	// fails the pass. Zero selects the built-in default.
	ExpansionLimit int `yaml:"expansion_limit"`
}

// ReplaceRule is one ordered text substitution applied per token.
type ReplaceRule struct {
	Pattern string `yaml:"pattern"`
	With    string `yaml:"with"`
}

// IntentConfig declares one intent and its template sources.
type IntentConfig struct {
	// Name is the unique, case-sensitive intent identifier.
	Name string `yaml:"name"`

	// Sources lists template files whose contents are concatenated, in
	// order, before parsing.
	Sources []string `yaml:"sources"`
}

// SlotsConfig declares slot value sources.
type SlotsConfig struct {
	// Directory holds one value-list file per slot (file name = slot name).
	Directory string `yaml:"directory"`

	// File is an optional combined YAML slots file merged over Directory.
	File string `yaml:"file"`

	// Programs declares external value-generating commands.
	Programs []SlotProgramConfig `yaml:"programs"`
}

// SlotProgramConfig declares one external slot value program. The program
// must print one value per line on stdout within the timeout.
type SlotProgramConfig struct {
	Slot    string   `yaml:"slot"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// TimeoutSeconds bounds the invocation. Zero selects the built-in
	// default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DictionaryConfig points at the pronunciation dictionaries consulted by
// unknown-word detection. Both are optional; a missing path disables that
// dictionary.
type DictionaryConfig struct {
	// Base is the path to the base pronunciation dictionary.
	Base string `yaml:"base"`

	// Custom is the path to the user's custom words dictionary.
	Custom string `yaml:"custom"`
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	// Directory receives corpus.txt, tagged.jsonl, vocabulary.txt, and
	// fingerprint.json. Default: "train".
	Directory string `yaml:"directory"`
}

// HistoryConfig controls the training-run history database.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// ListenAddr is the TCP address for /metrics (e.g., ":9090").
	// Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML profile file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML profile from r and validates the result.
// Useful in tests where profiles are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Profile.Name == "" {
		cfg.Profile.Name = "default"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogInfo
	}
	if !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}

	if cfg.Training.Casing == "" {
		cfg.Training.Casing = CasingLower
	}
	if !cfg.Training.Casing.IsValid() {
		errs = append(errs, fmt.Errorf("training.casing %q is invalid; valid values: lower, upper, none", cfg.Training.Casing))
	}
	for i, rule := range cfg.Training.Replace {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("training.replace[%d].pattern %q: %v", i, rule.Pattern, err))
		}
	}
	if cfg.Training.SplitPattern != "" {
		if _, err := regexp.Compile(cfg.Training.SplitPattern); err != nil {
			errs = append(errs, fmt.Errorf("training.split_pattern %q: %v", cfg.Training.SplitPattern, err))
		}
	}
	if cfg.Training.ExpansionLimit < 0 {
		errs = append(errs, fmt.Errorf("training.expansion_limit %d must not be negative", cfg.Training.ExpansionLimit))
	}

	if len(cfg.Intents) == 0 {
		errs = append(errs, errors.New("at least one intent is required"))
	}
	intentNamesSeen := make(map[string]int, len(cfg.Intents))
	for i, intent := range cfg.Intents {
		prefix := fmt.Sprintf("intents[%d]", i)
		if intent.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := intentNamesSeen[intent.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of intents[%d]", prefix, intent.Name, prev))
			}
			intentNamesSeen[intent.Name] = i
		}
		if len(intent.Sources) == 0 {
			errs = append(errs, fmt.Errorf("%s.sources must list at least one template file", prefix))
		}
	}

	slotProgramsSeen := make(map[string]int, len(cfg.Slots.Programs))
	for i, prog := range cfg.Slots.Programs {
		prefix := fmt.Sprintf("slots.programs[%d]", i)
		if prog.Slot == "" {
			errs = append(errs, fmt.Errorf("%s.slot is required", prefix))
		} else {
			if prev, ok := slotProgramsSeen[prog.Slot]; ok {
				errs = append(errs, fmt.Errorf("%s.slot %q is a duplicate of slots.programs[%d]", prefix, prog.Slot, prev))
			}
			slotProgramsSeen[prog.Slot] = i
		}
		if prog.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required", prefix))
		}
		if prog.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout_seconds %d must not be negative", prefix, prog.TimeoutSeconds))
		}
	}

	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "train"
	}

	return errors.Join(errs...)
}

package slots

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDir reads every regular file in dir as a static slot value list. The
// file name (without extension) is the slot name; each non-blank line that
// does not start with '#' is one value. Returns an empty map when dir does
// not exist, so profiles without slot files need no special casing.
func LoadDir(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("slots: read dir %q: %w", dir, err)
	}

	static := make(map[string][]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("slots: read slot file %q: %w", path, err)
		}
		var values []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			values = append(values, line)
		}
		static[name] = values
	}
	return static, nil
}

// LoadYAMLFile reads a combined slots file: a YAML mapping of slot name to
// value list. Entries merge over base; a YAML slot replaces a same-named
// slot-file list entirely.
func LoadYAMLFile(path string, base map[string][]string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("slots: open %q: %w", path, err)
	}
	defer f.Close()

	merged, err := loadYAMLFromReader(f, base)
	if err != nil {
		return nil, fmt.Errorf("slots: parse %q: %w", path, err)
	}
	return merged, nil
}

func loadYAMLFromReader(r io.Reader, base map[string][]string) (map[string][]string, error) {
	var lists map[string][]string
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lists); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	merged := make(map[string][]string, len(base)+len(lists))
	for name, values := range base {
		merged[name] = values
	}
	for name, values := range lists {
		merged[name] = values
	}
	return merged, nil
}

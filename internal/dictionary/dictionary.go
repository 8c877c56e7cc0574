// Package dictionary loads pronunciation dictionaries and detects
// vocabulary words that lack a known pronunciation. The detector performs
// no pronunciation guessing itself — its output is the trigger for an
// external grapheme-to-phoneme component.
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// variantSuffix strips the "(2)", "(3)" markers CMU-style dictionaries use
// for alternate pronunciations of the same word.
var variantSuffix = regexp.MustCompile(`\(\d+\)$`)

// Dictionary maps case-folded words to their phonetic-symbol sequences.
// A word may have several pronunciations. Read-only after loading.
type Dictionary struct {
	prons map[string][][]string
}

// Load reads a CMU-style dictionary file: one "word PH ON EMES" entry per
// line, ';;;' comment lines skipped, "word(2)" marking pronunciation
// variants.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open %q: %w", path, err)
	}
	defer f.Close()

	d, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary: parse %q: %w", path, err)
	}
	return d, nil
}

// LoadFromReader parses dictionary entries from r.
func LoadFromReader(r io.Reader) (*Dictionary, error) {
	d := &Dictionary{prons: make(map[string][][]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";;;") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("dictionary: line %d: entry %q has no pronunciation", lineNo, line)
		}
		word := strings.ToLower(variantSuffix.ReplaceAllString(fields[0], ""))
		d.prons[word] = append(d.prons[word], fields[1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dictionary: read: %w", err)
	}
	return d, nil
}

// Contains reports whether word (case-folded) has a known pronunciation.
func (d *Dictionary) Contains(word string) bool {
	_, ok := d.prons[strings.ToLower(word)]
	return ok
}

// Pronunciations returns the phoneme sequences for word, or nil.
func (d *Dictionary) Pronunciations(word string) [][]string {
	return d.prons[strings.ToLower(word)]
}

// Len reports the number of distinct words.
func (d *Dictionary) Len() int { return len(d.prons) }

// Words returns every word in the dictionary, in map order. Callers that
// need determinism must sort.
func (d *Dictionary) Words() []string {
	words := make([]string, 0, len(d.prons))
	for w := range d.prons {
		words = append(words, w)
	}
	return words
}

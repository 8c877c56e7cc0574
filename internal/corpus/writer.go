package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names within the output directory.
const (
	PlainFile      = "corpus.txt"
	TaggedFile     = "tagged.jsonl"
	VocabularyFile = "vocabulary.txt"
)

// WriteArtifacts writes the plain corpus, tagged corpus, and vocabulary
// into dir. Each file is written to a temporary name and renamed into
// place, so a failed pass never leaves a partial artifact behind — a
// truncated plain corpus could silently desynchronize from the tagged
// corpus and vocabulary.
func WriteArtifacts(dir string, c *Corpus) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("corpus: create output dir %q: %w", dir, err)
	}

	plain := strings.Join(c.PlainLines(), "\n") + "\n"
	if err := writeAtomic(filepath.Join(dir, PlainFile), []byte(plain)); err != nil {
		return err
	}

	var tagged strings.Builder
	for _, s := range c.Tagged() {
		line, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("corpus: marshal tagged sentence: %w", err)
		}
		tagged.Write(line)
		tagged.WriteByte('\n')
	}
	if err := writeAtomic(filepath.Join(dir, TaggedFile), []byte(tagged.String())); err != nil {
		return err
	}

	vocab := strings.Join(c.Vocabulary(), "\n") + "\n"
	return writeAtomic(filepath.Join(dir, VocabularyFile), []byte(vocab))
}

// writeAtomic writes data to path via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("corpus: create temp for %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("corpus: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("corpus: close %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("corpus: rename into %q: %w", path, err)
	}
	return nil
}

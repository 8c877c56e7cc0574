package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FingerprintFile is the artifact name under the output directory.
const FingerprintFile = "fingerprint.json"

// Inputs is everything that determines the compiler's output: grammar
// sources, slot data, slot program declarations, and the assembly options.
// Hashing the inputs rather than the outputs lets a caller decide to skip
// retraining without expanding anything.
type Inputs struct {
	// Grammar maps intent name to its concatenated source block.
	Grammar map[string]string

	// Slots maps slot name to its static value list.
	Slots map[string][]string

	// Programs maps slot name to the declared command line. Program
	// output itself is not hashed — a changed program body with the same
	// declaration requires a forced run.
	Programs map[string]string

	// Options is a canonical rendering of the assembly options.
	Options string
}

// Fingerprint computes the hex SHA-256 of the canonical serialization of
// in. Map keys are hashed in sorted order so two runs over unchanged
// input always agree.
func Fingerprint(in Inputs) string {
	h := sha256.New()

	writeSorted := func(section string, m map[string]string) {
		fmt.Fprintf(h, "[%s]\n", section)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%q\n", k, m[k])
		}
	}

	writeSorted("grammar", in.Grammar)

	slotLines := make(map[string]string, len(in.Slots))
	for name, values := range in.Slots {
		buf, _ := json.Marshal(values)
		slotLines[name] = string(buf)
	}
	writeSorted("slots", slotLines)
	writeSorted("programs", in.Programs)
	fmt.Fprintf(h, "[options]\n%s\n", in.Options)

	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintArtifact is the persisted record of the last successful pass,
// used by callers to detect "nothing changed" and skip retraining.
type FingerprintArtifact struct {
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	Intents     int       `json:"intents"`
	Sentences   int       `json:"sentences"`
}

// LoadFingerprint reads the artifact from dir. A missing file returns
// (nil, nil) — the first pass has nothing to compare against.
func LoadFingerprint(dir string) (*FingerprintArtifact, error) {
	data, err := os.ReadFile(filepath.Join(dir, FingerprintFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("corpus: read fingerprint: %w", err)
	}
	var artifact FingerprintArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("corpus: parse fingerprint: %w", err)
	}
	return &artifact, nil
}

// SaveFingerprint persists the artifact into dir atomically.
func SaveFingerprint(dir string, artifact *FingerprintArtifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("corpus: marshal fingerprint: %w", err)
	}
	return writeAtomic(filepath.Join(dir, FingerprintFile), append(data, '\n'))
}

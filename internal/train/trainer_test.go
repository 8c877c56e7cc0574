package train_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voulterra/lexigraph/internal/config"
	"github.com/voulterra/lexigraph/internal/grammar"
	"github.com/voulterra/lexigraph/internal/history"
	"github.com/voulterra/lexigraph/internal/slots"
	"github.com/voulterra/lexigraph/internal/train"
)

const lightTemplates = `
color = (red | green | blue)

turn [the] light (<color>){color}
turn the light off
`

const timeTemplates = `
what time is it
tell me the time
`

// fakeRunner serves canned slot program output.
type fakeRunner struct {
	lines []string
	calls int
}

func (f *fakeRunner) Run(ctx context.Context, prog slots.Program) ([]string, error) {
	f.calls++
	return f.lines, nil
}

// newFixture lays out a minimal profile on disk and returns its config and
// base directory.
func newFixture(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "set_light.ini"), lightTemplates)
	writeFile(t, filepath.Join(dir, "get_time.ini"), timeTemplates)

	cfg := &config.Config{
		Profile:  config.ProfileConfig{Name: "house"},
		Training: config.TrainingConfig{Casing: config.CasingLower},
		Intents: []config.IntentConfig{
			{Name: "SetLight", Sources: []string{"set_light.ini"}},
			{Name: "GetTime", Sources: []string{"get_time.ini"}},
		},
		Output: config.OutputConfig{Directory: "train"},
	}
	return cfg, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestTrainer_EndToEnd(t *testing.T) {
	t.Parallel()
	cfg, dir := newFixture(t)

	res, err := train.New(cfg, dir).Run(context.Background(), train.RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Skipped {
		t.Error("first pass should not be skipped")
	}
	if res.Intents != 2 {
		t.Errorf("intents = %d, want 2", res.Intents)
	}
	// SetLight: 3 colors x 2 optional forms + "turn the light off" = 7.
	// GetTime: 2.
	if res.Sentences != 9 {
		t.Errorf("sentences = %d, want 9", res.Sentences)
	}

	outDir := filepath.Join(dir, "train")
	plain := readFile(t, filepath.Join(outDir, "corpus.txt"))
	if !strings.Contains(plain, "turn the light red\n") {
		t.Errorf("corpus.txt missing expected sentence:\n%s", plain)
	}
	tagged := readFile(t, filepath.Join(outDir, "tagged.jsonl"))
	if !strings.Contains(tagged, `"entity":"color"`) {
		t.Errorf("tagged.jsonl missing color entity:\n%s", tagged)
	}
	vocab := readFile(t, filepath.Join(outDir, "vocabulary.txt"))
	for _, word := range []string{"turn", "light", "blue", "time"} {
		if !strings.Contains(vocab, word+"\n") {
			t.Errorf("vocabulary.txt missing %q", word)
		}
	}
}

func TestTrainer_SkipsUnchangedInputs(t *testing.T) {
	t.Parallel()
	cfg, dir := newFixture(t)
	trainer := train.New(cfg, dir)

	if _, err := trainer.Run(context.Background(), train.RunOptions{}); err != nil {
		t.Fatal(err)
	}
	res, err := trainer.Run(context.Background(), train.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("second pass over unchanged inputs should be skipped")
	}

	res, err = trainer.Run(context.Background(), train.RunOptions{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Error("forced pass should not be skipped")
	}

	// Touching a template invalidates the fingerprint.
	writeFile(t, filepath.Join(dir, "get_time.ini"), timeTemplates+"what is the hour\n")
	res, err = trainer.Run(context.Background(), train.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Error("pass after template change should not be skipped")
	}
}

func TestTrainer_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	cfg, dir := newFixture(t)

	res, err := train.New(cfg, dir).Run(context.Background(), train.RunOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sentences != 9 {
		t.Errorf("dry run sentences = %d, want 9", res.Sentences)
	}
	if _, err := os.Stat(filepath.Join(dir, "train")); !os.IsNotExist(err) {
		t.Error("dry run must not create the output directory")
	}
}

func TestTrainer_RecordsHistory(t *testing.T) {
	t.Parallel()
	cfg, dir := newFixture(t)
	store, err := history.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	trainer := train.New(cfg, dir, train.WithHistory(store))

	res, err := trainer.Run(context.Background(), train.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	runs, err := store.Runs(context.Background(), "house", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("history has %d runs, want 1", len(runs))
	}
	if runs[0].Fingerprint != res.Fingerprint {
		t.Errorf("recorded fingerprint = %q, want %q", runs[0].Fingerprint, res.Fingerprint)
	}
	if runs[0].Sentences != 9 {
		t.Errorf("recorded sentences = %d, want 9", runs[0].Sentences)
	}

	// The second pass skips via the history fingerprint and records nothing.
	res, err = trainer.Run(context.Background(), train.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("second pass should skip via history fingerprint")
	}
	runs, err = store.Runs(context.Background(), "house", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("skipped pass must not add a history run, have %d", len(runs))
	}
}

func TestTrainer_ProgramSlots(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "set_temp.ini"), "set ($room){room} to warm\n")

	cfg := &config.Config{
		Profile:  config.ProfileConfig{Name: "house"},
		Training: config.TrainingConfig{Casing: config.CasingLower},
		Intents: []config.IntentConfig{
			{Name: "SetTemp", Sources: []string{"set_temp.ini"}},
		},
		Slots: config.SlotsConfig{
			Programs: []config.SlotProgramConfig{
				{Slot: "room", Command: "list-rooms"},
			},
		},
		Output: config.OutputConfig{Directory: "out"},
	}

	runner := &fakeRunner{lines: []string{"kitchen", "living room"}}
	res, err := train.New(cfg, dir, train.WithRunner(runner)).Run(context.Background(), train.RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Sentences != 2 {
		t.Errorf("sentences = %d, want 2", res.Sentences)
	}
	if runner.calls != 1 {
		t.Errorf("program ran %d times, want 1", runner.calls)
	}
	tagged := readFile(t, filepath.Join(dir, "out", "tagged.jsonl"))
	if !strings.Contains(tagged, `"raw_value":"living room"`) {
		t.Errorf("tagged.jsonl missing program slot value:\n%s", tagged)
	}
}

func TestTrainer_UnknownWords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cmds.ini"), "engage the zorper\n")
	writeFile(t, filepath.Join(dir, "base.dict"), "engage EH N G EY JH\nthe DH AH\n")

	cfg := &config.Config{
		Profile:  config.ProfileConfig{Name: "house"},
		Training: config.TrainingConfig{Casing: config.CasingLower},
		Intents: []config.IntentConfig{
			{Name: "Engage", Sources: []string{"cmds.ini"}},
		},
		Dictionaries: config.DictionaryConfig{Base: "base.dict"},
		Output:       config.OutputConfig{Directory: "out"},
	}

	res, err := train.New(cfg, dir).Run(context.Background(), train.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.UnknownWords) != 1 || res.UnknownWords[0] != "zorper" {
		t.Errorf("unknown words = %v, want [zorper]", res.UnknownWords)
	}
}

func TestTrainer_GrammarErrorAbortsPass(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.ini"), "turn (red | blue\n")

	cfg := &config.Config{
		Profile: config.ProfileConfig{Name: "house"},
		Intents: []config.IntentConfig{
			{Name: "Bad", Sources: []string{"bad.ini"}},
		},
		Output: config.OutputConfig{Directory: "out"},
	}

	_, err := train.New(cfg, dir).Run(context.Background(), train.RunOptions{})
	var syn *grammar.SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("error is %T, want wrapped *SyntaxError", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(statErr) {
		t.Error("failed pass must not create the output directory")
	}
}

// Package train orchestrates a full corpus compilation pass: it reads the
// grammar sources, resolves slot values, expands every intent, assembles
// the training artifacts, diffs the vocabulary against the pronunciation
// dictionaries, and records the run.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/voulterra/lexigraph/internal/config"
	"github.com/voulterra/lexigraph/internal/corpus"
	"github.com/voulterra/lexigraph/internal/dictionary"
	"github.com/voulterra/lexigraph/internal/expand"
	"github.com/voulterra/lexigraph/internal/grammar"
	"github.com/voulterra/lexigraph/internal/history"
	"github.com/voulterra/lexigraph/internal/observe"
	"github.com/voulterra/lexigraph/internal/slots"
)

// Trainer runs training passes for one profile. Construct with [New];
// a Trainer is reusable across passes but not safe for concurrent passes.
type Trainer struct {
	cfg     *config.Config
	baseDir string

	runner     slots.Runner
	store      *history.Store
	metrics    *observe.Metrics
	converters expand.Converters
}

// Option customises a [Trainer].
type Option func(*Trainer)

// WithRunner replaces the external slot program runner. Tests use this to
// fake process execution.
func WithRunner(r slots.Runner) Option {
	return func(t *Trainer) { t.runner = r }
}

// WithHistory attaches a run-history store. Without one, passes are still
// skippable via the on-disk fingerprint artifact.
func WithHistory(s *history.Store) Option {
	return func(t *Trainer) { t.store = s }
}

// WithMetrics replaces the metrics instance, typically with one bound to a
// test-local meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Trainer) { t.metrics = m }
}

// WithConverters registers custom entity value converters. Custom
// converters shadow builtins of the same name.
func WithConverters(c expand.Converters) Option {
	return func(t *Trainer) { t.converters = expand.NewConverters(c) }
}

// New returns a Trainer for cfg. Relative paths in cfg are resolved
// against baseDir.
func New(cfg *config.Config, baseDir string, opts ...Option) *Trainer {
	t := &Trainer{
		cfg:     cfg,
		baseDir: baseDir,
		runner:  slots.ExecRunner{},
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.converters == nil {
		t.converters = expand.NewConverters(nil)
	}
	return t
}

// RunOptions controls a single pass.
type RunOptions struct {
	// Force retrains even when the input fingerprint is unchanged.
	Force bool

	// DryRun compiles everything but writes no artifacts and records no
	// history.
	DryRun bool
}

// Result summarises a pass.
type Result struct {
	// Skipped is true when the inputs matched the previous fingerprint and
	// no work was done.
	Skipped bool

	Fingerprint  string
	Intents      int
	Sentences    int
	UnknownWords []string
	Duration     time.Duration
}

// Run executes one training pass. Any grammar, slot, expansion, or output
// error aborts the pass; partial artifacts are never left behind because
// all writes happen after compilation succeeds.
func (t *Trainer) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	started := time.Now()
	res, err := t.run(ctx, opts, started)
	elapsed := time.Since(started)

	profileAttr := attribute.String("profile", t.cfg.Profile.Name)
	switch {
	case err != nil:
		t.metrics.TrainingPasses.Add(ctx, 1,
			metric.WithAttributes(profileAttr, attribute.String("status", "failed")))
		return nil, err
	case res.Skipped:
		t.metrics.TrainingPasses.Add(ctx, 1,
			metric.WithAttributes(profileAttr, attribute.String("status", "skipped")))
	default:
		t.metrics.TrainingPasses.Add(ctx, 1,
			metric.WithAttributes(profileAttr, attribute.String("status", "completed")))
		t.metrics.TrainDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(profileAttr))
		t.metrics.UnknownWords.Record(ctx, int64(len(res.UnknownWords)), metric.WithAttributes(profileAttr))
	}
	res.Duration = elapsed
	return res, nil
}

func (t *Trainer) run(ctx context.Context, opts RunOptions, started time.Time) (*Result, error) {
	sources, err := t.readSources()
	if err != nil {
		return nil, err
	}
	static, err := t.loadStaticSlots()
	if err != nil {
		return nil, err
	}

	outDir := t.resolve(t.cfg.Output.Directory)
	fingerprint := corpus.Fingerprint(corpus.Inputs{
		Grammar:  sources,
		Slots:    static,
		Programs: programDeclarations(t.cfg.Slots.Programs),
		Options:  t.optionsString(),
	})
	if !opts.Force {
		skip, err := t.unchanged(ctx, fingerprint, outDir)
		if err != nil {
			return nil, err
		}
		if skip {
			slog.Info("inputs unchanged, skipping training pass",
				"profile", t.cfg.Profile.Name, "fingerprint", fingerprint[:12])
			return &Result{Skipped: true, Fingerprint: fingerprint}, nil
		}
	}

	parsed, err := t.parseAll(ctx, sources)
	if err != nil {
		return nil, err
	}
	registry := grammar.NewRegistry(parsed)
	if err := registry.CheckCycles(); err != nil {
		return nil, err
	}

	resolver, err := slots.NewResolver(static, t.programs(), meteredRunner{inner: t.runner, metrics: t.metrics})
	if err != nil {
		return nil, err
	}
	assembler, err := corpus.NewAssembler(corpus.Options{
		Casing:       corpus.Casing(t.cfg.Training.Casing),
		Replace:      replacements(t.cfg.Training.Replace),
		SplitPattern: t.cfg.Training.SplitPattern,
		Balance:      t.cfg.Training.Balance,
	}, t.converters)
	if err != nil {
		return nil, err
	}

	byIntent, err := t.expandAll(ctx, parsed, registry, resolver, assembler)
	if err != nil {
		return nil, err
	}
	c := corpus.Build(byIntent, t.cfg.Training.Balance)

	total := 0
	for _, name := range c.Intents {
		total += len(c.ByIntent[name])
	}

	vocabulary := c.Vocabulary()
	unknown, err := t.unknownWords(ctx, vocabulary)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Fingerprint:  fingerprint,
		Intents:      len(c.Intents),
		Sentences:    total,
		UnknownWords: unknown,
	}
	if opts.DryRun {
		slog.Info("dry run, artifacts not written",
			"intents", res.Intents, "sentences", res.Sentences, "unknown_words", len(unknown))
		return res, nil
	}

	if err := corpus.WriteArtifacts(outDir, c); err != nil {
		return nil, err
	}
	if err := corpus.SaveFingerprint(outDir, &corpus.FingerprintArtifact{
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
		Intents:     res.Intents,
		Sentences:   res.Sentences,
	}); err != nil {
		return nil, err
	}
	if t.store != nil {
		err := t.store.Record(ctx, history.Run{
			Profile:      t.cfg.Profile.Name,
			Fingerprint:  fingerprint,
			Intents:      res.Intents,
			Sentences:    res.Sentences,
			UnknownWords: len(unknown),
			Duration:     time.Since(started),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}

	slog.Info("training pass complete", "profile", t.cfg.Profile.Name,
		"intents", res.Intents, "sentences", res.Sentences,
		"unknown_words", len(unknown), "output", outDir)
	return res, nil
}

// readSources concatenates each intent's template files in declared order.
func (t *Trainer) readSources() (map[string]string, error) {
	sources := make(map[string]string, len(t.cfg.Intents))
	for _, intent := range t.cfg.Intents {
		var parts []string
		for _, src := range intent.Sources {
			data, err := os.ReadFile(t.resolve(src))
			if err != nil {
				return nil, fmt.Errorf("train: intent %s: %w", intent.Name, err)
			}
			parts = append(parts, string(data))
		}
		sources[intent.Name] = strings.Join(parts, "\n")
	}
	return sources, nil
}

func (t *Trainer) loadStaticSlots() (map[string][]string, error) {
	static := map[string][]string{}
	if dir := t.cfg.Slots.Directory; dir != "" {
		loaded, err := slots.LoadDir(t.resolve(dir))
		if err != nil {
			return nil, err
		}
		static = loaded
	}
	if file := t.cfg.Slots.File; file != "" {
		merged, err := slots.LoadYAMLFile(t.resolve(file), static)
		if err != nil {
			return nil, err
		}
		static = merged
	}
	return static, nil
}

// unchanged reports whether fingerprint matches the previous pass, checking
// the history store first and falling back to the on-disk artifact.
func (t *Trainer) unchanged(ctx context.Context, fingerprint, outDir string) (bool, error) {
	if t.store != nil {
		last, err := t.store.LastFingerprint(ctx, t.cfg.Profile.Name)
		if err != nil {
			return false, err
		}
		if last != "" {
			return last == fingerprint, nil
		}
	}
	artifact, err := corpus.LoadFingerprint(outDir)
	if err != nil {
		return false, err
	}
	return artifact != nil && artifact.Fingerprint == fingerprint, nil
}

// parseAll parses every intent's template block concurrently.
func (t *Trainer) parseAll(ctx context.Context, sources map[string]string) ([]*grammar.Intent, error) {
	g, ctx := errgroup.WithContext(ctx)
	parsed := make([]*grammar.Intent, len(t.cfg.Intents))
	for i, intent := range t.cfg.Intents {
		g.Go(func() error {
			start := time.Now()
			in, err := grammar.Parse(intent.Name, sources[intent.Name])
			if err != nil {
				return err
			}
			t.metrics.ParseDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("intent", intent.Name)))
			parsed[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// expandAll expands and assembles every intent concurrently. Each goroutine
// owns its slice index, so no locking is needed beyond the resolver's own.
func (t *Trainer) expandAll(ctx context.Context, parsed []*grammar.Intent, registry *grammar.Registry, resolver *slots.Resolver, assembler *corpus.Assembler) (map[string][]corpus.Sentence, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([][]corpus.Sentence, len(parsed))
	for i, intent := range parsed {
		g.Go(func() error {
			start := time.Now()
			exp := expand.New(intent.Name, registry, resolver, t.cfg.Training.ExpansionLimit)
			frags, err := exp.ExpandIntent(ctx, intent)
			if err != nil {
				return err
			}
			sentences, err := assembler.Sentences(intent.Name, frags)
			if err != nil {
				return err
			}
			intentAttr := metric.WithAttributes(attribute.String("intent", intent.Name))
			t.metrics.ExpandDuration.Record(ctx, time.Since(start).Seconds(), intentAttr)
			t.metrics.SentencesGenerated.Add(ctx, int64(len(sentences)), intentAttr)
			results[i] = sentences
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byIntent := make(map[string][]corpus.Sentence, len(parsed))
	for i, intent := range parsed {
		byIntent[intent.Name] = results[i]
	}
	return byIntent, nil
}

// unknownWords diffs the vocabulary against the configured dictionaries.
// With no dictionaries configured, detection is disabled and nothing is
// reported unknown.
func (t *Trainer) unknownWords(ctx context.Context, vocabulary []string) ([]string, error) {
	var dicts []*dictionary.Dictionary
	for _, path := range []string{t.cfg.Dictionaries.Base, t.cfg.Dictionaries.Custom} {
		if path == "" {
			continue
		}
		d, err := dictionary.Load(t.resolve(path))
		if err != nil {
			return nil, err
		}
		dicts = append(dicts, d)
	}
	if len(dicts) == 0 {
		return nil, nil
	}

	unknown := dictionary.Unknown(vocabulary, dicts...)
	for _, word := range unknown {
		if !slog.Default().Enabled(ctx, slog.LevelDebug) {
			slog.Warn("word has no pronunciation", "word", word)
			continue
		}
		var near []string
		for _, s := range dictionary.Suggest(word, 3, dicts...) {
			near = append(near, s.Word)
		}
		slog.Debug("word has no pronunciation", "word", word, "similar", near)
	}
	return unknown, nil
}

func (t *Trainer) programs() map[string]slots.Program {
	programs := make(map[string]slots.Program, len(t.cfg.Slots.Programs))
	for _, p := range t.cfg.Slots.Programs {
		programs[p.Slot] = slots.Program{
			Command: p.Command,
			Args:    p.Args,
			Timeout: time.Duration(p.TimeoutSeconds) * time.Second,
		}
	}
	return programs
}

// programDeclarations renders program declarations for fingerprinting.
// Only the declaration is hashed; a changed program body with the same
// command line needs a forced pass.
func programDeclarations(programs []config.SlotProgramConfig) map[string]string {
	decls := make(map[string]string, len(programs))
	for _, p := range programs {
		decls[p.Slot] = fmt.Sprintf("%s %s timeout=%d",
			p.Command, strings.Join(p.Args, " "), p.TimeoutSeconds)
	}
	return decls
}

// optionsString canonically renders the assembly options for fingerprinting.
func (t *Trainer) optionsString() string {
	tr := t.cfg.Training
	return fmt.Sprintf("casing=%s;split=%q;balance=%t;replace=%v;limit=%d",
		tr.Casing, tr.SplitPattern, tr.Balance, tr.Replace, tr.ExpansionLimit)
}

func (t *Trainer) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.baseDir, path)
}

func replacements(rules []config.ReplaceRule) []corpus.Replacement {
	out := make([]corpus.Replacement, 0, len(rules))
	for _, r := range rules {
		out = append(out, corpus.Replacement{Pattern: r.Pattern, With: r.With})
	}
	return out
}

// meteredRunner counts external slot program invocations.
type meteredRunner struct {
	inner   slots.Runner
	metrics *observe.Metrics
}

func (r meteredRunner) Run(ctx context.Context, prog slots.Program) ([]string, error) {
	lines, err := r.inner.Run(ctx, prog)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	r.metrics.SlotProgramRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", prog.Command),
		attribute.String("status", status)))
	return lines, err
}

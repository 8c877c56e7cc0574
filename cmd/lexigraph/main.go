// Command lexigraph compiles a voice-command grammar profile into training
// artifacts: the plain sentence corpus, the tagged entity corpus, and the
// vocabulary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voulterra/lexigraph/internal/config"
	"github.com/voulterra/lexigraph/internal/history"
	"github.com/voulterra/lexigraph/internal/observe"
	"github.com/voulterra/lexigraph/internal/train"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	profilePath := flag.String("profile", "profile.yaml", "path to the YAML profile file")
	outDir := flag.String("out", "", "override the profile's output directory")
	force := flag.Bool("force", false, "retrain even when the inputs are unchanged")
	dryRun := flag.Bool("dry-run", false, "compile without writing artifacts or history")
	showHistory := flag.Int("history", 0, "print the last N training runs and exit")
	flag.Parse()

	// ── Load profile ──────────────────────────────────────────────────────────
	cfg, err := config.Load(*profilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lexigraph: profile %q not found\n", *profilePath)
		} else {
			fmt.Fprintf(os.Stderr, "lexigraph: %v\n", err)
		}
		return 1
	}
	if *outDir != "" {
		cfg.Output.Directory = *outDir
	}

	// Relative paths in the profile resolve against its own directory, so a
	// profile can be trained from anywhere.
	baseDir := filepath.Dir(*profilePath)

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Logging))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── History store (optional) ──────────────────────────────────────────────
	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(resolvePath(baseDir, cfg.History.Path))
		if err != nil {
			slog.Error("failed to open history database", "err", err)
			return 1
		}
		defer store.Close()
	}

	if *showHistory > 0 {
		return printHistory(ctx, store, cfg.Profile.Name, *showHistory)
	}

	// ── Metrics (optional) ────────────────────────────────────────────────────
	if cfg.Metrics.ListenAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			slog.Error("failed to initialise metrics provider", "err", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics shutdown error", "err", err)
			}
		}()
		go serveMetrics(cfg.Metrics.ListenAddr)
	}

	slog.Info("lexigraph starting",
		"version", version,
		"profile", cfg.Profile.Name,
		"profile_file", *profilePath,
		"intents", len(cfg.Intents),
	)

	// ── Training pass ─────────────────────────────────────────────────────────
	trainer := train.New(cfg, baseDir, trainerOptions(store)...)
	res, err := trainer.Run(ctx, train.RunOptions{Force: *force, DryRun: *dryRun})
	if err != nil {
		slog.Error("training pass failed", "err", err)
		return 1
	}

	printSummary(cfg, res)
	if len(res.UnknownWords) > 0 {
		// Unknown words are a warning, not a failure: the corpus is written,
		// but recognition quality suffers until pronunciations are added.
		return 2
	}
	return 0
}

func trainerOptions(store *history.Store) []train.Option {
	var opts []train.Option
	if store != nil {
		opts = append(opts, train.WithHistory(store))
	}
	return opts
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ── History listing ───────────────────────────────────────────────────────────

func printHistory(ctx context.Context, store *history.Store, profile string, n int) int {
	if store == nil {
		fmt.Fprintln(os.Stderr, "lexigraph: no history database configured (set history.path in the profile)")
		return 1
	}
	runs, err := store.Runs(ctx, profile, n)
	if err != nil {
		slog.Error("failed to read history", "err", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Printf("no recorded runs for profile %q\n", profile)
		return 0
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  intents=%d sentences=%d unknown=%d took=%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Fingerprint[:12], r.Intents, r.Sentences, r.UnknownWords,
			r.Duration.Round(time.Millisecond))
	}
	return 0
}

// ── Summary ───────────────────────────────────────────────────────────────────

func printSummary(cfg *config.Config, res *train.Result) {
	if res.Skipped {
		fmt.Printf("profile %q is up to date (fingerprint %s)\n", cfg.Profile.Name, res.Fingerprint[:12])
		return
	}
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Lexigraph — training pass       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Profile         : %-19s║\n", trim(cfg.Profile.Name, 19))
	fmt.Printf("║  Intents         : %-19d║\n", res.Intents)
	fmt.Printf("║  Sentences       : %-19d║\n", res.Sentences)
	fmt.Printf("║  Unknown words   : %-19d║\n", len(res.UnknownWords))
	fmt.Printf("║  Duration        : %-19s║\n", res.Duration.Round(time.Millisecond))
	fmt.Printf("║  Fingerprint     : %-19s║\n", res.Fingerprint[:12])
	fmt.Println("╚═══════════════════════════════════════╝")
	for _, word := range res.UnknownWords {
		fmt.Printf("  missing pronunciation: %s\n", word)
	}
}

func trim(s string, max int) string {
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint error", "err", err)
	}
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var lvl slog.Level
	switch cfg.Level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Command snapshot converts the tab-delimited NHTSA complaints extract into the
// columnar snapshot the API server loads at startup.
//
// Usage:
//
//	snapshot -in FLAT_CMPL.txt -out data/complaints.parquet
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/defectscope/defectscope/internal/logger"
	"github.com/defectscope/defectscope/internal/snapshot"
	"github.com/defectscope/defectscope/internal/version"
)

type config struct {
	in          string
	out         string
	batchSize   int
	env         string
	showVersion bool
}

func main() {
	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Println(version.String())
		return
	}

	logger, err := logpkg.New(logpkg.Config{Env: cfg.env, Service: "defectscope-snapshot", Version: version.Version})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		cancel()
		logger.Fatal("Snapshot build failed", zap.Error(err))
	}
}

func parseFlags() config {
	cfg := config{}
	flag.StringVar(&cfg.in, "in", "", "tab-delimited complaints extract (required)")
	flag.StringVar(&cfg.out, "out", "data/complaints.parquet", "snapshot output path")
	flag.IntVar(&cfg.batchSize, "batch-size", snapshot.DefaultBatchSize, "rows per write batch")
	flag.StringVar(&cfg.env, "env", "local", "logger environment: local or prod")
	flag.BoolVar(&cfg.showVersion, "version", false, "print version and exit")
	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	if cfg.in == "" {
		return errors.New("-in is required")
	}
	start := time.Now()

	in, err := os.Open(filepath.Clean(cfg.in))
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	if dir := filepath.Dir(cfg.out); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	// Write to a temp file and rename so a running server never sees a partial snapshot.
	tmp := cfg.out + ".tmp"
	out, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	stats, err := snapshot.Build(ctx, in, out, snapshot.Options{BatchSize: cfg.batchSize, Logger: logger})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, cfg.out); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	logger.Info("Snapshot written",
		zap.String("path", cfg.out),
		zap.Int("lines", stats.Lines),
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

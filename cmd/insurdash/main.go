// Package main is the entry point for the insurdash server.
//
// insurdash serves an insurance charges dataset stored as a CSV file: it
// answers "comparable records" queries, appends new records and exposes the
// aggregates behind the dashboard charts over a JSON HTTP API.
// Configuration is read from CLI flags, a .env file and config.yaml, all in
// the data directory.
package main

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/maruel/insurdash/internal/config"
	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/history"
	"github.com/maruel/insurdash/internal/server"
	"github.com/maruel/insurdash/internal/server/handlers"
	"github.com/maruel/insurdash/internal/server/metrics"
	"github.com/maruel/insurdash/internal/server/ratelimit"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "insurdash: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "", "Address to listen on (default from config.yaml, localhost:8000)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	datasetPath := flag.String("dataset", "", "CSV dataset path, relative to -data-dir (default from config.yaml, insurance.csv)")
	configPath := flag.String("config", "", "Path to config.yaml (default: <data-dir>/config.yaml)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	slog.SetDefault(newLogger(ll))

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}
	if *configPath == "" {
		*configPath = filepath.Join(*dataDir, config.FileName)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Flags win over .env, which wins over config.yaml.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["http"] {
		if v := env["HTTP"]; v != "" {
			*httpAddr = v
		} else {
			*httpAddr = cfg.HTTP
		}
	}
	if !set["dataset"] {
		if v := env["DATASET"]; v != "" {
			*datasetPath = v
		} else {
			*datasetPath = cfg.Dataset
		}
	}
	if !set["log-level"] {
		if v := env["LOG_LEVEL"]; v != "" {
			*logLevel = v
		}
	}
	cfg.HTTP = *httpAddr
	cfg.Dataset = *datasetPath
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	// Normalize addr: ":8000" becomes "localhost:8000"
	addr := cfg.HTTP
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	path := cfg.DatasetPath(*dataDir)
	store, err := dataset.Open(path)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Dataset loaded", "path", path, "records", store.Len())

	m := metrics.New()
	m.SetRecords(store.Len())
	store.Observe(func(_ dataset.Record, n int) {
		m.SetRecords(n)
	})
	var repo *history.Repo
	if cfg.History.Enabled {
		if repo, err = trackHistory(ctx, store, cfg.History.AuthorName, cfg.History.AuthorEmail); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Dataset history enabled", "dir", filepath.Dir(path))
	}

	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	seed, err := randomSeed()
	if err != nil {
		return err
	}
	svc := &handlers.Services{
		Store:   store,
		Matcher: dataset.NewMatcher(store, rand.NewPCG(seed[0], seed[1])),
		Metrics: m,
		History: repo,
	}
	buildVersion, _, _, _ := getBuildInfo()
	hcfg := &handlers.Config{
		Version:             buildVersion,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		StrictRecords:       cfg.StrictRecords,
	}
	tiers := ratelimit.NewTiers(cfg.RateLimits.MatchPerMin, cfg.RateLimits.WritePerMin, cfg.RateLimits.ReadPerMin)
	defer tiers.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(svc, hcfg, tiers),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.WatchDataset {
		g.Go(func() error {
			return watchDataset(gctx, store, m)
		})
	}
	g.Go(func() error {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "version", buildVersion)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
		return nil
	})
	return g.Wait()
}

func newLogger(ll *slog.LevelVar) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Drop localhost IPs (not useful in logs).
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// randomSeed returns a seed for the fallback charge generator.
func randomSeed() ([2]uint64, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return [2]uint64{}, fmt.Errorf("failed to seed random source: %w", err)
	}
	return [2]uint64{binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])}, nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("insurdash %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// CLAUDE:SUMMARY CLI entry point for keyhint: keyboard link hints in Chrome, with an optional HTTP/MCP control surface.
// Command keyhint opens Chrome pages with keyboard link hints: press f,
// type the code next to a link, and it is clicked.
//
// Usage:
//
//	keyhint -url https://example.com                  # one page in a local Chrome
//	keyhint -config keyhint.yaml                      # pages and settings from YAML
//	keyhint -remote ws://127.0.0.1:9222/... -target ID # drive a tab of a running Chrome
//	keyhint -url https://example.com -listen :8765    # also serve HTTP and MCP
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
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/keyhint/dbopen"
	"github.com/hazyhaar/keyhint/idgen"
	"github.com/hazyhaar/keyhint/keyhint"
	"github.com/hazyhaar/keyhint/observability"
)

func main() {
	configPath := flag.String("config", "", "path to keyhint.yaml config file")
	singleURL := flag.String("url", "", "open a single URL")
	remote := flag.String("remote", "", "control URL of a running Chrome (overrides config)")
	target := flag.String("target", "", "target id of an existing tab to drive (with -remote)")
	headless := flag.Bool("headless", false, "launch Chrome without a window")
	listen := flag.String("listen", "", "HTTP/MCP listen address (overrides config)")
	eventsDB := flag.String("events-db", "", "SQLite event log path (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("keyhint: fatal", "error", err)
		os.Exit(1)
	}
	if *remote != "" {
		cfg.Browser.Remote = *remote
	}
	if *headless {
		cfg.Browser.Headless = true
	}
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}
	if *eventsDB != "" {
		cfg.Observability.DB = *eventsDB
	}
	if *singleURL != "" || *target != "" {
		cfg.Pages = append(cfg.Pages, keyhint.PageConfig{
			ID:       idgen.Prefixed("pg_", idgen.NanoID(8))(),
			URL:      *singleURL,
			TargetID: *target,
		})
	}
	if len(cfg.Pages) == 0 && cfg.HTTP.Listen == "" {
		fmt.Fprintln(os.Stderr, "usage: keyhint -url <url> | -config <file> | -remote <ws> -target <id> [-listen <addr>]")
		os.Exit(2)
	}

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("keyhint: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*keyhint.Config, error) {
	if path == "" {
		return keyhint.DefaultConfig(), nil
	}
	cfg, err := keyhint.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *keyhint.Config) error {
	var opts []keyhint.Option
	if cfg.Observability.DB != "" {
		db, err := dbopen.Open(cfg.Observability.DB, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer db.Close()
		opts = append(opts, keyhint.WithObservability(db))
	}

	nav := keyhint.New(cfg, logger, opts...)
	if cfg.Observability.DB != "" {
		go cleanupLoop(ctx, logger, nav)
	}
	if err := nav.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer nav.Stop()

	if cfg.HTTP.Listen == "" {
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           nav.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("keyhint: listening", "addr", cfg.HTTP.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cleanupLoop applies event log retention daily.
func cleanupLoop(ctx context.Context, logger *slog.Logger, nav *keyhint.Navigator) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if err := nav.Cleanup(ctx); err != nil {
			logger.Warn("keyhint: event log cleanup", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

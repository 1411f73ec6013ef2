package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/knowd/internal/analysis"
	"github.com/kalambet/knowd/internal/api"
	"github.com/kalambet/knowd/internal/config"
	"github.com/kalambet/knowd/internal/scrape"
	"github.com/kalambet/knowd/internal/search"
	"github.com/kalambet/knowd/internal/seed"
	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/tagging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the knowd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	store, err := storage.Open(ctx, storage.Options{
		Backend: cfg.Storage.Backend,
		DataDir: cfg.Storage.DataDir,
		Neo4j: storage.Neo4jConfig{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}
	return store, nil
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "knowd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	timeout, err := cfg.RequestTimeoutDuration()
	if err != nil {
		return err
	}

	// Logs go to stderr; stdout carries MCP traffic when --mcp is set.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	if cfg.Storage.SeedFile != "" {
		if _, err := importFiles(ctx, store, []string{cfg.Storage.SeedFile}); err != nil {
			return fmt.Errorf("seeding from %s: %w", cfg.Storage.SeedFile, err)
		}
	}

	engine, err := search.NewEngine(store,
		search.WithLogger(logger),
		search.WithContextCap(cfg.Search.ContextCap),
		search.WithContextTags(cfg.Search.ContextTags),
	)
	if err != nil {
		return fmt.Errorf("building search engine: %w", err)
	}

	scraper := scrape.New(scrape.WithLogger(logger))

	deps := api.Deps{
		Store:          store,
		Engine:         engine,
		Scraper:        scraper,
		Token:          cfg.Server.APIToken,
		DefaultLimit:   cfg.Search.DefaultLimit,
		RequestTimeout: timeout,
		Logger:         logger,
	}
	if cfg.Server.APIToken == "" {
		slog.Warn("server.api_token is empty; the REST API is unauthenticated")
	}

	if cfg.LLM.AutoTag {
		jobs, ok := store.(storage.JobQueue)
		if !ok {
			slog.Warn("autotag disabled: storage backend has no job queue", "backend", cfg.Storage.Backend)
		} else {
			analyzer, err := analysis.New(analysis.Config{
				BaseURL: cfg.LLM.BaseURL,
				Model:   cfg.LLM.Model,
				APIKey:  cfg.LLM.APIKey,
			}, analysis.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("building analyzer: %w", err)
			}
			deps.Jobs = jobs
			deps.AutoTag = true

			worker := tagging.NewWorker(store, jobs, analyzer, scraper, 500*time.Millisecond)
			go worker.Run(ctx)
			slog.Info("autotag worker started", "model", cfg.LLM.Model)
		}
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:        store,
			Engine:       engine,
			DefaultLimit: cfg.Search.DefaultLimit,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "knowd listening on %s (%s storage)\n", addr, cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// importFiles loads every seed file and imports them in order, summing the
// per-file counts.
func importFiles(ctx context.Context, store storage.Store, paths []string) (seed.Result, error) {
	files, err := seed.LoadFiles(ctx, paths...)
	if err != nil {
		return seed.Result{}, err
	}
	var total seed.Result
	for i, f := range files {
		res, err := seed.Import(ctx, store, f)
		if err != nil {
			return total, fmt.Errorf("importing %s: %w", paths[i], err)
		}
		total.Tags += res.Tags
		total.Notes += res.Notes
		total.Links += res.Links
		total.Connections += res.Connections
		total.Skipped += res.Skipped
	}
	return total, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sinahosseinzadeh97/clipqa/internal/api"
	"github.com/sinahosseinzadeh97/clipqa/internal/catalog"
	"github.com/sinahosseinzadeh97/clipqa/internal/compose"
	"github.com/sinahosseinzadeh97/clipqa/internal/config"
	"github.com/sinahosseinzadeh97/clipqa/internal/engine"
	"github.com/sinahosseinzadeh97/clipqa/internal/ingest"
	"github.com/sinahosseinzadeh97/clipqa/internal/retrieval"
	"github.com/sinahosseinzadeh97/clipqa/internal/transcript"
	"github.com/sinahosseinzadeh97/clipqa/internal/vectorindex"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipqa server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
}

func indexPaths(dataDir string) (indexPath, metaPath string) {
	return filepath.Join(dataDir, "index.gob"), filepath.Join(dataDir, "index_meta.json")
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "clipqa version %s\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness.
	client := engine.NewClient(engine.ClientConfig{
		BaseURL:           cfg.Ollama.BaseURL,
		EmbedModel:        cfg.Ollama.EmbedModel,
		AnswerModel:       cfg.Ollama.AnswerModel,
		Dimension:         cfg.Ollama.EmbedDimension,
		MaxSequenceLength: cfg.Ollama.MaxSequenceLength,
	})
	if !client.IsRunning(ctx) {
		return fmt.Errorf("ollama is not reachable at %s", cfg.Ollama.BaseURL)
	}

	// Open the catalog.
	store, err := catalog.Open(cfg.Index.DataDir)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing catalog: %v\n", err)
		}
	}()

	// Load the saved index if one exists, otherwise start empty.
	idx, err := loadOrNewIndex(cfg)
	if err != nil {
		return err
	}

	// Build the pipeline.
	segmenter := transcript.NewSegmenter(cfg.Segment.MaxChars, cfg.Segment.OverlapChars)
	pipe := ingest.NewPipeline(segmenter, client, idx, store, cfg.Ollama.BatchSize)
	retriever := retrieval.NewRetriever(client, idx)
	assembler := compose.NewAssembler(cfg.Answer.MaxContextChars)
	composer := compose.NewComposer(client, assembler, cfg.Answer.TimeoutDuration(), cfg.Answer.MaxRetries)

	deps := api.Deps{
		Retriever: retriever,
		Answerer:  composer,
		Ingestor:  pipe,
		Catalog:   store,
		TopK:      cfg.Answer.TopK,
		Logger:    slog.Default(),
	}
	handler := api.NewHandler(deps)

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(deps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "clipqa listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout, then persist the index.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return saveIndex(idx, cfg.Index.DataDir)
}

func loadOrNewIndex(cfg config.Config) (*vectorindex.Index, error) {
	kind, err := vectorindex.ParseKind(cfg.Index.Kind)
	if err != nil {
		return nil, err
	}

	indexPath, metaPath := indexPaths(cfg.Index.DataDir)
	if _, err := os.Stat(indexPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking index file: %w", err)
		}
		return vectorindex.New(kind, vectorindex.Options{}), nil
	}

	idx, err := vectorindex.Load(indexPath, metaPath)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	if idx.Len() > 0 && idx.Dim() != cfg.Ollama.EmbedDimension {
		return nil, fmt.Errorf("saved index dimension %d does not match configured embedding dimension %d: %w",
			idx.Dim(), cfg.Ollama.EmbedDimension, vectorindex.ErrDimensionMismatch)
	}
	if idx.Kind() != kind {
		slog.Warn("saved index kind differs from configuration, keeping saved kind",
			"saved", idx.Kind(), "configured", kind)
	}
	slog.Info("index loaded", "kind", idx.Kind(), "vectors", idx.Len())
	return idx, nil
}

func saveIndex(idx *vectorindex.Index, dataDir string) error {
	if idx.Len() == 0 {
		return nil
	}
	indexPath, metaPath := indexPaths(dataDir)
	if err := idx.Save(indexPath, metaPath); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	slog.Info("index saved", "vectors", idx.Len(), "path", indexPath)
	return nil
}

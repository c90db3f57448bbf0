// Package main implements the document question-answering API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/doctalk-ai/doctalk/engine/chunker"
	"github.com/doctalk-ai/doctalk/engine/events"
	"github.com/doctalk-ai/doctalk/engine/extract"
	"github.com/doctalk-ai/doctalk/engine/ingest"
	"github.com/doctalk-ai/doctalk/engine/rag"
	"github.com/doctalk-ai/doctalk/engine/registry"
	"github.com/doctalk-ai/doctalk/engine/semantic"
	"github.com/doctalk-ai/doctalk/pkg/config"
	"github.com/doctalk-ai/doctalk/pkg/llm"
	"github.com/doctalk-ai/doctalk/pkg/metrics"
	"github.com/doctalk-ai/doctalk/pkg/mid"
	"github.com/doctalk-ai/doctalk/pkg/ollama"
	"github.com/doctalk-ai/doctalk/pkg/resilience"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Password, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	reg := registry.New(driver)
	if err := reg.Init(ctx); err != nil {
		return fmt.Errorf("registry init: %w", err)
	}

	// --- Connect to Qdrant ---
	store, err := semantic.New(cfg.Qdrant.Addr)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	// --- Optional NATS for lifecycle events ---
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
	}
	publisher := events.New(nc, logger)

	// --- Embedding, generation, chunking ---
	embedder := ollama.New(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Dimensions)
	gen := llm.New(cfg.APIKey(), cfg.LLM.BaseURL, cfg.LLM.Model)

	split, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("chunker: %w", err)
	}

	ingestSvc := ingest.New(ingest.Deps{
		YouTube:  extract.NewYouTube(nil),
		Embedder: embedder,
		Store:    store,
		Registry: reg,
		Events:   publisher,
		Chunker:  split,
		Logger:   logger,
	})

	ragSvc := rag.New(embedder, store, gen, reg, rag.Options{
		TopK:          cfg.Chat.TopK,
		SearchTimeout: time.Duration(cfg.Chat.SearchTimeoutSecs) * time.Second,
	}, logger)

	// --- HTTP server ---
	srv := &server{
		ingest:        ingestSvc,
		rag:           ragSvc,
		limiter:       resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.HTTP.IngestRate, Burst: cfg.HTTP.IngestBurst}),
		reg:           metrics.New(),
		log:           logger,
		answerTimeout: time.Duration(cfg.Chat.AnswerTimeoutSecs) * time.Second,
	}

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.HTTP.CORSOrigin),
		mid.OTel("doctalk-api"),
		mid.MaxBytes(cfg.HTTP.MaxUploadMiB<<20),
	)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.HTTP.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// Package main implements a one-shot ingestion CLI: point it at a YouTube
// URL or a local PDF and it runs the full pipeline, printing the receipt.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/doctalk-ai/doctalk/engine/chunker"
	"github.com/doctalk-ai/doctalk/engine/extract"
	"github.com/doctalk-ai/doctalk/engine/ingest"
	"github.com/doctalk-ai/doctalk/engine/registry"
	"github.com/doctalk-ai/doctalk/engine/semantic"
	"github.com/doctalk-ai/doctalk/pkg/config"
	"github.com/doctalk-ai/doctalk/pkg/ollama"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	videoURL := flag.String("url", "", "YouTube URL to ingest")
	pdfPath := flag.String("pdf", "", "path to a PDF file to ingest")
	flag.Parse()

	if (*videoURL == "") == (*pdfPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -url or -pdf is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *videoURL, *pdfPath, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, videoURL, pdfPath string, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Password, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	reg := registry.New(driver)
	if err := reg.Init(ctx); err != nil {
		return fmt.Errorf("registry init: %w", err)
	}

	store, err := semantic.New(cfg.Qdrant.Addr)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	split, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("chunker: %w", err)
	}

	svc := ingest.New(ingest.Deps{
		YouTube:  extract.NewYouTube(nil),
		Embedder: ollama.New(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Dimensions),
		Store:    store,
		Registry: reg,
		Chunker:  split,
		Logger:   logger,
	})

	var rec ingest.Receipt
	if videoURL != "" {
		rec, err = svc.IngestVideo(ctx, videoURL)
	} else {
		var data []byte
		data, err = os.ReadFile(pdfPath)
		if err != nil {
			return fmt.Errorf("read pdf: %w", err)
		}
		rec, err = svc.IngestPDF(ctx, data, filepath.Base(pdfPath))
	}
	if err != nil {
		return err
	}

	fmt.Printf("ingested %s (%s): %d chunks\n", rec.DocumentID, rec.Name, rec.ChunksCreated)
	return nil
}

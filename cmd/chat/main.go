// Package main implements a terminal REPL for asking questions about one
// ingested document.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/doctalk-ai/doctalk/engine/rag"
	"github.com/doctalk-ai/doctalk/engine/registry"
	"github.com/doctalk-ai/doctalk/engine/semantic"
	"github.com/doctalk-ai/doctalk/pkg/config"
	"github.com/doctalk-ai/doctalk/pkg/llm"
	"github.com/doctalk-ai/doctalk/pkg/ollama"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	docID := flag.String("doc", "", "document id to chat about")
	flag.Parse()

	if *docID == "" {
		fmt.Fprintln(os.Stderr, "-doc is required (see GET /api/documents for ids)")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *docID, logger); err != nil {
		logger.Error("chat failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, docID string, logger *slog.Logger) error {
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Password, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	reg := registry.New(driver)

	store, err := semantic.New(cfg.Qdrant.Addr)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	embedder := ollama.New(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Dimensions)
	gen := llm.New(cfg.APIKey(), cfg.LLM.BaseURL, cfg.LLM.Model)

	svc := rag.New(embedder, store, gen, reg, rag.Options{
		TopK:          cfg.Chat.TopK,
		SearchTimeout: time.Duration(cfg.Chat.SearchTimeoutSecs) * time.Second,
	}, logger)

	doc, err := reg.Get(ctx, docID)
	if err != nil {
		return err
	}
	fmt.Printf("chatting about %s (%s, %d chunks). Empty line or Ctrl-D exits.\n", doc.Name, doc.Type, doc.ChunkCount)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		askCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Chat.AnswerTimeoutSecs)*time.Second)
		answer, err := svc.Ask(askCtx, docID, question)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Println(answer.Text)
		for _, src := range answer.Sources {
			fmt.Printf("  [chunk %d, score %.3f]\n", src.Chunk, src.Score)
		}
	}
	return scanner.Err()
}

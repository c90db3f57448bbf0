// Package main re-embeds every registered document with the currently
// configured embedding model. Run it after switching models so chat
// queries stop being rejected for a model mismatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/engine/registry"
	"github.com/doctalk-ai/doctalk/engine/semantic"
	"github.com/doctalk-ai/doctalk/pkg/config"
	"github.com/doctalk-ai/doctalk/pkg/fn"
	"github.com/doctalk-ai/doctalk/pkg/ollama"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	force := flag.Bool("force", false, "re-embed documents even if their model already matches")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *force, logger); err != nil {
		logger.Error("reindex failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, force bool, logger *slog.Logger) error {
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

	docs, err := reg.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	pending := fn.Filter(docs, func(d domain.Document) bool {
		return force || d.EmbedModel != embedder.Model()
	})
	skipped := len(docs) - len(pending)

	var done, failed int
	for _, doc := range pending {
		if err := reindexDoc(ctx, doc, store, reg, embedder); err != nil {
			logger.Error("document reindex failed", "doc_id", doc.ID, "err", err)
			failed++
			continue
		}
		logger.Info("document reindexed", "doc_id", doc.ID, "chunks", doc.ChunkCount, "model", embedder.Model())
		done++
	}

	fmt.Printf("reindexed %d, skipped %d, failed %d (model %s)\n", done, skipped, failed, embedder.Model())
	if failed > 0 {
		return fmt.Errorf("%d documents failed", failed)
	}
	return nil
}

// reindexDoc reads a document's chunks back out of the store, embeds them
// with the current model, and rewrites the collection. The registry's
// embed_model is updated last, so an interrupted run leaves the document
// still marked with its old model and it will be retried next time.
func reindexDoc(ctx context.Context, doc domain.Document, store *semantic.Store, reg *registry.Registry, embedder *ollama.Client) error {
	chunks, err := store.All(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("read chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("collection for %s is empty", doc.ID)
	}

	texts := fn.Map(chunks, func(c semantic.ChunkRecord) string { return c.Text })
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	if err := store.DeleteCollection(ctx, doc.ID); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	if err := store.CreateCollection(ctx, doc.ID, embedder.Dimensions()); err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}

	records := make([]semantic.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = semantic.ChunkRecord{Text: c.Text, Embedding: vectors[i], Index: c.Index}
	}
	if err := store.Add(ctx, doc.ID, records); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}

	return reg.SetEmbedModel(ctx, doc.ID, embedder.Model())
}

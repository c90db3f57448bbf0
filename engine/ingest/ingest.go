// Package ingest runs the document ingestion pipeline: extract text from a
// source, chunk it, embed the chunks, store the vectors, and register the
// document. A document only becomes visible once its vectors are durably
// stored; any later failure rolls the vector collection back.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/engine/events"
	"github.com/doctalk-ai/doctalk/engine/extract"
	"github.com/doctalk-ai/doctalk/engine/semantic"
	"github.com/doctalk-ai/doctalk/pkg/fn"
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 100

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	YouTube  transcriptFetcher
	Embedder embedder
	Store    vectorStore
	Registry documentRegistry
	Events   eventSink
	Chunker  splitter
	Logger   *slog.Logger
}

// Service orchestrates ingestion and deletion of documents.
type Service struct {
	deps  Deps
	log   *slog.Logger
	locks sync.Map // docID → *sync.Mutex
	now   func() time.Time
	newID func() string
}

// New creates an ingestion service.
func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.New(nil, nil)
	}
	return &Service{
		deps:  deps,
		log:   log,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// lock returns the per-document mutex, creating it on first use. It
// serializes ingest-vs-delete on the same document id.
func (s *Service) lock(docID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(docID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// loggedTap logs stage entry with the document id and passes the value on.
func loggedTap[T any](name string, log *slog.Logger, docID string) fn.Stage[T, T] {
	return fn.TapStage(func(_ context.Context, _ T) {
		log.Info("stage.start", "stage", name, "doc_id", docID)
	})
}

// staged wraps a stage so its failures carry the stage name.
func staged[In, Out any](name string, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return fn.TracedStage(name, func(ctx context.Context, in In) fn.Result[Out] {
		r := stage(ctx, in)
		if r.IsErr() {
			_, err := r.Unwrap()
			return fn.Err[Out](domain.NewStageError(name, err))
		}
		return r
	})
}

// chunkStage splits the extracted text.
func (s *Service) chunkStage() fn.Stage[extracted, chunked] {
	return func(_ context.Context, ex extracted) fn.Result[chunked] {
		if strings.TrimSpace(ex.Text) == "" {
			return fn.Err[chunked](domain.ErrEmptyContent)
		}
		chunks := s.deps.Chunker.SplitAll(ex.Text)
		if len(chunks) == 0 {
			return fn.Err[chunked](domain.ErrEmptyContent)
		}
		return fn.Ok(chunked{extracted: ex, Chunks: chunks})
	}
}

// embedStage embeds chunks in batches of EmbedBatchSize, preserving order.
// Batches run one at a time; the embedding backend serves a single prompt
// per model anyway.
func (s *Service) embedStage() fn.Stage[chunked, embedded] {
	embedBatch := fn.Stage[[]string, [][]float32](func(ctx context.Context, batch []string) fn.Result[[][]float32] {
		return fn.FromPair(s.deps.Embedder.EmbedBatch(ctx, batch))
	})
	return func(ctx context.Context, ch chunked) fn.Result[embedded] {
		r := fn.BatchStage(1, embedBatch)(ctx, fn.Chunk(ch.Chunks, EmbedBatchSize))
		batches, err := r.Unwrap()
		if err != nil {
			return fn.Err[embedded](fmt.Errorf("embed: %w", err))
		}
		vectors := make([][]float32, 0, len(ch.Chunks))
		for _, b := range batches {
			vectors = append(vectors, b...)
		}
		return fn.Ok(embedded{chunked: ch, Vectors: vectors})
	}
}

// persistStage stores vectors and registers the document under the
// per-document lock. The document is registered only after every chunk is
// durably stored; a failure at any point deletes the collection so no
// half-ingested document is ever visible.
func (s *Service) persistStage() fn.Stage[embedded, domain.Document] {
	return func(ctx context.Context, em embedded) fn.Result[domain.Document] {
		mu := s.lock(em.DocID)
		mu.Lock()
		defer mu.Unlock()

		if err := s.deps.Store.CreateCollection(ctx, em.DocID, s.deps.Embedder.Dimensions()); err != nil {
			return fn.Err[domain.Document](err)
		}

		records := make([]semantic.ChunkRecord, len(em.Chunks))
		for i, text := range em.Chunks {
			records[i] = semantic.ChunkRecord{Text: text, Embedding: em.Vectors[i], Index: i}
		}
		if err := s.deps.Store.Add(ctx, em.DocID, records); err != nil {
			s.rollback(ctx, em.DocID)
			return fn.Err[domain.Document](err)
		}

		doc := domain.Document{
			ID:         em.DocID,
			Type:       em.Type,
			Name:       em.Name,
			ChunkCount: len(em.Chunks),
			EmbedModel: s.deps.Embedder.Model(),
			CreatedAt:  s.now(),
		}
		if err := s.deps.Registry.Register(ctx, doc); err != nil {
			s.rollback(ctx, em.DocID)
			return fn.Err[domain.Document](err)
		}
		return fn.Ok(doc)
	}
}

// rollback removes the vector collection after a failed ingest. Best effort:
// an orphaned collection is invisible without a registry entry.
func (s *Service) rollback(ctx context.Context, docID string) {
	if err := s.deps.Store.DeleteCollection(ctx, docID); err != nil {
		s.log.Warn("rollback failed", "doc_id", docID, "error", err)
	}
}

// run executes chunk → embed → persist for an extracted source and publishes
// the ingested event.
func (s *Service) run(ctx context.Context, ex extracted) (Receipt, error) {
	log := s.log
	pipeline := fn.Then(
		fn.Then(loggedTap[extracted]("chunk", log, ex.DocID), staged("chunk", s.chunkStage())),
		fn.Then(
			fn.Then(loggedTap[chunked]("embed", log, ex.DocID), staged("embed", s.embedStage())),
			fn.Then(loggedTap[embedded]("persist", log, ex.DocID), staged("persist", s.persistStage())),
		),
	)

	result := pipeline(ctx, ex)
	doc, err := result.Unwrap()
	if err != nil {
		log.Error("ingest failed", "doc_id", ex.DocID, "error", err)
		return Receipt{}, err
	}

	s.deps.Events.DocumentIngested(ctx, events.Ingested{
		DocumentID: doc.ID,
		Type:       doc.Type,
		Name:       doc.Name,
		ChunkCount: doc.ChunkCount,
	})
	log.Info("ingest complete", "doc_id", doc.ID, "chunks", doc.ChunkCount)

	return Receipt{DocumentID: doc.ID, Name: doc.Name, ChunksCreated: doc.ChunkCount}, nil
}

// IngestVideo fetches a YouTube transcript and ingests it as a new document.
// Each call creates an independent document; ids are never reused.
func (s *Service) IngestVideo(ctx context.Context, rawURL string) (Receipt, error) {
	text, videoID, err := s.deps.YouTube.Transcript(ctx, rawURL)
	if err != nil {
		return Receipt{}, domain.NewStageError("extract", err)
	}
	return s.run(ctx, extracted{
		DocID: "youtube_" + s.newID(),
		Type:  domain.SourceYouTube,
		Name:  videoID,
		Text:  text,
	})
}

// IngestPDF extracts text from raw PDF bytes and ingests it as a new document.
func (s *Service) IngestPDF(ctx context.Context, data []byte, filename string) (Receipt, error) {
	if err := domain.ValidatePDFName(filename); err != nil {
		return Receipt{}, domain.NewStageError("extract", err)
	}
	text, err := extract.PDFText(data, filename)
	if err != nil {
		return Receipt{}, domain.NewStageError("extract", err)
	}
	return s.run(ctx, extracted{
		DocID: "pdf_" + s.newID(),
		Type:  domain.SourcePDF,
		Name:  filename,
		Text:  text,
	})
}

// Delete removes a document's vectors and registry entry. Missing documents
// return ErrNotFound; the vector-side removal is idempotent.
func (s *Service) Delete(ctx context.Context, docID string) error {
	mu := s.lock(docID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.deps.Registry.Get(ctx, docID); err != nil {
		return err
	}
	if err := s.deps.Store.DeleteCollection(ctx, docID); err != nil {
		return err
	}
	if err := s.deps.Registry.Delete(ctx, docID); err != nil {
		return err
	}

	s.deps.Events.DocumentDeleted(ctx, events.Deleted{DocumentID: docID})
	s.log.Info("document deleted", "doc_id", docID)
	return nil
}

// List returns all registered documents, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Document, error) {
	return s.deps.Registry.List(ctx)
}

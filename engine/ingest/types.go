package ingest

import (
	"context"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/engine/events"
	"github.com/doctalk-ai/doctalk/engine/semantic"
)

// Receipt summarizes a completed ingestion.
type Receipt struct {
	DocumentID    string `json:"document_id"`
	Name          string `json:"name"`
	ChunksCreated int    `json:"chunks_created"`
}

// transcriptFetcher obtains a transcript and the parsed video id from a
// YouTube URL.
type transcriptFetcher interface {
	Transcript(ctx context.Context, rawURL string) (text, videoID string, err error)
}

// embedder turns chunk texts into vectors.
type embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// vectorStore is the slice of the semantic store the pipeline writes to.
type vectorStore interface {
	CreateCollection(ctx context.Context, docID string, dims int) error
	Add(ctx context.Context, docID string, records []semantic.ChunkRecord) error
	DeleteCollection(ctx context.Context, docID string) error
}

// documentRegistry records document metadata.
type documentRegistry interface {
	Register(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// eventSink announces lifecycle changes. events.Publisher satisfies this
// and is safe to leave nil-backed.
type eventSink interface {
	DocumentIngested(ctx context.Context, ev events.Ingested)
	DocumentDeleted(ctx context.Context, ev events.Deleted)
}

// splitter breaks text into overlapping chunks.
type splitter interface {
	SplitAll(text string) []string
}

// extracted is the pipeline payload after text extraction.
type extracted struct {
	DocID string
	Type  domain.SourceType
	Name  string
	Text  string
}

// chunked carries the split text.
type chunked struct {
	extracted
	Chunks []string
}

// embedded carries chunk vectors aligned with Chunks.
type embedded struct {
	chunked
	Vectors [][]float32
}

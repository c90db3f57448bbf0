// Package rag answers questions about a single ingested document. It embeds
// the question, retrieves the most similar chunks from that document's
// vector collection, and asks the generation model to answer from the
// retrieved context only.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/engine/semantic"
	"github.com/doctalk-ai/doctalk/pkg/fn"
)

// ErrModelMismatch means the document's stored vectors were produced by a
// different embedding model than the one currently configured. Querying
// across models gives meaningless similarity scores; the document has to be
// reindexed first.
var ErrModelMismatch = errors.New("embedding model mismatch")

// queryEmbedder embeds a single question text.
type queryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// chunkSearcher runs a similarity query inside one document's collection.
type chunkSearcher interface {
	Query(ctx context.Context, docID string, vector []float32, k int) ([]semantic.ScoredChunk, error)
}

// generator produces the final answer from a prompt.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// docGetter looks up a registered document.
type docGetter interface {
	Get(ctx context.Context, id string) (domain.Document, error)
}

// Options configures retrieval behaviour.
type Options struct {
	TopK          int
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		SearchTimeout: 10 * time.Second,
	}
}

// Service runs the question-answering pipeline.
type Service struct {
	embed    queryEmbedder
	search   chunkSearcher
	generate generator
	registry docGetter
	opts     Options
	log      *slog.Logger
}

// New creates a Service.
func New(embed queryEmbedder, search chunkSearcher, gen generator, registry docGetter, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	return &Service{
		embed:    embed,
		search:   search,
		generate: gen,
		registry: registry,
		opts:     opts,
		log:      log,
	}
}

// Answer is the structured response for a question.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Source is a retrieved chunk backing the answer, in rank order.
type Source struct {
	Chunk int     `json:"chunk"`
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// Ask answers a question about the given document. The generation backend's
// rate limits and timeouts surface as ErrRateLimited and ErrTimeout; the
// service never retries on the caller's behalf.
func (s *Service) Ask(ctx context.Context, docID, question string) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}

	doc, err := s.registry.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.EmbedModel != "" && doc.EmbedModel != s.embed.Model() {
		return nil, fmt.Errorf("rag: document %s was embedded with %q, current model is %q, reindex it first: %w",
			docID, doc.EmbedModel, s.embed.Model(), ErrModelMismatch)
	}

	s.log.Info("ask", "doc_id", docID, "question_len", len(question))

	vector, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	chunks, err := s.search.Query(searchCtx, docID, vector, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	s.log.Info("search done", "doc_id", docID, "results", len(chunks))

	text, err := s.generate.Generate(ctx, buildPrompt(chunks, doc, question))
	if err != nil {
		return nil, err
	}

	sources := fn.Map(chunks, func(c semantic.ScoredChunk) Source {
		return Source{Chunk: c.Index, Text: c.Text, Score: c.Score}
	})
	return &Answer{Text: text, Sources: sources}, nil
}

// buildPrompt assembles the instructional prompt: preamble, retrieved chunks
// in rank order tagged with their chunk index, then the question.
func buildPrompt(chunks []semantic.ScoredChunk, doc domain.Document, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful assistant that answers questions about a %s based on its extracted text.\n\n",
		sourceNoun(doc.Type))
	b.WriteString("Context from the document:\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "[Chunk %d]\n%s\n\n", c.Index, c.Text)
	}
	fmt.Fprintf(&b, "User question: %s\n\n", question)
	b.WriteString("Answer using only the context above. If you reference specific information, mention the chunk it came from. If the context doesn't contain enough information to answer the question, say so politely.")
	return b.String()
}

func sourceNoun(t domain.SourceType) string {
	switch t {
	case domain.SourceYouTube:
		return "YouTube video transcript"
	case domain.SourcePDF:
		return "PDF document"
	default:
		return "document"
	}
}

package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/engine/semantic"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	model string
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func (f *fakeEmbedder) Model() string {
	if f.model == "" {
		return "fake-embed"
	}
	return f.model
}

type fakeSearcher struct {
	chunks []semantic.ScoredChunk
	err    error
	calls  int
}

func (f *fakeSearcher) Query(_ context.Context, _ string, _ []float32, _ int) ([]semantic.ScoredChunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeGenerator struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeGetter struct {
	doc domain.Document
	err error
}

func (f *fakeGetter) Get(_ context.Context, _ string) (domain.Document, error) {
	return f.doc, f.err
}

func newService(e *fakeEmbedder, s *fakeSearcher, g *fakeGenerator, r *fakeGetter) *Service {
	return New(e, s, g, r, DefaultOptions(), nil)
}

func videoDoc() domain.Document {
	return domain.Document{
		ID:         "youtube_abc",
		Type:       domain.SourceYouTube,
		Name:       "abc",
		ChunkCount: 3,
		EmbedModel: "fake-embed",
	}
}

func TestAskReturnsAnswerWithRankedSources(t *testing.T) {
	embed := &fakeEmbedder{vec: []float32{1, 0}}
	search := &fakeSearcher{chunks: []semantic.ScoredChunk{
		{Index: 2, Text: "most relevant", Score: 0.95},
		{Index: 0, Text: "less relevant", Score: 0.80},
	}}
	gen := &fakeGenerator{reply: "the answer"}
	svc := newService(embed, search, gen, &fakeGetter{doc: videoDoc()})

	ans, err := svc.Ask(context.Background(), "youtube_abc", "what is discussed?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Text != "the answer" {
		t.Fatalf("unexpected text: %q", ans.Text)
	}
	if len(ans.Sources) != 2 || ans.Sources[0].Chunk != 2 || ans.Sources[1].Chunk != 0 {
		t.Fatalf("sources not in rank order: %+v", ans.Sources)
	}
}

func TestAskPromptContainsChunksAndQuestion(t *testing.T) {
	embed := &fakeEmbedder{vec: []float32{1}}
	search := &fakeSearcher{chunks: []semantic.ScoredChunk{
		{Index: 1, Text: "alpha content", Score: 0.9},
	}}
	gen := &fakeGenerator{reply: "ok"}
	svc := newService(embed, search, gen, &fakeGetter{doc: videoDoc()})

	if _, err := svc.Ask(context.Background(), "youtube_abc", "what about alpha?"); err != nil {
		t.Fatal(err)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{"[Chunk 1]", "alpha content", "what about alpha?", "YouTube video transcript"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestAskUnknownDocument(t *testing.T) {
	svc := newService(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, &fakeGetter{err: domain.ErrNotFound})

	_, err := svc.Ask(context.Background(), "youtube_missing", "anything?")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAskRejectsInvalidQuestion(t *testing.T) {
	embed := &fakeEmbedder{}
	svc := newService(embed, &fakeSearcher{}, &fakeGenerator{}, &fakeGetter{doc: videoDoc()})

	if _, err := svc.Ask(context.Background(), "youtube_abc", "   "); err == nil {
		t.Fatal("blank question must be rejected")
	}
	long := strings.Repeat("x", domain.MaxQuestionLen+1)
	if _, err := svc.Ask(context.Background(), "youtube_abc", long); err == nil {
		t.Fatal("oversized question must be rejected")
	}
	if embed.calls != 0 {
		t.Fatal("invalid questions must not reach the embedder")
	}
}

func TestAskEmbedModelMismatch(t *testing.T) {
	doc := videoDoc()
	doc.EmbedModel = "old-model"
	gen := &fakeGenerator{}
	svc := newService(&fakeEmbedder{vec: []float32{1}}, &fakeSearcher{}, gen, &fakeGetter{doc: doc})

	_, err := svc.Ask(context.Background(), "youtube_abc", "question?")
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("mismatched documents must not reach generation")
	}
}

func TestAskRateLimitedNoRetry(t *testing.T) {
	embed := &fakeEmbedder{vec: []float32{1}}
	search := &fakeSearcher{chunks: []semantic.ScoredChunk{{Index: 0, Text: "t", Score: 1}}}
	gen := &fakeGenerator{err: domain.ErrRateLimited}
	svc := newService(embed, search, gen, &fakeGetter{doc: videoDoc()})

	_, err := svc.Ask(context.Background(), "youtube_abc", "question?")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	// No internal retries: everything ran exactly once.
	if embed.calls != 1 || search.calls != 1 || gen.calls != 1 {
		t.Fatalf("expected single pass, got embed=%d search=%d gen=%d", embed.calls, search.calls, gen.calls)
	}
}

func TestAskTimeoutSurfaces(t *testing.T) {
	embed := &fakeEmbedder{vec: []float32{1}}
	search := &fakeSearcher{chunks: []semantic.ScoredChunk{{Index: 0, Text: "t", Score: 1}}}
	gen := &fakeGenerator{err: domain.ErrTimeout}
	svc := newService(embed, search, gen, &fakeGetter{doc: videoDoc()})

	_, err := svc.Ask(context.Background(), "youtube_abc", "question?")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestAskSearchFailure(t *testing.T) {
	embed := &fakeEmbedder{vec: []float32{1}}
	search := &fakeSearcher{err: domain.NewStorageError("search", errors.New("grpc down"))}
	gen := &fakeGenerator{}
	svc := newService(embed, search, gen, &fakeGetter{doc: videoDoc()})

	_, err := svc.Ask(context.Background(), "youtube_abc", "question?")
	var storErr *domain.StorageError
	if !errors.As(err, &storErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generation must not run after a failed search")
	}
}

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/pkg/resilience"
)

func TestEmbedDecodesVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Fatalf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", 3)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != float32(0.2) {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "m", 3)
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResp{})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", 3)
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error on empty embedding")
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		json.NewDecoder(r.Body).Decode(&req)
		v := float64(len(req.Prompt))
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{v}})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", 1)
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 || vecs[0][0] != 1 || vecs[1][0] != 2 || vecs[2][0] != 3 {
		t.Fatalf("batch order lost: %v", vecs)
	}
}

func TestEmbedDeadlineExpiryIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{1}})
	}))
	defer srv.Close()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	c := New(srv.URL, "m", 1)
	_, err := c.Embed(ctx, "x")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestEmbedBreakerOpensAfterFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "m", 3)
	c.breaker = resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 2, Timeout: 1e9})

	ctx := context.Background()
	_, _ = c.Embed(ctx, "x")
	_, _ = c.Embed(ctx, "x")

	_, err := c.Embed(ctx, "x")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if hits != 2 {
		t.Fatalf("tripped breaker should not hit backend, got %d hits", hits)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/engine/ingest"
	"github.com/doctalk-ai/doctalk/engine/rag"
	"github.com/doctalk-ai/doctalk/pkg/metrics"
	"github.com/doctalk-ai/doctalk/pkg/resilience"
)

// ingester is the slice of the ingestion service the handlers use.
type ingester interface {
	IngestVideo(ctx context.Context, url string) (ingest.Receipt, error)
	IngestPDF(ctx context.Context, data []byte, filename string) (ingest.Receipt, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Document, error)
}

// asker answers questions about a document.
type asker interface {
	Ask(ctx context.Context, docID, question string) (*rag.Answer, error)
}

type server struct {
	ingest        ingester
	rag           asker
	limiter       *resilience.Limiter
	reg           *metrics.Registry
	log           *slog.Logger
	answerTimeout time.Duration
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/process-video", s.handleProcessVideo)
	mux.HandleFunc("POST /api/process-pdf", s.handleProcessPDF)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.Handle("GET /metrics", s.reg.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var exErr *domain.ExtractionError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, resilience.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, rag.ErrModelMismatch):
		return http.StatusConflict
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &exErr):
		if exErr.Kind == domain.ExtractBadURL {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the short client-facing message for a classified error.
// The full error chain goes to the log only.
func messageFor(err error) string {
	var exErr *domain.ExtractionError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "document not found"
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, resilience.ErrRateLimited):
		return "model backend is rate limited, try again later"
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "model backend timed out"
	case errors.Is(err, rag.ErrModelMismatch):
		return "document was embedded with a different model, reindex it first"
	case errors.As(err, &maxErr):
		return "file exceeds the upload limit"
	case errors.As(err, &exErr):
		switch exErr.Kind {
		case domain.ExtractBadURL:
			return "not a valid YouTube URL"
		case domain.ExtractNoCaptions:
			return "no captions available for this video"
		case domain.ExtractFetch:
			return "could not fetch the video"
		default:
			return "could not extract text from the file"
		}
	case errors.Is(err, domain.ErrEmptyContent):
		return "no usable text could be extracted"
	default:
		return "internal error"
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProcessVideoRequest is the JSON body for POST /api/process-video.
type ProcessVideoRequest struct {
	URL string `json:"url"`
}

// IngestResponse is returned by POST /api/process-video.
type IngestResponse struct {
	DocumentID    string `json:"document_id"`
	Name          string `json:"name"`
	ChunksCreated int    `json:"chunks_created"`
}

// PDFIngestResponse is returned by POST /api/process-pdf.
type PDFIngestResponse struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
}

func (s *server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many ingestion requests")
		return
	}

	var req ProcessVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	start := time.Now()
	rec, err := s.ingest.IngestVideo(r.Context(), req.URL)
	if err != nil {
		s.log.Error("video ingest failed", "url", req.URL, "error", err)
		s.reg.Counter(metrics.WithLabels("doctalk_ingest_failures_total", "source", "youtube"), "Failed ingestions").Inc()
		writeError(w, statusFor(err), messageFor(err))
		return
	}
	s.reg.Counter(metrics.WithLabels("doctalk_ingest_total", "source", "youtube"), "Completed ingestions").Inc()
	s.reg.Histogram("doctalk_ingest_duration_seconds", "Ingestion duration", nil).Since(start)

	writeJSON(w, http.StatusOK, IngestResponse{
		DocumentID:    rec.DocumentID,
		Name:          rec.Name,
		ChunksCreated: rec.ChunksCreated,
	})
}

func (s *server) handleProcessPDF(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many ingestion requests")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, statusFor(err), "could not read upload")
		return
	}

	start := time.Now()
	rec, err := s.ingest.IngestPDF(r.Context(), data, header.Filename)
	if err != nil {
		s.log.Error("pdf ingest failed", "filename", header.Filename, "error", err)
		s.reg.Counter(metrics.WithLabels("doctalk_ingest_failures_total", "source", "pdf"), "Failed ingestions").Inc()
		writeError(w, statusFor(err), messageFor(err))
		return
	}
	s.reg.Counter(metrics.WithLabels("doctalk_ingest_total", "source", "pdf"), "Completed ingestions").Inc()
	s.reg.Histogram("doctalk_ingest_duration_seconds", "Ingestion duration", nil).Since(start)

	writeJSON(w, http.StatusOK, PDFIngestResponse{
		DocumentID:    rec.DocumentID,
		Filename:      rec.Name,
		ChunksCreated: rec.ChunksCreated,
	})
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocumentID == "" || req.Question == "" {
		writeError(w, http.StatusBadRequest, "document_id and question are required")
		return
	}

	// A hung generation call must not ride until the server write timeout.
	ctx := r.Context()
	if s.answerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.answerTimeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := s.rag.Ask(ctx, req.DocumentID, req.Question)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.log.Error("chat failed", "doc_id", req.DocumentID, "error", err)
		} else {
			s.log.Warn("chat rejected", "doc_id", req.DocumentID, "status", status, "error", err)
		}
		writeError(w, status, messageFor(err))
		return
	}
	s.reg.Counter("doctalk_chat_total", "Answered questions").Inc()
	s.reg.Histogram("doctalk_chat_duration_seconds", "Chat round trip duration", nil).Since(start)

	writeJSON(w, http.StatusOK, ChatResponse{Answer: answer.Text, Sources: answer.Sources})
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ingest.List(r.Context())
	if err != nil {
		s.log.Error("list documents failed", "error", err)
		writeError(w, statusFor(err), "could not list documents")
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := s.ingest.Delete(r.Context(), id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Error("delete failed", "doc_id", id, "error", err)
		writeError(w, statusFor(err), messageFor(err))
		return
	}
	// Deleting an absent document succeeds: the end state is the same.
	writeJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "deleted"})
}

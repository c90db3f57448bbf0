// Package events publishes document lifecycle notifications over NATS so
// other services can react to ingestion and deletion without polling.
package events

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/pkg/natsutil"
)

// Subjects for document lifecycle events.
const (
	SubjectIngested = "doctalk.documents.ingested"
	SubjectDeleted  = "doctalk.documents.deleted"
)

// Ingested is published after a document becomes queryable.
type Ingested struct {
	DocumentID string            `json:"document_id"`
	Type       domain.SourceType `json:"type"`
	Name       string            `json:"name"`
	ChunkCount int               `json:"chunk_count"`
}

// Deleted is published after a document is removed.
type Deleted struct {
	DocumentID string `json:"document_id"`
}

// Publisher emits lifecycle events. A nil Publisher or a Publisher without
// a connection is a no-op, so callers never have to guard event emission.
// Publish failures are logged and swallowed: events are advisory and must
// never fail an ingest or delete.
type Publisher struct {
	nc  *nats.Conn
	log *slog.Logger
}

// New creates a Publisher. nc may be nil to disable events.
func New(nc *nats.Conn, log *slog.Logger) *Publisher {
	return &Publisher{nc: nc, log: log}
}

// DocumentIngested announces a newly queryable document.
func (p *Publisher) DocumentIngested(ctx context.Context, ev Ingested) {
	p.publish(ctx, SubjectIngested, ev)
}

// DocumentDeleted announces a removed document.
func (p *Publisher) DocumentDeleted(ctx context.Context, ev Deleted) {
	p.publish(ctx, SubjectDeleted, ev)
}

func (p *Publisher) publish(ctx context.Context, subject string, ev any) {
	if p == nil || p.nc == nil {
		return
	}
	if err := natsutil.Publish(ctx, p.nc, subject, ev); err != nil && p.log != nil {
		p.log.Warn("event publish failed", "subject", subject, "error", err)
	}
}

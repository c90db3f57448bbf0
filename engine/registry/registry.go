// Package registry tracks metadata for processed documents in Neo4j. It
// owns only metadata; the semantic store owns chunk and vector storage. A
// document appears here only after all of its chunks have been durably
// stored, so anything the registry lists is fully queryable.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Registry is the Neo4j-backed document registry.
type Registry struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// New creates a Registry backed by the given driver.
func New(driver neo4j.DriverWithContext) *Registry {
	return &Registry{driver: driver}
}

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Registry) session(ctx context.Context) runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// Init ensures the uniqueness constraint on document ids exists.
func (r *Registry) Init(ctx context.Context) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		"CREATE CONSTRAINT doc_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE", nil)
	if err != nil {
		return fmt.Errorf("registry: create constraint: %w", err)
	}
	return nil
}

// Register inserts document metadata. It fails with ErrConflict if the id is
// already registered.
func (r *Registry) Register(ctx context.Context, doc domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}

	sess := r.session(ctx)
	defer sess.Close(ctx)

	existing, err := sess.Run(ctx,
		"MATCH (d:Document {id: $id}) RETURN d", map[string]any{"id": doc.ID})
	if err != nil {
		return fmt.Errorf("registry: check %s: %w", doc.ID, err)
	}
	if existing.Next(ctx) {
		return fmt.Errorf("registry: register %s: %w", doc.ID, domain.ErrConflict)
	}

	_, err = sess.Run(ctx, "CREATE (d:Document $props)", map[string]any{
		"props": map[string]any{
			"id":          doc.ID,
			"type":        string(doc.Type),
			"name":        doc.Name,
			"chunk_count": int64(doc.ChunkCount),
			"embed_model": doc.EmbedModel,
			"created_at":  doc.CreatedAt.UnixNano(),
		},
	})
	if err != nil {
		return fmt.Errorf("registry: register %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns a document's metadata, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (domain.Document, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		"MATCH (d:Document {id: $id}) RETURN d", map[string]any{"id": id})
	if err != nil {
		return domain.Document{}, fmt.Errorf("registry: get %s: %w", id, err)
	}
	if !res.Next(ctx) {
		return domain.Document{}, fmt.Errorf("registry: get %s: %w", id, domain.ErrNotFound)
	}
	return docFromRecord(res.Record())
}

// List returns all registered documents, most recently created first.
func (r *Registry) List(ctx context.Context) ([]domain.Document, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		"MATCH (d:Document) RETURN d ORDER BY d.created_at DESC", nil)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}

	var docs []domain.Document
	for res.Next(ctx) {
		doc, err := docFromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes a document's metadata. Deleting an absent id is a no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		"MATCH (d:Document {id: $id}) DETACH DELETE d", map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("registry: delete %s: %w", id, err)
	}
	return nil
}

// SetEmbedModel updates the persisted embedding-model identity after a
// document has been re-embedded.
func (r *Registry) SetEmbedModel(ctx context.Context, id, model string) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		"MATCH (d:Document {id: $id}) SET d.embed_model = $model RETURN d",
		map[string]any{"id": id, "model": model})
	if err != nil {
		return fmt.Errorf("registry: set embed model %s: %w", id, err)
	}
	if !res.Next(ctx) {
		return fmt.Errorf("registry: set embed model %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// docFromRecord converts a RETURN d record into a Document.
func docFromRecord(rec *neo4j.Record) (domain.Document, error) {
	val, ok := rec.Get("d")
	if !ok {
		return domain.Document{}, fmt.Errorf("registry: record missing node")
	}
	node, ok := val.(neo4j.Node)
	if !ok {
		return domain.Document{}, fmt.Errorf("registry: unexpected record value %T", val)
	}

	props := node.Props
	doc := domain.Document{
		ID:         propString(props, "id"),
		Type:       domain.SourceType(propString(props, "type")),
		Name:       propString(props, "name"),
		EmbedModel: propString(props, "embed_model"),
	}
	if v, ok := props["chunk_count"].(int64); ok {
		doc.ChunkCount = int(v)
	}
	if v, ok := props["created_at"].(int64); ok {
		doc.CreatedAt = time.Unix(0, v).UTC()
	}
	return doc, nil
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

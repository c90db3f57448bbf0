// Package semantic is the sole owner of all Qdrant operations. Each document
// gets its own collection (named by document id), so similarity queries are
// isolated per document by construction.
package semantic

import (
	"context"
	"fmt"
	"sort"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsAPI is the subset of the Qdrant points client the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

// collectionsAPI is the subset of the Qdrant collections client the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store persists chunks and their embeddings, one Qdrant collection per
// document id.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// NewWithClients creates a Store with explicit clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI) *Store {
	return &Store{points: points, collections: collections}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// exists reports whether a collection for the document id is present.
func (s *Store) exists(ctx context.Context, docID string) (bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, domain.NewStorageError("list collections", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == docID {
			return true, nil
		}
	}
	return false, nil
}

// CreateCollection creates the isolated namespace for a document's chunks,
// using cosine distance. It fails if the id already has a collection.
func (s *Store) CreateCollection(ctx context.Context, docID string, dims int) error {
	ok, err := s.exists(ctx, docID)
	if err != nil {
		return err
	}
	if ok {
		return domain.NewStorageError("create collection "+docID, domain.ErrConflict)
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: docID,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return domain.NewStorageError("create collection "+docID, err)
	}
	return nil
}

// DeleteCollection removes all chunks and vectors for a document. Deleting a
// collection that does not exist is a no-op.
func (s *Store) DeleteCollection(ctx context.Context, docID string) error {
	ok, err := s.exists(ctx, docID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: docID}); err != nil {
		return domain.NewStorageError("delete collection "+docID, err)
	}
	return nil
}

// pointID derives a stable point id from the document id and chunk index.
func pointID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", docID, index))).String()
}

// Add appends chunk records to the document's collection, waiting for the
// write to be durable before returning.
func (s *Store) Add(ctx context.Context, docID string, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(docID, r.Index)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"text":        {Kind: &pb.Value_StringValue{StringValue: r.Text}},
				"doc_id":      {Kind: &pb.Value_StringValue{StringValue: docID}},
				"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Index)}},
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: docID,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return domain.NewStorageError(fmt.Sprintf("upsert %d points into %s", len(records), docID), err)
	}
	return nil
}

// Query returns the k chunks in the document's collection nearest to the
// query vector, nearest first. Equal scores are broken by ascending chunk
// index so result order is reproducible.
func (s *Store) Query(ctx context.Context, docID string, vector []float32, k int) ([]ScoredChunk, error) {
	ok, err := s.exists(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("semantic: collection %s: %w", docID, domain.ErrNotFound)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: docID,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, domain.NewStorageError("search "+docID, err)
	}

	results := make([]ScoredChunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = ScoredChunk{
			Text:  r.GetPayload()["text"].GetStringValue(),
			Index: int(r.GetPayload()["chunk_index"].GetIntegerValue()),
			Score: r.GetScore(),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
	return results, nil
}

// All returns every chunk in the document's collection in sequence order.
// Used when re-embedding a document with a new model.
func (s *Store) All(ctx context.Context, docID string) ([]ChunkRecord, error) {
	ok, err := s.exists(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("semantic: collection %s: %w", docID, domain.ErrNotFound)
	}

	var out []ChunkRecord
	limit := uint32(256)
	var offset *pb.PointId
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: docID,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, domain.NewStorageError("scroll "+docID, err)
		}
		for _, p := range resp.GetResult() {
			out = append(out, ChunkRecord{
				Text:  p.GetPayload()["text"].GetStringValue(),
				Index: int(p.GetPayload()["chunk_index"].GetIntegerValue()),
			})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

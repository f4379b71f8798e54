package vectorstore

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/qdrant"
)

const providerQdrant = "qdrant"

// QdrantStore is a Store backed by a Qdrant server.
type QdrantStore struct {
	client qdrant.Client
	logger *logging.Logger
}

// NewQdrantStore wraps an established Qdrant client.
func NewQdrantStore(client qdrant.Client, logger *logging.Logger) *QdrantStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &QdrantStore{client: client, logger: logger.Named("vectorstore")}
}

// Count implements Store.
func (s *QdrantStore) Count(ctx context.Context, collection string) (n int, exists bool, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Count")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))
	defer func(start time.Time) { observe(span, providerQdrant, "count", start, err) }(time.Now())

	exists, err = s.client.CollectionExists(ctx, collection)
	if err != nil {
		return 0, false, fmt.Errorf("checking collection %q: %w", collection, err)
	}
	if !exists {
		return 0, false, nil
	}
	count, err := s.client.Count(ctx, collection)
	if err != nil {
		return 0, true, fmt.Errorf("counting collection %q: %w", collection, err)
	}
	return int(count), true, nil
}

// Recreate implements Store.
func (s *QdrantStore) Recreate(ctx context.Context, collection string, dim int) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Recreate")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("dimension", dim))
	defer func(start time.Time) { observe(span, providerQdrant, "recreate", start, err) }(time.Now())

	if dim <= 0 {
		return ErrInvalidDimension
	}
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", collection, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, collection); err != nil {
			return fmt.Errorf("deleting collection %q: %w", collection, err)
		}
	}
	if err := s.client.CreateCollection(ctx, collection, uint64(dim)); err != nil {
		return fmt.Errorf("creating collection %q: %w", collection, err)
	}
	s.logger.Info(ctx, "collection recreated",
		zap.String("collection", collection),
		zap.Int("dimension", dim),
	)
	return nil
}

// Upsert implements Store.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("record_count", len(records)))
	defer func(start time.Time) { observe(span, providerQdrant, "upsert", start, err) }(time.Now())

	points := make([]*qdrant.Point, len(records))
	for i, r := range records {
		points[i] = &qdrant.Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload}
	}
	if err := s.client.Upsert(ctx, collection, points); err != nil {
		return fmt.Errorf("upserting %d points into %q: %w", len(points), collection, err)
	}
	return nil
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, k int) (hits []Hit, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("k", k))
	defer func(start time.Time) { observe(span, providerQdrant, "search", start, err) }(time.Now())

	if k <= 0 {
		return nil, nil
	}
	points, err := s.client.Search(ctx, collection, vector, uint64(k))
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", collection, err)
	}
	hits = make([]Hit, len(points))
	for i, p := range points {
		hits[i] = Hit{ID: p.ID, Score: p.Score, Payload: p.Payload}
	}
	span.SetAttributes(attribute.Int("hit_count", len(hits)))
	return hits, nil
}

// Health implements Store.
func (s *QdrantStore) Health(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Health")
	defer span.End()
	defer func(start time.Time) { observe(span, providerQdrant, "health", start, err) }(time.Now())

	return s.client.Health(ctx)
}

// Close implements Store.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

var _ Store = (*QdrantStore)(nil)

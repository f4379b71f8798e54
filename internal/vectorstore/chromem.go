package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/logging"
)

const providerChromem = "chromem"

// textKey is the payload key chromem stores as document content.
const textKey = "text"

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string

	// Compress enables gzip compression of persisted documents.
	Compress bool
}

// ChromemStore is a Store backed by an embedded chromem-go database.
//
// Vectors are always supplied by the caller; the embedding function handed
// to chromem only guards against accidental OpenAI calls.
type ChromemStore struct {
	db     *chromem.DB
	logger *logging.Logger

	// dims remembers the dimension each collection was created with.
	mu   sync.RWMutex
	dims map[string]int
}

// NewChromemStore opens (or creates) a chromem database.
func NewChromemStore(cfg ChromemConfig, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database at %s: %w", cfg.Path, err)
		}
	}

	return &ChromemStore{
		db:     db,
		logger: logger.Named("vectorstore"),
		dims:   make(map[string]int),
	}, nil
}

func precomputedOnly(_ context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem store requires precomputed embeddings (got text of %d bytes)", len(text))
}

// Count implements Store.
func (s *ChromemStore) Count(ctx context.Context, collection string) (n int, exists bool, err error) {
	_, span := tracer.Start(ctx, "ChromemStore.Count")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))
	defer func(start time.Time) { observe(span, providerChromem, "count", start, err) }(time.Now())

	coll := s.db.GetCollection(collection, precomputedOnly)
	if coll == nil {
		return 0, false, nil
	}
	return coll.Count(), true, nil
}

// Recreate implements Store.
func (s *ChromemStore) Recreate(ctx context.Context, collection string, dim int) (err error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Recreate")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("dimension", dim))
	defer func(start time.Time) { observe(span, providerChromem, "recreate", start, err) }(time.Now())

	if dim <= 0 {
		return ErrInvalidDimension
	}
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("deleting collection %q: %w", collection, err)
	}
	if _, err := s.db.CreateCollection(collection, nil, precomputedOnly); err != nil {
		return fmt.Errorf("creating collection %q: %w", collection, err)
	}

	s.mu.Lock()
	s.dims[collection] = dim
	s.mu.Unlock()

	s.logger.Info(ctx, "collection recreated",
		zap.String("collection", collection),
		zap.Int("dimension", dim),
	)
	return nil
}

// Upsert implements Store. The "text" payload becomes document content and
// the remaining keys are stored as string metadata.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("record_count", len(records)))
	defer func(start time.Time) { observe(span, providerChromem, "upsert", start, err) }(time.Now())

	coll, err := s.db.GetOrCreateCollection(collection, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("opening collection %q: %w", collection, err)
	}

	s.mu.RLock()
	dim := s.dims[collection]
	s.mu.RUnlock()

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if dim > 0 && len(r.Vector) != dim {
			return fmt.Errorf("record %s: %w: got %d, want %d", r.ID, ErrInvalidDimension, len(r.Vector), dim)
		}
		doc := chromem.Document{
			ID:        r.ID,
			Embedding: r.Vector,
			Metadata:  make(map[string]string, len(r.Payload)),
		}
		for k, v := range r.Payload {
			if k == textKey {
				if text, ok := v.(string); ok {
					doc.Content = text
					continue
				}
			}
			doc.Metadata[k] = stringify(v)
		}
		docs[i] = doc
	}

	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding %d documents to %q: %w", len(docs), collection, err)
	}
	return nil
}

// Search implements Store.
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, k int) (hits []Hit, err error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("k", k))
	defer func(start time.Time) { observe(span, providerChromem, "search", start, err) }(time.Now())

	coll := s.db.GetCollection(collection, precomputedOnly)
	if coll == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem rejects n greater than the collection size.
	if n := coll.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", collection, err)
	}

	hits = make([]Hit, len(results))
	for i, r := range results {
		payload := make(map[string]any, len(r.Metadata)+1)
		for mk, mv := range r.Metadata {
			payload[mk] = mv
		}
		payload[textKey] = r.Content
		hits[i] = Hit{ID: r.ID, Score: r.Similarity, Payload: payload}
	}
	span.SetAttributes(attribute.Int("hit_count", len(hits)))
	return hits, nil
}

// Health implements Store. The database is in-process.
func (s *ChromemStore) Health(context.Context) error {
	return nil
}

// Close implements Store. Persistent databases write on every change.
func (s *ChromemStore) Close() error {
	return nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

var _ Store = (*ChromemStore)(nil)

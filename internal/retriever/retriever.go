package retriever

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/vectorstore"
)

var (
	// ErrInvalidTopK is returned for a non-positive result count.
	ErrInvalidTopK = errors.New("top k must be positive")

	// ErrRetrieval wraps embedding and search failures.
	ErrRetrieval = errors.New("retrieval failed")
)

// Retriever searches the reference collection.
type Retriever struct {
	store      vectorstore.Store
	embedder   llm.Embedder
	collection string
	logger     *logging.Logger
}

// New creates a Retriever over collection.
func New(store vectorstore.Store, embedder llm.Embedder, collection string, logger *logging.Logger) *Retriever {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Retriever{
		store:      store,
		embedder:   embedder,
		collection: collection,
		logger:     logger.Named("retriever"),
	}
}

// Search returns up to k documents most similar to text, best first.
// Points without a string "text" payload are skipped.
func (r *Retriever) Search(ctx context.Context, text string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, k)
	}

	vec, err := r.embedder.Embed(ctx, text, llm.EmbedOptions{TaskType: llm.TaskRetrievalQuery})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrieval, err)
	}

	hits, err := r.store.Search(ctx, r.collection, vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		if len(docs) == k {
			break
		}
		body, ok := h.Payload[keyText].(string)
		if !ok {
			r.logger.Warn(ctx, "skipping point without text payload", zap.String("point_id", h.ID))
			continue
		}
		doc := Document{ID: h.ID, Text: body, Score: h.Score}
		doc.Filename, _ = h.Payload[keyFilename].(string)
		doc.Metadata, _ = h.Payload[keyMetadata].(string)
		doc.Title = titleFromMetadata(doc.Metadata)
		if isURL(doc.Filename) {
			doc.URL = doc.Filename
		}
		docs = append(docs, doc)
	}

	r.logger.Debug(ctx, "retrieved documents",
		zap.Int("requested", k),
		zap.Int("hits", len(hits)),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}

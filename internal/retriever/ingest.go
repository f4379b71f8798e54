package retriever

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/vectorstore"
)

// pointNamespace scopes the UUIDv5 point ids.
var pointNamespace = uuid.MustParse("8c3f6a1e-4d2b-5e7f-9a0c-1b2d3e4f5a6b")

var ingestedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "ingest",
		Name:      "chunks_total",
		Help:      "Corpus chunks processed by outcome",
	},
	[]string{"outcome"},
)

// Stats summarizes one Generate run.
type Stats struct {
	Skipped   bool // collection already populated
	Rows      int
	Chunks    int
	Upserted  int
	Failed    int
	TooLarge  int
	EmptyRows int
}

// Ingester builds the reference collection.
type Ingester struct {
	store    vectorstore.Store
	embedder llm.Embedder
	cfg      config.RetrieverConfig
	splitter textsplitter.TextSplitter
	logger   *logging.Logger
}

// NewIngester creates an Ingester.
func NewIngester(store vectorstore.Store, embedder llm.Embedder, cfg config.RetrieverConfig, logger *logging.Logger) *Ingester {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	var splitter textsplitter.TextSplitter
	if cfg.ChunkSize > 0 {
		splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		)
	}
	return &Ingester{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		splitter: splitter,
		logger:   logger.Named("ingest"),
	}
}

// Generate populates the collection from rows unless it already holds more
// than MinPoints points. Rows with empty content and chunks that fail to
// embed are logged and skipped.
func (in *Ingester) Generate(ctx context.Context, rows []Row) (Stats, error) {
	var stats Stats
	coll := in.cfg.CollectionName

	n, exists, err := in.store.Count(ctx, coll)
	if err != nil {
		return stats, fmt.Errorf("inspecting collection %q: %w", coll, err)
	}
	if exists && n > in.cfg.MinPoints {
		in.logger.Info(ctx, "collection already exists",
			zap.String("collection", coll),
			zap.Int("points", n),
		)
		stats.Skipped = true
		return stats, nil
	}

	if err := in.store.Recreate(ctx, coll, in.cfg.VectorSize); err != nil {
		return stats, err
	}

	if in.cfg.MaxDocuments > 0 && len(rows) > in.cfg.MaxDocuments {
		rows = rows[:in.cfg.MaxDocuments]
	}

	batch := make([]vectorstore.Record, 0, in.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := in.store.Upsert(ctx, coll, batch); err != nil {
			return err
		}
		stats.Upserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for idx, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Rows++
		if strings.TrimSpace(row.Content) == "" {
			stats.EmptyRows++
			ingestedTotal.WithLabelValues("empty").Inc()
			in.logger.Warn(ctx, "skipping document with missing content", zap.String("filename", row.Filename))
			continue
		}

		for i, chunk := range in.chunks(ctx, row) {
			stats.Chunks++
			vec, err := in.embedder.Embed(ctx, chunk, llm.EmbedOptions{
				TaskType: llm.TaskRetrievalDocument,
				Title:    row.Filename,
			})
			if err != nil {
				stats.Failed++
				if errors.Is(err, llm.ErrPayloadTooLarge) {
					stats.TooLarge++
					ingestedTotal.WithLabelValues("too_large").Inc()
					in.logger.Warn(ctx, "skipping document due to size limit", zap.String("filename", row.Filename))
				} else {
					ingestedTotal.WithLabelValues("error").Inc()
					in.logger.Error(ctx, "error embedding document", zap.String("filename", row.Filename), zap.Error(err))
				}
				continue
			}
			ingestedTotal.WithLabelValues("ok").Inc()

			batch = append(batch, vectorstore.Record{
				ID:     PointID(idx, row.Filename, i),
				Vector: vec,
				Payload: map[string]any{
					keyFilename: row.Filename,
					keyMetadata: row.Metadata,
					keyText:     chunk,
					keyChunk:    i,
				},
			})
			if len(batch) >= in.cfg.BatchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	if stats.Upserted == 0 {
		in.logger.Warn(ctx, "no valid documents found to insert", zap.String("collection", coll))
	} else {
		in.logger.Info(ctx, "collection generated",
			zap.String("collection", coll),
			zap.Int("points", stats.Upserted),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

// chunks splits long content. A splitter error keeps the document whole
// and lets the provider decide whether it fits.
func (in *Ingester) chunks(ctx context.Context, row Row) []string {
	if in.splitter == nil || len([]rune(row.Content)) <= in.cfg.ChunkSize {
		return []string{row.Content}
	}
	parts, err := in.splitter.SplitText(row.Content)
	if err != nil || len(parts) == 0 {
		in.logger.Warn(ctx, "splitting document failed", zap.String("filename", row.Filename), zap.Error(err))
		return []string{row.Content}
	}
	return parts
}

// PointID derives a stable point id from the row position, filename and
// chunk index. Rows sharing a filename, or lacking one, stay distinct.
func PointID(row int, filename string, chunk int) string {
	name := strconv.Itoa(row) + "#" + filename + "#" + strconv.Itoa(chunk)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

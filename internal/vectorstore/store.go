// Package vectorstore stores and searches embedded reference chunks.
//
// Two providers are available: a Qdrant server for production and an
// embedded chromem-go database for local runs and tests. Both speak in
// Records and Hits so the retriever does not know which one it talks to.
package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInvalidDimension is returned when a collection is created with a
	// non-positive vector size.
	ErrInvalidDimension = errors.New("vector dimension must be positive")

	// ErrCollectionNotFound is returned when searching a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrUnknownProvider is returned by NewStore for an unsupported provider.
	ErrUnknownProvider = errors.New("unknown vector store provider")
)

// Record is one chunk to upsert.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is one search result. Payload values keep their stored types.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Store is a vector collection backend.
type Store interface {
	// Count returns the number of points and whether the collection exists.
	Count(ctx context.Context, collection string) (int, bool, error)

	// Recreate drops the collection if present and creates it empty.
	Recreate(ctx context.Context, collection string, dim int) error

	Upsert(ctx context.Context, collection string, records []Record) error

	// Search returns up to k hits ordered by descending similarity.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	Close() error
}

var tracer = otel.Tracer("factcheckd.vectorstore")

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "factcheckd",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Vector store operations by provider, operation and outcome",
		},
		[]string{"provider", "op", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "factcheckd",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)
)

// observe records the outcome of one operation on span and metrics.
func observe(span trace.Span, provider, op string, start time.Time, err error) {
	operationDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	operationsTotal.WithLabelValues(provider, op, outcome).Inc()
}

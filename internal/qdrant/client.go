// Package qdrant wraps the official Qdrant gRPC client with per-request
// timeouts and retries on transient errors.
package qdrant

import (
	"context"
)

// Client is the subset of Qdrant the reference collection needs.
type Client interface {
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context, name string) (uint64, error)

	Upsert(ctx context.Context, collection string, points []*Point) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]*ScoredPoint, error)

	Health(ctx context.Context) error
	Close() error
}

// Point is a vector with its payload. IDs are UUID strings.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point
	Score float32
}

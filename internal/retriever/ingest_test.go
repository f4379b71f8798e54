package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/vectorstore"
)

func ingestConfig() config.RetrieverConfig {
	return config.RetrieverConfig{
		CollectionName: "refs",
		VectorSize:     testDims,
		MinPoints:      2,
		BatchSize:      2,
		ChunkSize:      8000,
		ChunkOverlap:   200,
	}
}

func newStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	s, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)
	return s
}

func TestGenerate_SkipsFailuresAndBatches(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	tl := logging.NewTestLogger()
	emb := &llm.Fake{Dims: testDims, EmbedErr: map[string]error{
		"huge":   fmt.Errorf("gemini embed: %w", llm.ErrPayloadTooLarge),
		"broken": errors.New("internal error"),
	}}
	in := NewIngester(store, emb, ingestConfig(), tl.Logger)

	rows := []Row{
		{Filename: "a.txt", Content: "vitamin c"},
		{Filename: "b.txt", Content: ""},
		{Filename: "c.txt", Content: "huge abstract"},
		{Filename: "d.txt", Content: "broken abstract"},
		{Filename: "e.txt", Content: "zinc"},
		{Filename: "f.txt", Content: "sleep"},
	}
	stats, err := in.Generate(ctx, rows)
	require.NoError(t, err)

	assert.False(t, stats.Skipped)
	assert.Equal(t, 6, stats.Rows)
	assert.Equal(t, 1, stats.EmptyRows)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.TooLarge)
	assert.Equal(t, 3, stats.Upserted)

	n, _, err := store.Count(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tl.AssertLogged(t, zapcore.WarnLevel, "size limit")
	tl.AssertLogged(t, zapcore.ErrorLevel, "error embedding document")

	for _, opts := range emb.Embeds {
		assert.Equal(t, llm.TaskRetrievalDocument, opts.TaskType)
	}
	assert.Equal(t, "a.txt", emb.Embeds[0].Title)
}

func TestGenerate_SkipsPopulatedCollection(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	emb := &llm.Fake{Dims: testDims}
	in := NewIngester(store, emb, ingestConfig(), nil)

	rows := []Row{{Filename: "a", Content: "a"}, {Filename: "b", Content: "b"}, {Filename: "c", Content: "c"}}
	_, err := in.Generate(ctx, rows)
	require.NoError(t, err)

	emb.Embeds = nil
	stats, err := in.Generate(ctx, rows)
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Empty(t, emb.Embeds)
}

func TestGenerate_RebuildsSmallCollection(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	in := NewIngester(store, &llm.Fake{Dims: testDims}, ingestConfig(), nil)

	_, err := in.Generate(ctx, []Row{{Filename: "a", Content: "a"}})
	require.NoError(t, err)

	stats, err := in.Generate(ctx, []Row{{Filename: "b", Content: "b"}, {Filename: "c", Content: "c"}})
	require.NoError(t, err)
	assert.False(t, stats.Skipped)

	n, _, err := store.Count(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGenerate_MaxDocuments(t *testing.T) {
	cfg := ingestConfig()
	cfg.MaxDocuments = 2
	in := NewIngester(newStore(t), &llm.Fake{Dims: testDims}, cfg, nil)

	stats, err := in.Generate(context.Background(), []Row{
		{Filename: "a", Content: "a"}, {Filename: "b", Content: "b"}, {Filename: "c", Content: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rows)
}

func TestGenerate_ChunksLongDocuments(t *testing.T) {
	cfg := ingestConfig()
	cfg.ChunkSize = 40
	cfg.ChunkOverlap = 10
	emb := &llm.Fake{Dims: testDims}
	in := NewIngester(newStore(t), emb, cfg, nil)

	long := strings.Repeat("masks reduce transmission in hospitals. ", 6)
	stats, err := in.Generate(context.Background(), []Row{{Filename: "long.txt", Content: long}})
	require.NoError(t, err)
	assert.Greater(t, stats.Chunks, 1)
	assert.Equal(t, stats.Chunks, stats.Upserted)
}

func TestGenerate_KeepsRowsWithSharedFilenames(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	in := NewIngester(store, &llm.Fake{Dims: testDims}, ingestConfig(), nil)

	stats, err := in.Generate(ctx, []Row{
		{Filename: "", Content: "masks"},
		{Filename: "", Content: "zinc"},
		{Filename: "https://pubmed.example/1", Content: "vitamin d"},
		{Filename: "https://pubmed.example/1", Content: "vitamin d erratum"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 4, stats.Upserted)

	n, _, err := store.Count(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, n)
}

func TestPointID(t *testing.T) {
	assert.Equal(t, PointID(0, "a.txt", 0), PointID(0, "a.txt", 0))
	assert.NotEqual(t, PointID(0, "a.txt", 0), PointID(0, "a.txt", 1))
	assert.NotEqual(t, PointID(0, "a.txt", 0), PointID(1, "a.txt", 0))
	assert.NotEqual(t, PointID(0, "", 0), PointID(1, "", 0))
	assert.Len(t, PointID(0, "a.txt", 0), 36)
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/retriever"
	"github.com/fyrsmithlabs/factcheckd/internal/router"
	"github.com/fyrsmithlabs/factcheckd/internal/vectorstore"
)

const verdictReply = "```json\n" + `{"confirming": ["vitamin-c.pdf"], "refuting": [], "response": "Partly supported.", "correctness_score": 60,}` + "\n```"

func testConfig() *config.Config {
	cfg := &config.Config{
		RouterModel:    config.ModelConfig{ID: "gemini-1.5-flash", MaxTokens: 50},
		ResponderModel: config.ModelConfig{ID: "gemini-1.5-flash", MaxTokens: 1024},
	}
	cfg.RetrieverConfig = config.RetrieverConfig{
		CollectionName: "pubmed",
		VectorSize:     64,
		TopK:           2,
		MinPoints:      0,
		BatchSize:      2,
	}
	return cfg
}

func TestNewRegistry_RequiresCollaborators(t *testing.T) {
	_, err := NewRegistry(testConfig(), Options{}, nil)
	assert.Error(t, err)
}

func TestNewRegistry_EndToEnd(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)

	gen := (&llm.Fake{}).
		Match("classify it into EXACTLY ONE category", `{"classification": "FACT_CHECK"}`).
		Match("Context documents:", verdictReply)

	reg, err := NewRegistry(testConfig(), Options{Generator: gen, Embedder: gen, VectorStore: store}, nil)
	require.NoError(t, err)
	defer reg.Close()

	assert.Same(t, store, reg.VectorStore())
	assert.Equal(t, []string{"gemini-1.5-flash"}, reg.Chat().Models())

	stats, err := reg.Ingester().Generate(context.Background(), []retriever.Row{
		{Filename: "vitamin-c.pdf", Metadata: "title=Vitamin C and colds", Content: "Vitamin C supplementation shortens the duration of colds."},
		{Filename: "zinc.pdf", Content: "Zinc lozenges reduce cold symptoms."},
		{Filename: "empty.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Upserted)
	assert.Equal(t, 1, stats.EmptyRows)

	docs, err := reg.Retriever().Search(context.Background(), "does vitamin C shorten colds", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "vitamin-c.pdf", docs[0].Filename)

	res, err := reg.Chat().Default().Check(context.Background(), "Vitamin C shortens colds")
	require.NoError(t, err)
	assert.Equal(t, router.FactCheck, res.Classification)
	require.NotNil(t, res.ResponseJSON)
	assert.Equal(t, []string{"vitamin-c.pdf"}, res.ResponseJSON.Confirming)
	require.NotNil(t, res.ResponseJSON.CorrectnessScore)
	assert.Equal(t, 60, *res.ResponseJSON.CorrectnessScore)
}

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
)

func TestFromPrompt_CarriesFormat(t *testing.T) {
	p, err := prompts.MustNew().Format(prompts.RAGRouter, map[string]string{"user_input": "x"})
	require.NoError(t, err)

	req := FromPrompt("gemini-1.5-flash", p)
	assert.Equal(t, "gemini-1.5-flash", req.Model)
	assert.Equal(t, "application/json", req.ResponseMIMEType)
	assert.Equal(t, p.Schema, req.Schema)
}

func TestToSchema(t *testing.T) {
	assert.Nil(t, toSchema(nil))

	s := toSchema(&prompts.EnumSchema{Property: "classification", Values: []string{"FACT_CHECK", "NOT_RELEVANT"}})
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"classification"}, s.Required)
	assert.Equal(t, []string{"FACT_CHECK", "NOT_RELEVANT"}, s.Properties["classification"].Enum)
}

func TestClassify(t *testing.T) {
	err := classify(errors.New("Error 400, Message: Request payload size exceeds the limit: 36000 bytes."))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	err = classify(errors.New("Error 503, Message: overloaded"))
	assert.NotErrorIs(t, err, ErrPayloadTooLarge)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{}, logging.NewNop())
	assert.Error(t, err)
}

func TestFake(t *testing.T) {
	f := (&Fake{Default: "fallback"}).Match("capital", `{"classification":"NOT_RELEVANT"}`)
	ctx := context.Background()

	out, err := f.Generate(ctx, Request{Prompt: "What is the capital of France?"})
	require.NoError(t, err)
	assert.Equal(t, `{"classification":"NOT_RELEVANT"}`, out)

	out, err = f.Generate(ctx, Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
	assert.Equal(t, 2, f.Calls())
}

func TestHashEmbedding_SimilarTexts(t *testing.T) {
	a := HashEmbedding("parkinson disease anxiety", 64)
	b := HashEmbedding("anxiety in parkinson disease", 64)
	c := HashEmbedding("capital of france", 64)

	dot := func(x, y []float32) float32 {
		var s float32
		for i := range x {
			s += x[i] * y[i]
		}
		return s
	}
	assert.Greater(t, dot(a, b), dot(a, c))
	assert.InDelta(t, 1.0, dot(a, a), 1e-5)
}

// Package llm talks to the hosted generation and embedding models.
package llm

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
)

// Embedding task types understood by the provider.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrPayloadTooLarge marks inputs the provider refused for size.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Request is a single generation call.
type Request struct {
	Model       string
	Prompt      string
	System      string
	Temperature *float32
	MaxTokens   int32

	// ResponseMIMEType and Schema constrain the reply format.
	ResponseMIMEType string
	Schema           *prompts.EnumSchema
}

// FromPrompt builds a request carrying the prompt's reply format.
func FromPrompt(model string, p prompts.Prompt) Request {
	return Request{
		Model:            model,
		Prompt:           p.Text,
		ResponseMIMEType: p.ResponseMIMEType,
		Schema:           p.Schema,
	}
}

// EmbedOptions qualifies an embedding call.
type EmbedOptions struct {
	TaskType string
	Title    string
}

// Generator produces text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Embedder produces vectors.
type Embedder interface {
	Embed(ctx context.Context, text string, opts EmbedOptions) ([]float32, error)
}

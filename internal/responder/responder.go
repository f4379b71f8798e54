// Package responder asks the responder model for a verdict on a claim
// given retrieved reference documents.
package responder

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
	"github.com/fyrsmithlabs/factcheckd/internal/retriever"
)

// Responder produces raw verdict text. Parsing is left to the caller.
type Responder struct {
	gen     llm.Generator
	prompts *prompts.Library
	model   config.ModelConfig
	system  string
	logger  *logging.Logger
}

// New creates a Responder for model.
func New(gen llm.Generator, lib *prompts.Library, model config.ModelConfig, logger *logging.Logger) (*Responder, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	sys, err := lib.Format(prompts.ResponderInstruction, nil)
	if err != nil {
		return nil, fmt.Errorf("loading responder instruction: %w", err)
	}
	return &Responder{
		gen:     gen,
		prompts: lib,
		model:   model,
		system:  sys.Text,
		logger:  logger.Named("responder"),
	}, nil
}

// Model returns the model id answering requests.
func (r *Responder) Model() string {
	return r.model.ID
}

// Respond returns the model's reply for claim judged against docs.
func (r *Responder) Respond(ctx context.Context, claim string, docs []retriever.Document) (string, error) {
	p, err := r.prompts.Format(prompts.RAGResponder, map[string]string{
		"claim":     claim,
		"documents": FormatDocuments(docs),
	})
	if err != nil {
		return "", err
	}

	req := llm.FromPrompt(r.model.ID, p)
	req.System = r.system
	req.Temperature = r.model.Temperature
	req.MaxTokens = r.model.MaxTokens

	reply, err := r.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}
	r.logger.Debug(ctx, "response generated",
		zap.Int("documents", len(docs)),
		zap.Int("reply_bytes", len(reply)),
	)
	return reply, nil
}

// FormatDocuments renders docs as a numbered context block.
func FormatDocuments(docs []retriever.Document) string {
	var b strings.Builder
	for i, d := range docs {
		name := d.Filename
		if name == "" {
			name = d.ID
		}
		b.WriteString("[Document ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(name)
		b.WriteByte('\n')
		if d.Metadata != "" {
			b.WriteString("Metadata: ")
			b.WriteString(d.Metadata)
			b.WriteByte('\n')
		}
		b.WriteString("Similarity: ")
		b.WriteString(strconv.FormatFloat(float64(d.Score), 'f', 3, 32))
		b.WriteByte('\n')
		b.WriteString(d.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/factcheckd/internal/chat"
	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
	"github.com/fyrsmithlabs/factcheckd/internal/retriever"
	"github.com/fyrsmithlabs/factcheckd/internal/vectorstore"
)

// Registry provides access to the wired pipeline.
type Registry interface {
	Chat() *chat.Registry
	Retriever() *retriever.Retriever
	Ingester() *retriever.Ingester
	VectorStore() vectorstore.Store
	Close() error
}

// Options supplies the external collaborators.
type Options struct {
	Generator   llm.Generator
	Embedder    llm.Embedder
	VectorStore vectorstore.Store
	// Prompts defaults to the built-in library.
	Prompts *prompts.Library
}

type registry struct {
	chat        *chat.Registry
	retriever   *retriever.Retriever
	ingester    *retriever.Ingester
	vectorStore vectorstore.Store
}

// NewRegistry assembles the pipeline on top of opts.
func NewRegistry(cfg *config.Config, opts Options, logger *logging.Logger) (Registry, error) {
	if opts.Generator == nil || opts.Embedder == nil || opts.VectorStore == nil {
		return nil, errors.New("generator, embedder and vector store are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lib := opts.Prompts
	if lib == nil {
		var err error
		if lib, err = prompts.New(); err != nil {
			return nil, fmt.Errorf("loading prompts: %w", err)
		}
	}

	rc := cfg.RetrieverConfig
	ret := retriever.New(opts.VectorStore, opts.Embedder, rc.CollectionName, logger)
	reg, err := chat.BuildRegistry(cfg, opts.Generator, ret, lib, logger)
	if err != nil {
		return nil, fmt.Errorf("building chat services: %w", err)
	}

	return &registry{
		chat:        reg,
		retriever:   ret,
		ingester:    retriever.NewIngester(opts.VectorStore, opts.Embedder, rc, logger),
		vectorStore: opts.VectorStore,
	}, nil
}

// Build connects to Gemini and the configured vector store and wires the
// pipeline. The caller closes the returned registry.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (Registry, error) {
	embeddingModel := cfg.RetrieverConfig.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = cfg.Gemini.EmbeddingModel
	}
	gemini, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:            cfg.Gemini.APIKey.Value(),
		EmbeddingModel:    embeddingModel,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
		Burst:             cfg.Gemini.Burst,
		Timeout:           cfg.Gemini.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, err := vectorstore.NewStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(cfg, Options{
		Generator:   gemini,
		Embedder:    gemini,
		VectorStore: store,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return reg, nil
}

func (r *registry) Chat() *chat.Registry            { return r.chat }
func (r *registry) Retriever() *retriever.Retriever { return r.retriever }
func (r *registry) Ingester() *retriever.Ingester   { return r.ingester }
func (r *registry) VectorStore() vectorstore.Store  { return r.vectorStore }
func (r *registry) Close() error                    { return r.vectorStore.Close() }

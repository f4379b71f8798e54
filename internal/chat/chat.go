// Package chat orchestrates a fact-check: routing, retrieval, response
// generation and verdict parsing.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
	"github.com/fyrsmithlabs/factcheckd/internal/retriever"
	"github.com/fyrsmithlabs/factcheckd/internal/router"
	"github.com/fyrsmithlabs/factcheckd/internal/verdict"
)

// NotApplicable is the response for messages that are not checkable claims.
const NotApplicable = "N/A"

var (
	// ErrEmptyMessage is returned for blank messages.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrMessageTooLong is returned when a message exceeds the limit.
	ErrMessageTooLong = errors.New("message too long")
)

// Result is the outcome of one check.
type Result struct {
	Classification router.Label     `json:"classification"`
	Response       string           `json:"response"`
	ResponseJSON   *verdict.Verdict `json:"response_json,omitempty"`
}

// Classifier decides routes and query classes.
type Classifier interface {
	Route(ctx context.Context, msg string) router.Label
	Classify(ctx context.Context, msg string) router.Label
}

// Searcher retrieves reference documents.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]retriever.Document, error)
}

// Answerer produces raw verdict text.
type Answerer interface {
	Respond(ctx context.Context, claim string, docs []retriever.Document) (string, error)
	Model() string
}

// Options tunes a Service.
type Options struct {
	TopK             int
	SemanticRouting  bool
	MaxMessageLength int
	// Cache is shared between services; nil disables caching.
	Cache *Cache
	// Timeout bounds a shared pipeline run (0 = none).
	Timeout time.Duration
}

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "chat",
		Name:      "checks_total",
		Help:      "Completed checks by model and classification.",
	}, []string{"model", "classification"})

	checkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "chat",
		Name:      "check_errors_total",
		Help:      "Failed checks by model.",
	}, []string{"model"})

	checkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "factcheckd",
		Subsystem: "chat",
		Name:      "check_duration_seconds",
		Help:      "End-to-end check latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"model"})
)

// Service runs the pipeline for one model.
type Service struct {
	router    Classifier
	retriever Searcher
	responder Answerer
	gen       llm.Generator
	prompts   *prompts.Library
	model     config.ModelConfig
	opts      Options
	group     singleflight.Group
	logger    *logging.Logger
}

// NewService wires a Service. gen and model answer the attestation and
// conversational routes.
func NewService(cls Classifier, ret Searcher, resp Answerer, gen llm.Generator, lib *prompts.Library, model config.ModelConfig, opts Options, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Service{
		router:    cls,
		retriever: ret,
		responder: resp,
		gen:       gen,
		prompts:   lib,
		model:     model,
		opts:      opts,
		logger:    logger.Named("chat"),
	}
}

// Model returns the id of the model answering checks.
func (s *Service) Model() string {
	return s.responder.Model()
}

// Check runs msg through the pipeline.
func (s *Service) Check(ctx context.Context, msg string) (*Result, error) {
	model := s.Model()
	ctx = logging.WithModel(ctx, model)
	start := time.Now()
	defer func() { checkDuration.WithLabelValues(model).Observe(time.Since(start).Seconds()) }()

	if err := s.validate(msg); err != nil {
		return nil, err
	}

	res, err := s.dispatch(ctx, msg)
	if err != nil {
		checkErrors.WithLabelValues(model).Inc()
		s.logger.Error(ctx, "check failed", zap.Error(err))
		return nil, err
	}
	checksTotal.WithLabelValues(model, string(res.Classification)).Inc()
	return res, nil
}

func (s *Service) validate(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return ErrEmptyMessage
	}
	if limit := s.opts.MaxMessageLength; limit > 0 {
		if n := utf8.RuneCountInString(msg); n > limit {
			return fmt.Errorf("%w: %d characters (max %d)", ErrMessageTooLong, n, limit)
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, msg string) (*Result, error) {
	if !s.opts.SemanticRouting {
		return s.factCheck(ctx, msg)
	}
	switch route := s.router.Route(ctx, msg); route {
	case router.RequestAttestation:
		return s.generate(ctx, route, prompts.RequestAttestation, nil)
	case router.Conversational:
		return s.generate(ctx, route, prompts.Conversational, map[string]string{"user_input": msg})
	default:
		return s.factCheck(ctx, msg)
	}
}

// factCheck serves cached verdicts and coalesces identical in-flight
// claims into one pipeline run.
func (s *Service) factCheck(ctx context.Context, msg string) (*Result, error) {
	key := cacheKey(s.Model(), msg)
	if res, ok := s.opts.Cache.get(key); ok {
		s.logger.Debug(ctx, "verdict served from cache")
		return res, nil
	}

	// The shared run outlives any single caller; each caller still
	// honours its own cancellation.
	ch := s.group.DoChan(key, func() (any, error) {
		if res, ok := s.opts.Cache.get(key); ok {
			return res, nil
		}
		runCtx := context.WithoutCancel(ctx)
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, s.opts.Timeout)
			defer cancel()
		}
		res, err := s.rag(runCtx, msg)
		if err == nil && res.Classification == router.FactCheck {
			s.opts.Cache.set(key, res)
		}
		return res, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			cacheEvents.WithLabelValues("shared").Inc()
		}
		return r.Val.(*Result), nil
	}
}

func (s *Service) rag(ctx context.Context, msg string) (*Result, error) {
	class := s.router.Classify(ctx, msg)
	if class != router.FactCheck {
		return notRelevant(), nil
	}

	docs, err := s.retriever.Search(ctx, msg, s.opts.TopK)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		s.logger.Info(ctx, "no reference documents, treating claim as not relevant")
		return notRelevant(), nil
	}

	raw, err := s.responder.Respond(ctx, msg, docs)
	if err != nil {
		return nil, err
	}
	v, err := verdict.Parse(raw)
	if err != nil {
		s.logger.Warn(ctx, "unparseable verdict", zap.String("reply", raw))
		return nil, err
	}

	s.logger.Info(ctx, "claim checked",
		zap.Int("documents", len(docs)),
		zap.Intp("correctness_score", v.CorrectnessScore),
	)
	return &Result{Classification: router.FactCheck, Response: raw, ResponseJSON: v}, nil
}

func (s *Service) generate(ctx context.Context, route router.Label, name prompts.Name, vars map[string]string) (*Result, error) {
	p, err := s.prompts.Format(name, vars)
	if err != nil {
		return nil, err
	}
	req := llm.FromPrompt(s.model.ID, p)
	req.Temperature = s.model.Temperature
	req.MaxTokens = s.model.MaxTokens

	text, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s reply: %w", strings.ToLower(string(route)), err)
	}
	return &Result{Classification: route, Response: text}, nil
}

func notRelevant() *Result {
	return &Result{Classification: router.NotRelevant, Response: NotApplicable}
}

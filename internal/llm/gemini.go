package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Provider calls by kind, model and outcome.",
	}, []string{"kind", "model", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "factcheckd",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Provider call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"kind", "model"})
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey            string
	EmbeddingModel    string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Gemini implements Generator and Embedder. All calls share one token
// bucket.
type Gemini struct {
	client         *genai.Client
	embeddingModel string
	limiter        *rate.Limiter
	timeout        time.Duration
	logger         *logging.Logger
}

// NewGemini creates a client for the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *logging.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client:         client,
		embeddingModel: cfg.EmbeddingModel,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		timeout:        cfg.Timeout,
		logger:         logger.Named("gemini"),
	}, nil
}

func (g *Gemini) call(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}
	if g.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

// Generate sends one prompt and returns the reply text.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel, err := g.call(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	gc := &genai.GenerateContentConfig{
		Temperature:      req.Temperature,
		MaxOutputTokens:  req.MaxTokens,
		ResponseMIMEType: req.ResponseMIMEType,
		ResponseSchema:   toSchema(req.Schema),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), gc)
	requestDuration.WithLabelValues("generate", req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("generate", req.Model, "error").Inc()
		return "", fmt.Errorf("gemini generate (%s): %w", req.Model, classify(err))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		requestsTotal.WithLabelValues("generate", req.Model, "empty").Inc()
		return "", fmt.Errorf("gemini generate (%s): %w", req.Model, ErrEmptyResponse)
	}
	requestsTotal.WithLabelValues("generate", req.Model, "ok").Inc()
	g.logger.Trace(ctx, "model reply", zap.String("model", req.Model), zap.String("text", text))
	return text, nil
}

// Embed returns the embedding of text.
func (g *Gemini) Embed(ctx context.Context, text string, opts EmbedOptions) ([]float32, error) {
	ctx, cancel, err := g.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	result, err := g.client.Models.EmbedContent(ctx,
		g.embeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType: opts.TaskType,
			Title:    opts.Title,
		},
	)
	requestDuration.WithLabelValues("embed", g.embeddingModel).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("embed", g.embeddingModel, "error").Inc()
		return nil, fmt.Errorf("gemini embed: %w", classify(err))
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		requestsTotal.WithLabelValues("embed", g.embeddingModel, "empty").Inc()
		return nil, fmt.Errorf("gemini embed: %w", ErrEmptyResponse)
	}
	requestsTotal.WithLabelValues("embed", g.embeddingModel, "ok").Inc()
	return result.Embeddings[0].Values, nil
}

// toSchema maps an enum constraint onto a genai object schema.
func toSchema(s *prompts.EnumSchema) *genai.Schema {
	if s == nil {
		return nil
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			s.Property: {Type: genai.TypeString, Enum: s.Values},
		},
		Required: []string{s.Property},
	}
}

// classify tags size rejections so callers can skip the input.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "payload size") || strings.Contains(msg, "too large") {
		return fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
	}
	return err
}

// Package router decides what to do with an incoming message: which
// pipeline handles it and whether it is a checkable biomedical claim.
//
// Both decisions are closed enumerations. Any provider failure or
// unparseable reply falls back to a default label; the router never
// returns an error.
package router

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
)

// Label is a routing or classification outcome.
type Label string

// Query classes.
const (
	FactCheck   Label = "FACT_CHECK"
	NotRelevant Label = "NOT_RELEVANT"
)

// Semantic routes.
const (
	RAGRouter          Label = "RAG_ROUTER"
	RequestAttestation Label = "REQUEST_ATTESTATION"
	Conversational     Label = "CONVERSATIONAL"
)

var (
	queryClasses   = []Label{FactCheck, NotRelevant}
	semanticRoutes = []Label{RequestAttestation, RAGRouter, Conversational}
)

var decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "factcheckd",
	Subsystem: "router",
	Name:      "decisions_total",
	Help:      "Router decisions by stage and label, fallback=true when the default was used.",
}, []string{"stage", "label", "fallback"})

// Router classifies messages with a generation model.
type Router struct {
	gen     llm.Generator
	prompts *prompts.Library
	model   config.ModelConfig
	logger  *logging.Logger
}

// New creates a Router.
func New(gen llm.Generator, lib *prompts.Library, model config.ModelConfig, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{gen: gen, prompts: lib, model: model, logger: logger.Named("router")}
}

// Route picks the pipeline for msg. Defaults to Conversational.
func (r *Router) Route(ctx context.Context, msg string) Label {
	return r.decide(ctx, "route", prompts.SemanticRouter, msg, semanticRoutes, Conversational)
}

// Classify decides whether msg is a checkable claim. Defaults to
// NotRelevant.
func (r *Router) Classify(ctx context.Context, msg string) Label {
	return r.decide(ctx, "classify", prompts.RAGRouter, msg, queryClasses, NotRelevant)
}

func (r *Router) decide(ctx context.Context, stage string, name prompts.Name, msg string, allowed []Label, fallback Label) Label {
	p, err := r.prompts.Format(name, map[string]string{"user_input": msg})
	if err != nil {
		return r.fallback(ctx, stage, fallback, zap.Error(err))
	}

	req := llm.FromPrompt(r.model.ID, p)
	req.Temperature = r.model.Temperature
	req.MaxTokens = r.model.MaxTokens

	reply, err := r.gen.Generate(ctx, req)
	if err != nil {
		return r.fallback(ctx, stage, fallback, zap.Error(err))
	}

	property := ""
	if p.Schema != nil {
		property = p.Schema.Property
	}
	label, ok := ParseLabel(reply, property, allowed)
	if !ok {
		return r.fallback(ctx, stage, fallback, zap.String("reply", truncate(reply, 200)))
	}

	decisions.WithLabelValues(stage, string(label), "false").Inc()
	r.logger.Info(ctx, "router decision", zap.String("stage", stage), zap.String("label", string(label)))
	return label
}

func (r *Router) fallback(ctx context.Context, stage string, label Label, cause zap.Field) Label {
	decisions.WithLabelValues(stage, string(label), "true").Inc()
	r.logger.Warn(ctx, stage+" fell back to default", zap.String("label", string(label)), cause)
	return label
}

// ParseLabel extracts a label from a model reply. It accepts a JSON
// object (optionally inside a markdown fence) whose property holds the
// label, or a bare label. Labels are trimmed and upper-cased; anything
// outside allowed is rejected.
func ParseLabel(reply, property string, allowed []Label) (Label, bool) {
	text := StripFence(reply)

	candidate := text
	if property != "" && gjson.Valid(text) && gjson.Parse(text).IsObject() {
		v := gjson.Get(text, property)
		if v.Type != gjson.String {
			return "", false
		}
		candidate = v.String()
	}

	candidate = strings.ToUpper(strings.Trim(strings.TrimSpace(candidate), `"'.`))
	for _, l := range allowed {
		if Label(candidate) == l {
			return l, true
		}
	}
	return "", false
}

// StripFence removes a surrounding ``` or ```json fence.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

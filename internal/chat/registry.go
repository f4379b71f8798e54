package chat

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/llm"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/prompts"
	"github.com/fyrsmithlabs/factcheckd/internal/responder"
	"github.com/fyrsmithlabs/factcheckd/internal/router"
)

// ErrUnknownModel is returned for a model index or id that is not served.
var ErrUnknownModel = errors.New("unknown model")

// Registry holds the default service and one service per served model.
type Registry struct {
	def      *Service
	services []*Service
	byModel  map[string]*Service
}

// NewRegistry creates a Registry. def answers requests that name no model.
func NewRegistry(def *Service, services ...*Service) *Registry {
	r := &Registry{def: def, services: services, byModel: make(map[string]*Service, len(services))}
	for _, s := range services {
		r.byModel[s.Model()] = s
	}
	return r
}

// Default returns the service for requests without a model.
func (r *Registry) Default() *Service {
	return r.def
}

// At returns the service at index i of the model list.
func (r *Registry) At(i int) (*Service, error) {
	if i < 0 || i >= len(r.services) {
		return nil, fmt.Errorf("%w: index %d (have %d)", ErrUnknownModel, i, len(r.services))
	}
	return r.services[i], nil
}

// ByModel returns the service for model id. An empty id selects Default.
func (r *Registry) ByModel(id string) (*Service, error) {
	if id == "" {
		return r.def, nil
	}
	if s, ok := r.byModel[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
}

// Models lists the served model ids in index order.
func (r *Registry) Models() []string {
	ids := make([]string, len(r.services))
	for i, s := range r.services {
		ids[i] = s.Model()
	}
	return ids
}

// BuildRegistry assembles services from cfg. Each listed model serves as
// both router and responder of its service, keeping the sampling
// parameters of the configured router and responder models.
func BuildRegistry(cfg *config.Config, gen llm.Generator, ret Searcher, lib *prompts.Library, logger *logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := Options{
		TopK:             cfg.RetrieverConfig.TopK,
		SemanticRouting:  cfg.Chat.SemanticRouting,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		Timeout:          cfg.Server.RequestTimeout,
	}
	if cfg.Cache.Enabled {
		opts.Cache = NewCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}

	build := func(routerModel, responderModel config.ModelConfig) (*Service, error) {
		resp, err := responder.New(gen, lib, responderModel, logger)
		if err != nil {
			return nil, err
		}
		rt := router.New(gen, lib, routerModel, logger)
		return NewService(rt, ret, resp, gen, lib, routerModel, opts, logger), nil
	}

	def, err := build(cfg.RouterModel, cfg.ResponderModel)
	if err != nil {
		return nil, err
	}

	var services []*Service
	for _, id := range cfg.ModelIDs() {
		rm, pm := cfg.RouterModel, cfg.ResponderModel
		rm.ID, pm.ID = id, id
		s, err := build(rm, pm)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return NewRegistry(def, services...), nil
}

package condition

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Input is what a custom predicate may inspect.
type Input struct {
	CaseID    string
	State     string
	Data      map[string]any
	Satisfied int
	Required  int
	Config    map[string]any
}

type Predicate func(ctx context.Context, in Input) (bool, error)

// Registry holds named predicates for CUSTOM_LOGIC transitions. A transition
// names its predicate with config["predicate"] or embeds config["script"].
// Anything unresolvable evaluates to false.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
	scripts    *ScriptCache
	log        *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		predicates: make(map[string]Predicate),
		scripts:    NewScriptCache(),
		log:        log,
	}
}

func (r *Registry) Register(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = p
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.predicates[name]
	return ok
}

func (r *Registry) Evaluate(ctx context.Context, in Input) bool {
	if name, _ := in.Config["predicate"].(string); name != "" {
		r.mu.RLock()
		p, ok := r.predicates[name]
		r.mu.RUnlock()
		if !ok {
			r.log.Warn("custom predicate not registered", zap.String("predicate", name), zap.String("case_id", in.CaseID))
			return false
		}
		ok, err := p(ctx, in)
		if err != nil {
			r.log.Warn("custom predicate failed", zap.String("predicate", name), zap.String("case_id", in.CaseID), zap.Error(err))
			return false
		}
		return ok
	}

	if src, _ := in.Config["script"].(string); src != "" {
		ok, err := r.scripts.Run(ctx, src, in)
		if err != nil {
			r.log.Warn("condition script failed", zap.String("case_id", in.CaseID), zap.Error(err))
			return false
		}
		return ok
	}

	return false
}

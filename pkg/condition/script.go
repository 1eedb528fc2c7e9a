package condition

import (
	"context"
	"fmt"
	"sync"

	"github.com/d5/tengo/v2"
)

// ScriptCache compiles each tengo source once and runs clones of it.
//
// Scripts see `data`, `state`, `satisfied` and `required`, and must assign a
// boolean to `result`, e.g.
//
//	result = data.amount < 1000000 && satisfied > 0
type ScriptCache struct {
	mu       sync.Mutex
	compiled map[string]*tengo.Compiled
}

func NewScriptCache() *ScriptCache {
	return &ScriptCache{compiled: make(map[string]*tengo.Compiled)}
}

func (s *ScriptCache) Run(ctx context.Context, src string, in Input) (bool, error) {
	base, err := s.compile(src)
	if err != nil {
		return false, err
	}

	run := base.Clone()
	data := in.Data
	if data == nil {
		data = map[string]any{}
	}
	vars := map[string]any{
		"data":      Normalize(data),
		"state":     in.State,
		"satisfied": in.Satisfied,
		"required":  in.Required,
	}
	for name, v := range vars {
		if err := run.Set(name, v); err != nil {
			return false, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	if err := run.RunContext(ctx); err != nil {
		return false, fmt.Errorf("failed to run script: %w", err)
	}
	result := run.Get("result")
	ok, isBool := result.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("script result must be a boolean, got %s", result.ValueType())
	}
	return ok, nil
}

func (s *ScriptCache) compile(src string) (*tengo.Compiled, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.compiled[src]; ok {
		return c, nil
	}

	script := tengo.NewScript([]byte(src))
	for _, name := range []string{"data", "state", "satisfied", "required", "result"} {
		var zero any
		switch name {
		case "data":
			zero = map[string]any{}
		case "state":
			zero = ""
		case "satisfied", "required":
			zero = 0
		case "result":
			zero = false
		}
		if err := script.Add(name, zero); err != nil {
			return nil, err
		}
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	s.compiled[src] = compiled
	return compiled, nil
}

package condition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLookup(t *testing.T) {
	data := map[string]any{
		"risk": map[string]any{"level": "high", "score": int32(7)},
		"owners": primitive.A{
			bson.M{"name": "a"},
			bson.D{{Key: "name", Value: "b"}},
		},
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"risk.level", "high", true},
		{"risk.score", int32(7), true},
		{"owners.1.name", "b", true},
		{"owners.0.name", "a", true},
		{"owners.5.name", nil, false},
		{"risk.missing", nil, false},
		{"risk.level.deeper", nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Lookup(data, tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("low", "low"))
	assert.False(t, Equal("high", "low"))
	assert.True(t, Equal(int32(3), 3.0))
	assert.True(t, Equal(int64(3), 3))
	assert.False(t, Equal("3", 3))
	assert.True(t, Equal(true, true))
	assert.True(t, Equal(bson.M{"a": primitive.A{1}}, map[string]any{"a": []any{1}}))
}

func TestRegistryDefaultsToDeny(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	ctx := context.Background()

	assert.False(t, r.Evaluate(ctx, Input{}))
	assert.False(t, r.Evaluate(ctx, Input{Config: map[string]any{"predicate": "unknown"}}))

	r.Register("always", func(context.Context, Input) (bool, error) { return true, nil })
	r.Register("broken", func(context.Context, Input) (bool, error) { return true, errors.New("boom") })

	assert.True(t, r.Has("always"))
	assert.True(t, r.Evaluate(ctx, Input{Config: map[string]any{"predicate": "always"}}))
	assert.False(t, r.Evaluate(ctx, Input{Config: map[string]any{"predicate": "broken"}}))
}

func TestRegistryScript(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	ctx := context.Background()
	script := `result = data.amount < 1000 && satisfied >= required`

	in := Input{
		Data:      map[string]any{"amount": 500},
		Satisfied: 2,
		Required:  2,
		Config:    map[string]any{"script": script},
	}
	assert.True(t, r.Evaluate(ctx, in))

	in.Data = map[string]any{"amount": 5000}
	assert.False(t, r.Evaluate(ctx, in))

	in.Config = map[string]any{"script": "result = ("}
	assert.False(t, r.Evaluate(ctx, in))
}

func TestScriptResultMustBeBoolean(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(zap.New(core))
	ctx := context.Background()

	tests := []struct {
		name   string
		script string
	}{
		{"integer", `result = 1`},
		{"string", `result = "yes"`},
		{"map", `result = {ok: true}`},
		{"undefined", `result = undefined`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScriptCache().Run(ctx, tt.script, Input{})
			assert.ErrorContains(t, err, "must be a boolean")

			before := logs.Len()
			assert.False(t, r.Evaluate(ctx, Input{Config: map[string]any{"script": tt.script}}))
			assert.Equal(t, before+1, logs.Len())
		})
	}

	ok, err := NewScriptCache().Run(ctx, `result = satisfied > 0`, Input{Satisfied: 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

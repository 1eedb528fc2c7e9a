package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// headerActors resolves the debug user header against a fixed set.
type headerActors map[string]common_models.Actor

func (h headerActors) ResolveActor(ctx context.Context, userID, username string) (common_models.Actor, error) {
	if a, ok := h[userID]; ok {
		return a, nil
	}
	return common_models.Actor{UserID: userID}, nil
}

func newCaseApp(f *fixture) *fiber.App {
	app := fiber.New()
	actors := headerActors{}
	for _, a := range []common_models.Actor{alice, bob, carol, dave, erin, root} {
		actors[a.UserID] = a
	}
	NewCaseApi(NewCaseController(f.engine, zap.NewNop()), actors, &config.Config{SkipAuth: true}).Setup(app)
	return app
}

func call(t *testing.T, app *fiber.App, user, method, path string, body any) (int, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.DebugUserHeader, user)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestCaseEndpointsHappyPath(t *testing.T) {
	f := newFixture()
	app := newCaseApp(f)

	status, raw := call(t, app, "dave", "POST", "/api/cases", map[string]any{"title": "Plot 9"})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	created := decode(t, raw)
	id := created["id"].(string)
	assert.Equal(t, "A", created["current_state"])

	status, raw = call(t, app, "alice", "GET", "/api/cases/inbox", nil)
	require.Equal(t, fiber.StatusOK, status)
	var inbox []InboxItem
	require.NoError(t, json.Unmarshal(raw, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, id, inbox[0].CaseID)

	status, raw = call(t, app, "alice", "POST", "/api/cases/"+id+"/approve", nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	res := decode(t, raw)
	assert.Equal(t, true, res["done"])
	assert.Equal(t, "B", res["current_state"])

	status, raw = call(t, app, "bob", "POST", "/api/cases/"+id+"/approve", map[string]any{"step": 0})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, float64(1), decode(t, raw)["next_step"])

	status, raw = call(t, app, "bob", "GET", "/api/cases/"+id+"/transitions", nil)
	require.Equal(t, fiber.StatusOK, status)
	var available []AvailableTransition
	require.NoError(t, json.Unmarshal(raw, &available))
	assert.Len(t, available, 3)

	status, raw = call(t, app, "bob", "POST", "/api/cases/"+id+"/transitions/b-a", nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, "A", decode(t, raw)["new_state"])

	status, raw = call(t, app, "alice", "GET", "/api/cases/"+id, nil)
	require.Equal(t, fiber.StatusOK, status)
	view := decode(t, raw)
	assert.Equal(t, "Intake", view["state_name"])
	assert.Nil(t, view["next_step"])

	status, raw = call(t, app, "alice", "GET", "/api/cases/"+id+"/actions", nil)
	require.Equal(t, fiber.StatusOK, status)
	var actions []map[string]any
	require.NoError(t, json.Unmarshal(raw, &actions))
	assert.Len(t, actions, 4)
}

func TestCaseEndpointErrors(t *testing.T) {
	f := newFixture()
	app := newCaseApp(f)
	c := f.open(t, nil)
	id := c.ID.Hex()

	status, raw := call(t, app, "bob", "POST", "/api/cases/"+id+"/approve", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	body := decode(t, raw)
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, []any{"R1"}, body["needed_roles"])

	status, raw = call(t, app, "alice", "POST", "/api/cases/"+id+"/actions", map[string]any{"action_type": "DANCE"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_action", decode(t, raw)["error"])

	status, _ = call(t, app, "alice", "GET", "/api/cases/0123456789abcdef01234567", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	f.approve(t, alice, c, nil)
	status, raw = call(t, app, "bob", "POST", "/api/cases/"+id+"/transitions/b-fast", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "b-fast", decode(t, raw)["transition_id"])

	status, raw = call(t, app, "bob", "PATCH", "/api/cases/"+id+"/forms/1", map[string]any{"secret": 1})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, []any{"secret"}, decode(t, raw)["fields"])

	status, _ = call(t, app, "bob", "PATCH", "/api/cases/"+id+"/forms/x", map[string]any{"price": 1})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestFormEndpoints(t *testing.T) {
	f := newFixture()
	app := newCaseApp(f)
	c := f.open(t, nil)
	f.approve(t, alice, c, nil)
	id := c.ID.Hex()

	status, raw := call(t, app, "bob", "GET", "/api/cases/"+id+"/forms/1/editable-fields", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []any{"price"}, decode(t, raw)["fields"])

	status, raw = call(t, app, "bob", "PATCH", "/api/cases/"+id+"/forms/1", map[string]any{"price": 250000})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, float64(250000), f.state(t, c).FormData(1)["price"])

	status, raw = call(t, app, "alice", "GET", "/api/cases/"+id+"/next-approvers", nil)
	require.Equal(t, fiber.StatusOK, status)
	var members []map[string]any
	require.NoError(t, json.Unmarshal(raw, &members))
	require.Len(t, members, 1)
	assert.Equal(t, "bob", members[0]["user_id"])
}

package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	actors map[string]common_models.Actor
}

func (s *stubResolver) ResolveActor(_ context.Context, userID, username string) (common_models.Actor, error) {
	a, ok := s.actors[userID]
	if !ok {
		return common_models.Actor{}, errs.Forbidden("unknown or inactive user")
	}
	return a, nil
}

func newApp(skipAuth bool) *fiber.App {
	resolver := &stubResolver{actors: map[string]common_models.Actor{
		"u1":   {UserID: "u1", Username: "alice", Roles: []string{"R1"}},
		"root": {UserID: "root", IsSuperuser: true},
	}}

	app := fiber.New()
	app.Use(RequestIDMiddleware())
	secured := app.Group("/", AuthMiddleware(skipAuth), ActorMiddleware(resolver))
	secured.Get("/me", func(c *fiber.Ctx) error {
		fromCtx, ok := ActorFromContext(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"user_id": CurrentActor(c).UserID, "ctx_user_id": fromCtx.UserID, "request_id": RequestID(c.UserContext())})
	})
	secured.Get("/admin", RequireSuperuser(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthAndActor(t *testing.T) {
	utils.SetSecret("middleware-secret")
	token, err := utils.GenerateToken("u1", "alice", nil, time.Minute)
	require.NoError(t, err)
	stranger, err := utils.GenerateToken("nobody", "nobody", nil, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"not bearer", "Token " + token, fiber.StatusUnauthorized},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized},
		{"unknown member", "Bearer " + stranger, fiber.StatusForbidden},
		{"valid", "Bearer " + token, fiber.StatusOK},
	}

	app := newApp(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestSkipAuthUsesDebugHeader(t *testing.T) {
	app := newApp(true)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(DebugUserHeader, "u1")
	req.Header.Set(RequestIDHeader, "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
}

func TestRequestIDIsMinted(t *testing.T) {
	app := newApp(true)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(DebugUserHeader, "u1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestRequireSuperuser(t *testing.T) {
	app := newApp(true)

	for user, want := range map[string]int{"u1": fiber.StatusForbidden, "root": fiber.StatusNoContent} {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(DebugUserHeader, user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, user)
	}
}

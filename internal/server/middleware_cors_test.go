package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kazumasamatsumoto/api-insta/internal/config"
	"github.com/kazumasamatsumoto/api-insta/internal/service"
	"github.com/kazumasamatsumoto/api-insta/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webOrigin = "http://localhost:5173"

func TestSetupMiddleware_LimiterSkippedInTestEnv(t *testing.T) {
	srv := &Server{config: &config.Config{Env: "test", AllowedOrigins: webOrigin}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Get("/api/post/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 120; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/post/", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i)
		_ = resp.Body.Close()
	}
}

func TestSetupMiddleware_LimitedResponseIsJSONWithCORS(t *testing.T) {
	srv := &Server{config: &config.Config{Env: "production", AllowedOrigins: webOrigin}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Post("/api/post/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	newReq := func(method string) *http.Request {
		req := httptest.NewRequest(method, "/api/post/", nil)
		req.Header.Set(fiber.HeaderOrigin, webOrigin)
		return req
	}

	for i := 0; i < 100; i++ {
		resp, err := app.Test(newReq(http.MethodPost), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp, err := app.Test(newReq(http.MethodPost), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, string(body))
	assert.Equal(t, webOrigin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	// preflights never count against the limit
	preflight := newReq(http.MethodOptions)
	preflight.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)
	preflight.Header.Set(fiber.HeaderAccessControlRequestHeaders, "authorization,content-type")
	resp, err = app.Test(preflight, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), "Authorization")
}

func TestMediaServedCrossOrigin(t *testing.T) {
	srv, app := newTestServer(t, nil)
	srv.config.AllowedOrigins = webOrigin
	app = srv.NewApp()

	stored, err := srv.media.Save(context.Background(), "avatars/1Al.png",
		&service.Upload{Filename: "me.png", Content: testutil.TinyPNG(t, 2, 2)})
	require.NoError(t, err)

	preflight := httptest.NewRequest(http.MethodOptions, "/media/"+stored, nil)
	preflight.Header.Set(fiber.HeaderOrigin, webOrigin)
	preflight.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodGet)
	resp, err := app.Test(preflight, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, webOrigin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	get := httptest.NewRequest(http.MethodGet, "/media/"+stored, nil)
	get.Header.Set(fiber.HeaderOrigin, webOrigin)
	resp, err = app.Test(get, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
	assert.Equal(t, webOrigin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
}

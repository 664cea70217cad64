package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"postId", "post ID"},
		{"accountId", "account ID"},
		{"profilePhotoId", "profile photo ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=0", 20, 0},
		{"?limit=1000", maxPaginationLimit, 0},
		{"?offset=-3", 20, 0},
		{"?limit=abc", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = parsePagination(c, defaultPaginationLimit)
				return c.SendStatus(fiber.StatusOK)
			})
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestParseID(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for path, want := range map[string]int{
		"/items/5":   http.StatusOK,
		"/items/0":   http.StatusBadRequest,
		"/items/-1":  http.StatusBadRequest,
		"/items/abc": http.StatusBadRequest,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(models.NewValidationError("x")))
	assert.Equal(t, http.StatusUnauthorized, statusFor(models.NewUnauthorizedError("x")))
	assert.Equal(t, http.StatusForbidden, statusFor(models.NewForbiddenError("x")))
	assert.Equal(t, http.StatusNotFound, statusFor(models.NewNotFoundError("Post", 1)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.NewInternalError(errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("plain")))
}

func TestPayloadUintList(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		p, err := readPayload(c)
		if err != nil {
			return models.RespondWithError(c, statusFor(err), err)
		}
		ids, err := p.UintList("liked_by")
		if err != nil {
			return models.RespondWithError(c, statusFor(err), err)
		}
		return c.JSON(fiber.Map{"present": ids != nil, "ids": ids})
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantBody    string
	}{
		{"list", fiber.MIMEApplicationJSON, `{"liked_by":[1,"2"]}`, http.StatusOK, `"ids":[1,2]`},
		{"empty list clears", fiber.MIMEApplicationJSON, `{"liked_by":[]}`, http.StatusOK, `"ids":[]`},
		{"absent", fiber.MIMEApplicationJSON, `{}`, http.StatusOK, `"present":false`},
		{"null rejected", fiber.MIMEApplicationJSON, `{"liked_by":null}`, http.StatusBadRequest, "may not be null"},
		{"not a list", fiber.MIMEApplicationJSON, `{"liked_by":3}`, http.StatusBadRequest, "Expected a list"},
		{"form values", fiber.MIMEApplicationForm, `liked_by=1,2&liked_by=3`, http.StatusOK, `"ids":[1,2,3]`},
		{"empty form value clears", fiber.MIMEApplicationForm, `liked_by=`, http.StatusOK, `"ids":[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderContentType, tt.contentType)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

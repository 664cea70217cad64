package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kazumasamatsumoto/api-insta/internal/config"
	"github.com/kazumasamatsumoto/api-insta/internal/featureflags"
	"github.com/kazumasamatsumoto/api-insta/internal/service"
	"github.com/kazumasamatsumoto/api-insta/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-at-least-32-chars"

func newTestServer(t *testing.T, rdb *redis.Client) (*Server, *fiber.App) {
	t.Helper()
	cfg := &config.Config{
		Env:                 "test",
		JWTSecret:           testSecret,
		JWTAccessTTLMinutes: 5,
		JWTRefreshTTLHours:  1,
		PasswordMinLength:   8,
		MediaRoot:           t.TempDir(),
		MediaURL:            "/media",
	}
	srv, err := NewServerWithDeps(cfg, testutil.NewTestDB(t), rdb)
	require.NoError(t, err)
	return srv, srv.NewApp()
}

type apiResponse struct {
	Status int
	Body   []byte
}

func (r apiResponse) decode(t *testing.T, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, dest), string(r.Body))
}

func (r apiResponse) object(t *testing.T) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	r.decode(t, &m)
	return m
}

func send(t *testing.T, app *fiber.App, req *http.Request, token string) apiResponse {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return apiResponse{Status: resp.StatusCode, Body: body}
}

func sendJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return send(t, app, req, token)
}

func sendMultipart(t *testing.T, app *fiber.App, method, path, token string, fields map[string]string, fileField string, file []byte) apiResponse {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, "upload.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return send(t, app, req, token)
}

// register creates an account over HTTP and returns its id and access token.
func register(t *testing.T, app *fiber.App, email string) (uint, string) {
	t.Helper()
	creds := map[string]string{"email": email, "password": "password123"}

	resp := sendJSON(t, app, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
	var account AccountResponse
	resp.decode(t, &account)

	resp = sendJSON(t, app, http.MethodPost, "/authen/jwt/create", "", creds)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	var pair struct{ Access, Refresh string }
	resp.decode(t, &pair)
	require.NotEmpty(t, pair.Access)
	return account.ID, pair.Access
}

func TestRegisterAndTokens(t *testing.T) {
	_, app := newTestServer(t, nil)
	creds := map[string]string{"email": "Alice@Example.com", "password": "password123"}

	resp := sendJSON(t, app, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.Status)
	body := resp.object(t)
	assert.Equal(t, "alice@example.com", body["email"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "password_hash")

	t.Run("duplicate email in another case", func(t *testing.T) {
		resp := sendJSON(t, app, http.MethodPost, "/api/register", "", map[string]string{
			"email": "ALICE@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("password required", func(t *testing.T) {
		resp := sendJSON(t, app, http.MethodPost, "/api/register", "", map[string]string{"email": "x@example.com"})
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := sendJSON(t, app, http.MethodPost, "/authen/jwt/create", "", map[string]string{
			"email": "alice@example.com", "password": "nope-nope-nope",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	resp = sendJSON(t, app, http.MethodPost, "/authen/jwt/create", "", creds)
	require.Equal(t, http.StatusOK, resp.Status)
	var pair struct{ Access, Refresh string }
	resp.decode(t, &pair)

	t.Run("verify", func(t *testing.T) {
		resp := sendJSON(t, app, http.MethodPost, "/authen/jwt/verify", "", map[string]string{"token": pair.Access})
		assert.Equal(t, http.StatusOK, resp.Status)
		resp = sendJSON(t, app, http.MethodPost, "/authen/jwt/verify", "", map[string]string{"token": "garbage"})
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	t.Run("refresh", func(t *testing.T) {
		resp := sendJSON(t, app, http.MethodPost, "/authen/jwt/refresh", "", map[string]string{"refresh": pair.Refresh})
		require.Equal(t, http.StatusOK, resp.Status)
		access, _ := resp.object(t)["access"].(string)
		assert.NotEmpty(t, access)

		resp = sendJSON(t, app, http.MethodPost, "/authen/jwt/refresh", "", map[string]string{"refresh": pair.Access})
		assert.Equal(t, http.StatusUnauthorized, resp.Status, "access tokens cannot refresh")
	})

	t.Run("refresh token is not a bearer token", func(t *testing.T) {
		resp := sendJSON(t, app, http.MethodGet, "/api/post/", pair.Refresh, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	t.Run("logout without redis", func(t *testing.T) {
		resp := sendJSON(t, app, http.MethodPost, "/authen/jwt/logout", pair.Access, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	})
}

func TestLogoutRevokesTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, app := newTestServer(t, rdb)
	_, token := register(t, app, "bob@example.com")

	resp := sendJSON(t, app, http.MethodGet, "/api/myprofile", token, nil)
	require.Equal(t, http.StatusOK, resp.Status)

	resp = sendJSON(t, app, http.MethodPost, "/authen/jwt/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.Status, string(resp.Body))

	resp = sendJSON(t, app, http.MethodGet, "/api/myprofile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, app := newTestServer(t, nil)
	for _, path := range []string{"/api/myprofile", "/api/profile/", "/api/post/", "/api/comment/", "/api/admin/accounts"} {
		resp := sendJSON(t, app, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Status, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/post/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Token abc")
	resp := send(t, app, req, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestSocialScenario(t *testing.T) {
	srv, app := newTestServer(t, nil)
	aliceID, alice := register(t, app, "alice@example.com")
	bobID, bob := register(t, app, "bob@example.com")

	// profiles
	resp := sendMultipart(t, app, http.MethodPost, "/api/profile/", alice,
		map[string]string{"nick_name": "alice", "owner_id": fmt.Sprint(bobID)},
		"avatar", testutil.TinyPNG(t, 4, 4))
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
	var profile ProfileResponse
	resp.decode(t, &profile)
	assert.Equal(t, aliceID, profile.OwnerID, "owner comes from the token")
	assert.Len(t, profile.CreatedOn, len("2006-01-02"))
	require.NotNil(t, profile.Avatar)
	assert.Equal(t, fmt.Sprintf("/media/avatars/%dalice.png", aliceID), *profile.Avatar)

	media := send(t, app, httptest.NewRequest(http.MethodGet, *profile.Avatar, nil), "")
	assert.Equal(t, http.StatusOK, media.Status)

	resp = sendJSON(t, app, http.MethodPost, "/api/profile/", alice, map[string]string{"nick_name": "again"})
	assert.Equal(t, http.StatusBadRequest, resp.Status, "one profile per account")

	resp = sendJSON(t, app, http.MethodPost, "/api/profile/", bob, map[string]string{"nick_name": "this nickname is far too long"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	var mine []ProfileResponse
	sendJSON(t, app, http.MethodGet, "/api/myprofile", bob, nil).decode(t, &mine)
	assert.Empty(t, mine)
	sendJSON(t, app, http.MethodGet, "/api/myprofile", alice, nil).decode(t, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, profile.ID, mine[0].ID)

	resp = sendJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/profile/%d", profile.ID), alice, map[string]string{"nick_name": "ally"})
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	resp.decode(t, &profile)
	assert.Equal(t, "ally", profile.NickName)
	assert.NotNil(t, profile.Avatar, "partial update keeps the avatar")

	// posts
	resp = sendJSON(t, app, http.MethodPost, "/api/post/", alice, map[string]interface{}{
		"title": "hello", "author_id": bobID, "liked_by": []uint{},
	})
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
	var post PostResponse
	resp.decode(t, &post)
	assert.Equal(t, aliceID, post.AuthorID)
	assert.Equal(t, []uint{}, post.LikedBy)
	assert.Nil(t, post.Image)

	resp = sendJSON(t, app, http.MethodPost, "/api/post/", alice, map[string]interface{}{"title": "x", "liked_by": nil})
	assert.Equal(t, http.StatusBadRequest, resp.Status, "null liked_by is rejected, not read as an empty list")
	assert.Contains(t, string(resp.Body), "may not be null")
	resp = sendJSON(t, app, http.MethodPost, "/api/post/", alice, map[string]interface{}{"title": "x", "liked_by": []uint{9999}})
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	postPath := fmt.Sprintf("/api/post/%d", post.ID)
	var toggled struct {
		Liked bool         `json:"liked"`
		Post  PostResponse `json:"post"`
	}
	sendJSON(t, app, http.MethodPost, postPath+"/like", bob, nil).decode(t, &toggled)
	assert.True(t, toggled.Liked)
	assert.Equal(t, []uint{bobID}, toggled.Post.LikedBy)

	resp = sendJSON(t, app, http.MethodPatch, postPath, bob, map[string]string{"title": "edited by bob"})
	require.Equal(t, http.StatusOK, resp.Status, "any authenticated account may edit")
	resp.decode(t, &post)
	assert.Equal(t, "edited by bob", post.Title)
	assert.Equal(t, aliceID, post.AuthorID, "author is immutable")
	assert.Equal(t, []uint{bobID}, post.LikedBy, "partial update keeps likes")

	resp = sendJSON(t, app, http.MethodPut, postPath, alice, map[string]interface{}{"liked_by": []uint{aliceID}})
	assert.Equal(t, http.StatusBadRequest, resp.Status, "PUT requires a title")

	// comments
	resp = sendJSON(t, app, http.MethodPost, "/api/comment/", bob, map[string]interface{}{"text": "nice", "post_id": post.ID})
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
	var comment CommentResponse
	resp.decode(t, &comment)
	assert.Equal(t, bobID, comment.AuthorID)
	assert.Equal(t, post.ID, comment.PostID)

	resp = sendJSON(t, app, http.MethodPost, "/api/comment/", bob, map[string]interface{}{"text": "orphan", "post_id": 9999})
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	var listed []CommentResponse
	sendJSON(t, app, http.MethodGet, fmt.Sprintf("/api/comment/?post_id=%d", post.ID), alice, nil).decode(t, &listed)
	assert.Len(t, listed, 1)

	resp = sendJSON(t, app, http.MethodGet, "/api/comment/?post_id=abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	// deleting the post takes its comments along
	resp = sendJSON(t, app, http.MethodDelete, postPath, alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	resp = sendJSON(t, app, http.MethodGet, fmt.Sprintf("/api/comment/%d", comment.ID), alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	resp = sendJSON(t, app, http.MethodGet, postPath, alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp = sendJSON(t, app, http.MethodGet, "/api/post/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	// deleting the account takes the profile along
	staff := true
	_, err := srv.accounts.UpdateFlags(context.Background(), bobID, service.AccountFlagsInput{IsStaff: &staff})
	require.NoError(t, err)
	resp = sendJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/admin/accounts/%d", aliceID), bob, nil)
	require.Equal(t, http.StatusNoContent, resp.Status)
	resp = sendJSON(t, app, http.MethodGet, fmt.Sprintf("/api/profile/%d", profile.ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	media = send(t, app, httptest.NewRequest(http.MethodGet, *profile.Avatar, nil), "")
	assert.Equal(t, http.StatusNotFound, media.Status, "the avatar file goes with the account")

	resp = sendJSON(t, app, http.MethodGet, "/api/myprofile", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status, "tokens of deleted accounts stop working")
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	srv, app := newTestServer(t, nil)
	userID, user := register(t, app, "user@example.com")
	_, admin := register(t, app, "admin@example.com")

	resp := sendJSON(t, app, http.MethodGet, "/api/admin/accounts", user, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	adminAccount, err := srv.accounts.Authenticate(context.Background(), "admin@example.com", "password123")
	require.NoError(t, err)
	staff := true
	_, err = srv.accounts.UpdateFlags(context.Background(), adminAccount.ID, service.AccountFlagsInput{IsStaff: &staff})
	require.NoError(t, err)

	var accounts []AdminAccountResponse
	resp = sendJSON(t, app, http.MethodGet, "/api/admin/accounts", admin, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	resp.decode(t, &accounts)
	assert.Len(t, accounts, 2)

	resp = sendJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/admin/accounts/%d", userID), admin, map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	var updated AdminAccountResponse
	resp.decode(t, &updated)
	assert.False(t, updated.IsActive)

	resp = sendJSON(t, app, http.MethodGet, "/api/myprofile", user, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status, "deactivated accounts are rejected")

	resp = sendJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/admin/accounts/%d", userID), admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = sendJSON(t, app, http.MethodGet, "/api/admin/accounts/9999", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestHealthEndpoints(t *testing.T) {
	_, app := newTestServer(t, nil)

	resp := sendJSON(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = sendJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	checks, _ := resp.object(t)["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "disabled", checks["redis"])
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	srv, app := newTestServer(t, nil)
	_, token := register(t, app, "flags@example.com")

	resp := sendJSON(t, app, http.MethodGet, "/api/features", token, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "{}", string(resp.Body))

	srv.featureFlags = featureflags.Parse("media_thumbnails=on,dark_mode=off")
	var flags map[string]bool
	sendJSON(t, app, http.MethodGet, "/api/features", token, nil).decode(t, &flags)
	assert.Equal(t, map[string]bool{"media_thumbnails": true, "dark_mode": false}, flags)
}

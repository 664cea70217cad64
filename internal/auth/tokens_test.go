package auth

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(testSecret, time.Hour, 24*time.Hour, rdb), mr
}

func TestCreatePair_RoundTrip(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	pair, err := m.CreatePair(42)
	require.NoError(t, err)
	require.NotEqual(t, pair.Access, pair.Refresh)

	id, jti, err := m.VerifyAccess(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.NotEmpty(t, jti)

	_, _, err = m.VerifyAccess(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	assert.NoError(t, m.Verify(ctx, pair.Refresh))
}

func TestRefresh(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	pair, err := m.CreatePair(7)
	require.NoError(t, err)

	access, err := m.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	id, _, err := m.VerifyAccess(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = m.Refresh(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestParse_Rejects(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub":        strconv.Itoa(1),
			"iss":        Issuer,
			"aud":        Audience,
			"exp":        time.Now().Add(time.Hour).Unix(),
			"jti":        "j1",
			"token_type": "access",
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not.a.token"},
		{"wrong secret", sign(base(), "another-secret")},
		{"expired", func() string { c := base(); c["exp"] = time.Now().Add(-time.Minute).Unix(); return sign(c, testSecret) }()},
		{"no exp", func() string { c := base(); delete(c, "exp"); return sign(c, testSecret) }()},
		{"wrong issuer", func() string { c := base(); c["iss"] = "other"; return sign(c, testSecret) }()},
		{"wrong audience", func() string { c := base(); c["aud"] = "other"; return sign(c, testSecret) }()},
		{"bad subject", func() string { c := base(); c["sub"] = "abc"; return sign(c, testSecret) }()},
		{"missing jti", func() string { c := base(); delete(c, "jti"); return sign(c, testSecret) }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Parse(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err := m.Parse(ctx, sign(base(), testSecret))
	assert.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()
	pair, err := m.CreatePair(3)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, pair.Access))

	_, _, err = m.VerifyAccess(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrRevoked)

	claims, err := m.Parse(ctx, pair.Refresh)
	require.NoError(t, err, "revoking the access token leaves the refresh token alone")

	keys := mr.Keys()
	require.Len(t, keys, 1)
	ttl := mr.TTL(keys[0])
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)
	assert.NotEqual(t, "blacklist:"+claims.JTI, keys[0])
}

func TestRevoke_WithoutRedis(t *testing.T) {
	m := NewManager(testSecret, time.Hour, time.Hour, nil)
	pair, err := m.CreatePair(1)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Revoke(context.Background(), pair.Access), ErrRevocationUnavailable)
	_, _, err = m.VerifyAccess(context.Background(), pair.Access)
	assert.NoError(t, err)
}

func TestCreatePair_RequiresSecret(t *testing.T) {
	m := NewManager("", time.Hour, time.Hour, nil)
	_, err := m.CreatePair(1)
	assert.Error(t, err)
}

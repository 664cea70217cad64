// Package auth issues, verifies and revokes the JWT pairs used for bearer authentication.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kazumasamatsumoto/api-insta/internal/cache"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Token claim values.
const (
	Issuer   = "api-insta"
	Audience = "api-insta-client"
)

// TokenType distinguishes access from refresh tokens via the token_type claim.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrInvalidToken covers bad signatures, expired tokens and malformed claims.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrWrongTokenType is returned when a refresh token is used for access or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrRevoked is returned for tokens whose jti has been blacklisted.
	ErrRevoked = errors.New("token has been revoked")
	// ErrRevocationUnavailable is returned by Revoke when no Redis client is configured.
	ErrRevocationUnavailable = errors.New("token revocation requires redis")
)

// Pair is the access/refresh token pair returned on login.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Claims is the validated content of a token.
type Claims struct {
	AccountID uint
	JTI       string
	Type      TokenType
	ExpiresAt time.Time
}

// Manager signs tokens with HS256 and tracks revocations in Redis.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rdb        *redis.Client
	now        func() time.Time
}

// NewManager builds a Manager. rdb may be nil, in which case revocation is unavailable.
func NewManager(secret string, accessTTL, refreshTTL time.Duration, rdb *redis.Client) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rdb:        rdb,
		now:        time.Now,
	}
}

// CreatePair issues a fresh access and refresh token for accountID.
func (m *Manager) CreatePair(accountID uint) (*Pair, error) {
	access, err := m.issue(accountID, TokenTypeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.issue(accountID, TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{Access: access, Refresh: refresh}, nil
}

func (m *Manager) issue(accountID uint, typ TokenType, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := m.now()
	claims := jwt.MapClaims{
		"sub":        strconv.FormatUint(uint64(accountID), 10),
		"iss":        Issuer,
		"aud":        Audience,
		"exp":        now.Add(ttl).Unix(),
		"iat":        now.Unix(),
		"nbf":        now.Unix(),
		"jti":        uuid.NewString(),
		"token_type": string(typ),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates signature, issuer, audience and time claims, then checks the blacklist.
func (m *Manager) Parse(ctx context.Context, raw string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := mc["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	jti, _ := mc["jti"].(string)
	typ, _ := mc["token_type"].(string)
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil || jti == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		AccountID: uint(id),
		JTI:       jti,
		Type:      TokenType(typ),
		ExpiresAt: exp.Time,
	}

	revoked, err := m.isRevoked(ctx, jti)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

func (m *Manager) isRevoked(ctx context.Context, jti string) (bool, error) {
	if m.rdb == nil {
		return false, nil
	}
	n, err := m.rdb.Exists(ctx, cache.BlacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check token blacklist: %w", err)
	}
	return n > 0, nil
}

// VerifyAccess validates an access token and returns its account and jti.
func (m *Manager) VerifyAccess(ctx context.Context, raw string) (uint, string, error) {
	claims, err := m.Parse(ctx, raw)
	if err != nil {
		return 0, "", err
	}
	if claims.Type != TokenTypeAccess {
		return 0, "", ErrWrongTokenType
	}
	return claims.AccountID, claims.JTI, nil
}

// Verify reports whether raw is a valid, unrevoked token of either type.
func (m *Manager) Verify(ctx context.Context, raw string) error {
	_, err := m.Parse(ctx, raw)
	return err
}

// Refresh exchanges a refresh token for a new access token.
func (m *Manager) Refresh(ctx context.Context, raw string) (string, error) {
	claims, err := m.Parse(ctx, raw)
	if err != nil {
		return "", err
	}
	if claims.Type != TokenTypeRefresh {
		return "", ErrWrongTokenType
	}
	return m.issue(claims.AccountID, TokenTypeAccess, m.accessTTL)
}

// Revoke blacklists raw's jti until the token would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	if m.rdb == nil {
		return ErrRevocationUnavailable
	}
	claims, err := m.Parse(ctx, raw)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.rdb.Set(ctx, cache.BlacklistKey(claims.JTI), claims.AccountID, ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

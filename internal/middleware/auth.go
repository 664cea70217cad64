// Package middleware provides authentication, logging, metrics and rate limiting middleware for the application.
package middleware

import (
	"context"
	"strings"

	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AccessVerifier validates a raw access token and returns the account it was issued to.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, raw string) (accountID uint, jti string, err error)
}

// ActiveAccountChecker reports whether the account behind a token may still act.
type ActiveAccountChecker func(ctx context.Context, accountID uint) (bool, error)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthRequired enforces a valid access token and stores the acting account id in locals.
func AuthRequired(verifier AccessVerifier, isActive ActiveAccountChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			AuthFailures.WithLabelValues("missing_header").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication credentials were not provided"))
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			AuthFailures.WithLabelValues("bad_header").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		accountID, jti, err := verifier.VerifyAccess(c.UserContext(), tokenString)
		if err != nil {
			AuthFailures.WithLabelValues("invalid_token").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if isActive != nil {
			active, err := isActive(c.UserContext(), accountID)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
			}
			if !active {
				AuthFailures.WithLabelValues("inactive_account").Inc()
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Account is inactive or no longer exists"))
			}
		}

		c.Locals(LocalsAccountID, accountID)
		c.Locals(LocalsTokenJTI, jti)
		c.SetUserContext(context.WithValue(c.UserContext(), AccountIDKey, accountID))

		return c.Next()
	}
}

// ActingAccountID returns the account id stored by AuthRequired.
func ActingAccountID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalsAccountID).(uint)
	return id, ok && id != 0
}

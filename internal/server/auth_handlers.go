package server

import (
	"errors"
	"log/slog"

	"github.com/kazumasamatsumoto/api-insta/internal/auth"
	"github.com/kazumasamatsumoto/api-insta/internal/middleware"
	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"github.com/gofiber/fiber/v2"
)

// credentialsRequest is the body of register and token creation.
type credentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" form:"refresh"`
}

type verifyRequest struct {
	Token string `json:"token" form:"token"`
}

// Register handles POST /api/register
// @Summary Register an account
// @Description Create an account from an email and password. The password is never echoed back.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body credentialsRequest true "Register request"
// @Success 201 {object} AccountResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("password: This field is required."))
	}

	account, err := s.accounts.CreateAccount(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "account registered", slog.Uint64("account_id", uint64(account.ID)))
	return c.Status(fiber.StatusCreated).JSON(accountResponse(account))
}

// CreateToken handles POST /authen/jwt/create
// @Summary Obtain a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body credentialsRequest true "Credentials"
// @Success 200 {object} auth.Pair
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /authen/jwt/create [post]
func (s *Server) CreateToken(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("email and password are required"))
	}

	account, err := s.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	pair, err := s.tokens.CreatePair(account.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(pair)
}

// RefreshToken handles POST /authen/jwt/refresh
// @Summary Exchange a refresh token for a new access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body refreshRequest true "Refresh token"
// @Success 200 {object} object{access=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /authen/jwt/refresh [post]
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.Refresh == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("refresh: This field is required."))
	}

	access, err := s.tokens.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Token is invalid or expired"))
	}
	return c.JSON(fiber.Map{"access": access})
}

// VerifyToken handles POST /authen/jwt/verify
// @Summary Check that a token is valid
// @Tags auth
// @Accept json
// @Produce json
// @Param request body verifyRequest true "Token"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Router /authen/jwt/verify [post]
func (s *Server) VerifyToken(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("token: This field is required."))
	}

	if err := s.tokens.Verify(c.UserContext(), req.Token); err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Token is invalid or expired"))
	}
	return c.JSON(fiber.Map{})
}

// Logout handles POST /authen/jwt/logout
// @Summary Revoke the current access token and, optionally, a refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body refreshRequest false "Refresh token to revoke"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /authen/jwt/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	raw, _ := middleware.BearerToken(c.Get(fiber.HeaderAuthorization))

	var req refreshRequest
	_ = c.BodyParser(&req)

	tokens := []string{raw}
	if req.Refresh != "" {
		tokens = append(tokens, req.Refresh)
	}
	for _, token := range tokens {
		if err := s.tokens.Revoke(ctx, token); err != nil {
			if errors.Is(err, auth.ErrRevocationUnavailable) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "Logout is unavailable", Code: models.CodeInternal,
				})
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token is invalid or expired"))
		}
	}

	middleware.Logger.InfoContext(ctx, "tokens revoked", slog.Int("count", len(tokens)))
	return c.SendStatus(fiber.StatusNoContent)
}

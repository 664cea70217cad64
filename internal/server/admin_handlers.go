package server

import (
	"log/slog"

	"github.com/kazumasamatsumoto/api-insta/internal/middleware"
	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/service"

	"github.com/gofiber/fiber/v2"
)

type adminFlagsRequest struct {
	IsActive    *bool `json:"is_active"`
	IsStaff     *bool `json:"is_staff"`
	IsSuperuser *bool `json:"is_superuser"`
}

// AdminListAccounts handles GET /api/admin/accounts
// @Summary List accounts
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} AdminAccountResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/admin/accounts [get]
func (s *Server) AdminListAccounts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	accounts, err := s.accounts.ListAccounts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	out := make([]AdminAccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, adminAccountResponse(&accounts[i]))
	}
	return c.JSON(out)
}

// AdminGetAccount handles GET /api/admin/accounts/:id
// @Summary Get an account
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} AdminAccountResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/admin/accounts/{id} [get]
func (s *Server) AdminGetAccount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	account, err := s.accounts.GetAccount(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(adminAccountResponse(account))
}

// AdminUpdateAccount handles PATCH /api/admin/accounts/:id
// @Summary Change account flags
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body adminFlagsRequest true "Flags to change"
// @Success 200 {object} AdminAccountResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/admin/accounts/{id} [patch]
func (s *Server) AdminUpdateAccount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req adminFlagsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	account, err := s.accounts.UpdateFlags(c.UserContext(), id, service.AccountFlagsInput{
		IsActive:    req.IsActive,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "account flags updated",
		slog.Uint64("account_id", uint64(id)),
		slog.Uint64("by", uint64(actingAccount(c))),
	)
	return c.JSON(adminAccountResponse(account))
}

// AdminDeleteAccount handles DELETE /api/admin/accounts/:id
// @Summary Delete an account and everything it owns
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/admin/accounts/{id} [delete]
func (s *Server) AdminDeleteAccount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.accounts.DeleteAccount(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "account deleted",
		slog.Uint64("account_id", uint64(id)),
		slog.Uint64("by", uint64(actingAccount(c))),
	)
	return c.SendStatus(fiber.StatusNoContent)
}

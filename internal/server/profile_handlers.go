package server

import (
	"github.com/kazumasamatsumoto/api-insta/internal/service"

	"github.com/gofiber/fiber/v2"
)

func profileInput(c *fiber.Ctx) (service.ProfileInput, error) {
	p, err := readPayload(c)
	if err != nil {
		return service.ProfileInput{}, err
	}
	var in service.ProfileInput
	if in.NickName, err = p.String("nick_name"); err != nil {
		return in, err
	}
	if in.Avatar, err = p.Upload("avatar"); err != nil {
		return in, err
	}
	return in, nil
}

// GetMyProfile handles GET /api/myprofile
// @Summary List the acting account's profile
// @Description Returns a list holding zero or one profile.
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ProfileResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/myprofile [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profiles, err := s.profiles.ListOwnProfile(c.UserContext(), actingAccount(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.profileResponses(profiles))
}

// ListProfiles handles GET /api/profile
// @Summary List profiles
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} ProfileResponse
// @Router /api/profile/ [get]
func (s *Server) ListProfiles(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	profiles, err := s.profiles.ListProfiles(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.profileResponses(profiles))
}

// CreateProfile handles POST /api/profile
// @Summary Create the acting account's profile
// @Description The owner is always the acting account. Accepts JSON or multipart with an avatar file.
// @Tags profiles
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param nick_name formData string true "Nickname"
// @Param avatar formData file false "Avatar image"
// @Success 201 {object} ProfileResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/profile/ [post]
func (s *Server) CreateProfile(c *fiber.Ctx) error {
	in, err := profileInput(c)
	if err != nil {
		return mapServiceError(c, err)
	}
	profile, err := s.profiles.CreateProfile(c.UserContext(), actingAccount(c), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.profileResponse(profile))
}

// GetProfile handles GET /api/profile/:id
// @Summary Get a profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param id path int true "Profile ID"
// @Success 200 {object} ProfileResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/profile/{id} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.profiles.GetProfile(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.profileResponse(profile))
}

// UpdateProfile handles PUT /api/profile/:id
// @Summary Replace a profile
// @Tags profiles
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Profile ID"
// @Param nick_name formData string true "Nickname"
// @Param avatar formData file false "Avatar image"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/profile/{id} [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	return s.updateProfile(c, false)
}

// PartialUpdateProfile handles PATCH /api/profile/:id
// @Summary Update some profile fields
// @Tags profiles
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Profile ID"
// @Param nick_name formData string false "Nickname"
// @Param avatar formData file false "Avatar image"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/profile/{id} [patch]
func (s *Server) PartialUpdateProfile(c *fiber.Ctx) error {
	return s.updateProfile(c, true)
}

func (s *Server) updateProfile(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := profileInput(c)
	if err != nil {
		return mapServiceError(c, err)
	}
	profile, err := s.profiles.UpdateProfile(c.UserContext(), id, in, partial)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.profileResponse(profile))
}

// DeleteProfile handles DELETE /api/profile/:id
// @Summary Delete a profile
// @Tags profiles
// @Security BearerAuth
// @Param id path int true "Profile ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /api/profile/{id} [delete]
func (s *Server) DeleteProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.profiles.DeleteProfile(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFeatureFlags handles GET /api/features
// @Summary Feature flags as seen by the acting account
// @Tags features
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]bool
// @Router /api/features [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(actingAccount(c)))
}


package server

import (
	"strconv"

	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/service"

	"github.com/gofiber/fiber/v2"
)

// commentRequest documents the comment body; handlers read it through payload
// so PATCH can tell absent fields apart.
type commentRequest struct {
	Text   string `json:"text"`
	PostID uint   `json:"post_id"`
}

func commentInput(c *fiber.Ctx) (service.CommentInput, error) {
	p, err := readPayload(c)
	if err != nil {
		return service.CommentInput{}, err
	}
	var in service.CommentInput
	if in.Text, err = p.String("text"); err != nil {
		return in, err
	}
	if in.PostID, err = p.Uint("post_id"); err != nil {
		return in, err
	}
	return in, nil
}

// ListComments handles GET /api/comment
// @Summary List comments
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param post_id query int false "Only comments on this post"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} CommentResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/comment/ [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	var postID uint
	if raw := c.Query("post_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid post ID"))
		}
		postID = uint(id)
	}

	page := parsePagination(c, defaultPaginationLimit)
	comments, err := s.comments.ListComments(c.UserContext(), postID, page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(commentResponses(comments))
}

// CreateComment handles POST /api/comment
// @Summary Comment on a post
// @Description The author is always the acting account.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body commentRequest true "Comment"
// @Success 201 {object} CommentResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/comment/ [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	in, err := commentInput(c)
	if err != nil {
		return mapServiceError(c, err)
	}
	comment, err := s.comments.CreateComment(c.UserContext(), actingAccount(c), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(commentResponse(comment))
}

// GetComment handles GET /api/comment/:id
// @Summary Get a comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} CommentResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/comment/{id} [get]
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comment, err := s.comments.GetComment(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(commentResponse(comment))
}

// UpdateComment handles PUT /api/comment/:id
// @Summary Replace a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body commentRequest true "Comment"
// @Success 200 {object} CommentResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/comment/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	return s.updateComment(c, false)
}

// PartialUpdateComment handles PATCH /api/comment/:id
// @Summary Update some comment fields
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body commentRequest false "Fields to change"
// @Success 200 {object} CommentResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/comment/{id} [patch]
func (s *Server) PartialUpdateComment(c *fiber.Ctx) error {
	return s.updateComment(c, true)
}

func (s *Server) updateComment(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := commentInput(c)
	if err != nil {
		return mapServiceError(c, err)
	}
	comment, err := s.comments.UpdateComment(c.UserContext(), id, in, partial)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(commentResponse(comment))
}

// DeleteComment handles DELETE /api/comment/:id
// @Summary Delete a comment
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /api/comment/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.comments.DeleteComment(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

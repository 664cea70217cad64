package server

import (
	"log/slog"

	"github.com/kazumasamatsumoto/api-insta/internal/middleware"
	"github.com/kazumasamatsumoto/api-insta/internal/service"

	"github.com/gofiber/fiber/v2"
)

func postInput(c *fiber.Ctx) (service.PostInput, error) {
	p, err := readPayload(c)
	if err != nil {
		return service.PostInput{}, err
	}
	var in service.PostInput
	if in.Title, err = p.String("title"); err != nil {
		return in, err
	}
	if in.Image, err = p.Upload("image"); err != nil {
		return in, err
	}
	if in.LikedBy, err = p.UintList("liked_by"); err != nil {
		return in, err
	}
	return in, nil
}

// ListPosts handles GET /api/post
// @Summary List posts
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} PostResponse
// @Router /api/post/ [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	posts, err := s.posts.ListPosts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.postResponses(posts))
}

// CreatePost handles POST /api/post
// @Summary Create a post
// @Description The author is always the acting account. liked_by replaces the like set.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param image formData file false "Image"
// @Param liked_by formData []int false "Account ids that like the post"
// @Success 201 {object} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/post/ [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in, err := postInput(c)
	if err != nil {
		return mapServiceError(c, err)
	}
	post, err := s.posts.CreatePost(c.UserContext(), actingAccount(c), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	middleware.Logger.InfoContext(c.UserContext(), "post created", slog.Uint64("post_id", uint64(post.ID)))
	return c.Status(fiber.StatusCreated).JSON(s.postResponse(post))
}

// GetPost handles GET /api/post/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/post/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.posts.GetPost(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.postResponse(post))
}

// UpdatePost handles PUT /api/post/:id
// @Summary Replace a post
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param title formData string true "Title"
// @Param image formData file false "Image"
// @Param liked_by formData []int false "Account ids that like the post"
// @Success 200 {object} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/post/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	return s.updatePost(c, false)
}

// PartialUpdatePost handles PATCH /api/post/:id
// @Summary Update some post fields
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param title formData string false "Title"
// @Param image formData file false "Image"
// @Param liked_by formData []int false "Account ids that like the post"
// @Success 200 {object} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/post/{id} [patch]
func (s *Server) PartialUpdatePost(c *fiber.Ctx) error {
	return s.updatePost(c, true)
}

func (s *Server) updatePost(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := postInput(c)
	if err != nil {
		return mapServiceError(c, err)
	}
	post, err := s.posts.UpdatePost(c.UserContext(), id, in, partial)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(s.postResponse(post))
}

// DeletePost handles DELETE /api/post/:id
// @Summary Delete a post and its comments
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /api/post/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.posts.DeletePost(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/post/:id/like
// @Summary Like or unlike a post as the acting account
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{liked=bool,post=PostResponse}
// @Failure 404 {object} models.ErrorResponse
// @Router /api/post/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, liked, err := s.posts.ToggleLike(c.UserContext(), id, actingAccount(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked, "post": s.postResponse(post)})
}

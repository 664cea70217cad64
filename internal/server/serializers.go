package server

import (
	"path"
	"time"

	"github.com/kazumasamatsumoto/api-insta/internal/models"
)

// dateFormat renders created_on values.
const dateFormat = "2006-01-02"

// AccountResponse is the public account representation. The password never appears.
type AccountResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// AdminAccountResponse adds privilege flags for the admin endpoints.
type AdminAccountResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ProfileResponse struct {
	ID        uint    `json:"id"`
	NickName  string  `json:"nick_name"`
	OwnerID   uint    `json:"owner_id"`
	CreatedOn string  `json:"created_on"`
	Avatar    *string `json:"avatar"`
}

type PostResponse struct {
	ID        uint    `json:"id"`
	Title     string  `json:"title"`
	AuthorID  uint    `json:"author_id"`
	CreatedOn string  `json:"created_on"`
	Image     *string `json:"image"`
	LikedBy   []uint  `json:"liked_by"`
}

type CommentResponse struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	AuthorID uint   `json:"author_id"`
	PostID   uint   `json:"post_id"`
}

func accountResponse(a *models.Account) AccountResponse {
	return AccountResponse{ID: a.ID, Email: a.Email}
}

func adminAccountResponse(a *models.Account) AdminAccountResponse {
	return AdminAccountResponse{
		ID:          a.ID,
		Email:       a.Email,
		IsActive:    a.IsActive,
		IsStaff:     a.IsStaff,
		IsSuperuser: a.IsSuperuser,
		LastLogin:   a.LastLogin,
		CreatedAt:   a.CreatedAt,
	}
}

// mediaURL turns a stored relative path into the URL it is served at.
func (s *Server) mediaURL(rel *string) *string {
	if rel == nil || *rel == "" {
		return nil
	}
	base := s.config.MediaURL
	if base == "" {
		base = "/media"
	}
	u := path.Join(base, *rel)
	return &u
}

func (s *Server) profileResponse(p *models.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		NickName:  p.NickName,
		OwnerID:   p.OwnerID,
		CreatedOn: p.CreatedOn.Format(dateFormat),
		Avatar:    s.mediaURL(p.Avatar),
	}
}

func (s *Server) profileResponses(profiles []models.Profile) []ProfileResponse {
	out := make([]ProfileResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, s.profileResponse(&profiles[i]))
	}
	return out
}

func (s *Server) postResponse(p *models.Post) PostResponse {
	liked := p.LikedBy
	if liked == nil {
		liked = []uint{}
	}
	return PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		AuthorID:  p.AuthorID,
		CreatedOn: p.CreatedOn.Format(dateFormat),
		Image:     s.mediaURL(p.Image),
		LikedBy:   liked,
	}
}

func (s *Server) postResponses(posts []*models.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.postResponse(p))
	}
	return out
}

func commentResponse(c *models.Comment) CommentResponse {
	return CommentResponse{ID: c.ID, Text: c.Text, AuthorID: c.AuthorID, PostID: c.PostID}
}

func commentResponses(comments []models.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, commentResponse(&comments[i]))
	}
	return out
}

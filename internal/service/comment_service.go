package service

import (
	"context"
	"fmt"

	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/observability"
	"github.com/kazumasamatsumoto/api-insta/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// CommentInput carries the client-writable comment fields. A nil field was
// not supplied.
type CommentInput struct {
	Text   *string
	PostID *uint
}

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository) *CommentService {
	return &CommentService{comments: comments, posts: posts}
}

// ListComments lists comments, restricted to one post when postID is non-zero.
func (s *CommentService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error) {
	return s.comments.List(ctx, postID, limit, offset)
}

func (s *CommentService) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	return s.comments.GetByID(ctx, id)
}

// CreateComment creates a comment authored by the acting account.
func (s *CommentService) CreateComment(ctx context.Context, actingAccountID uint, in CommentInput) (_ *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "CreateComment", attribute.Int64("account.id", int64(actingAccountID)))
	defer func() { observability.EndSpan(span, err) }()

	text, err := cleanRequired("text", in.Text, models.MaxCommentLength)
	if err != nil {
		return nil, err
	}
	postID, err := s.requirePost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{Text: text, AuthorID: actingAccountID, PostID: postID}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	observability.RecordDomainEvent("comment", "create")
	return comment, nil
}

// UpdateComment applies in to the comment. With partial false both text and
// post are required. The author never changes.
func (s *CommentService) UpdateComment(ctx context.Context, id uint, in CommentInput, partial bool) (_ *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "UpdateComment", attribute.Int64("comment.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Text != nil || !partial {
		text, err := cleanRequired("text", in.Text, models.MaxCommentLength)
		if err != nil {
			return nil, err
		}
		comment.Text = text
	}
	if in.PostID != nil || !partial {
		postID, err := s.requirePost(ctx, in.PostID)
		if err != nil {
			return nil, err
		}
		comment.PostID = postID
	}

	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, err
	}

	observability.RecordDomainEvent("comment", "update")
	return comment, nil
}

func (s *CommentService) DeleteComment(ctx context.Context, id uint) error {
	if err := s.comments.Delete(ctx, id); err != nil {
		return err
	}
	observability.RecordDomainEvent("comment", "delete")
	return nil
}

func (s *CommentService) requirePost(ctx context.Context, postID *uint) (uint, error) {
	if postID == nil {
		return 0, models.NewValidationError("post_id is required")
	}
	ok, err := s.posts.Exists(ctx, *postID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, models.NewValidationError(fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *postID))
	}
	return *postID, nil
}

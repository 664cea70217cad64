package service

import (
	"context"
	"fmt"

	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/observability"
	"github.com/kazumasamatsumoto/api-insta/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// PostInput carries the client-writable post fields. A nil field was not
// supplied. LikedBy, when present, replaces the whole like set.
type PostInput struct {
	Title   *string
	Image   *Upload
	LikedBy *[]uint
}

type PostService struct {
	posts    repository.PostRepository
	accounts repository.AccountRepository
	media    MediaStore
}

func NewPostService(posts repository.PostRepository, accounts repository.AccountRepository, media MediaStore) *PostService {
	return &PostService{posts: posts, accounts: accounts, media: media}
}

func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.posts.List(ctx, limit, offset)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// CreatePost creates a post authored by the acting account.
func (s *PostService) CreatePost(ctx context.Context, actingAccountID uint, in PostInput) (_ *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "CreatePost", attribute.Int64("account.id", int64(actingAccountID)))
	defer func() { observability.EndSpan(span, err) }()

	title, err := cleanRequired("title", in.Title, models.MaxTitleLength)
	if err != nil {
		return nil, err
	}
	post := &models.Post{Title: title, AuthorID: actingAccountID}
	if in.LikedBy != nil {
		if err := s.checkAccounts(ctx, *in.LikedBy); err != nil {
			return nil, err
		}
		post.LikedBy = *in.LikedBy
	}

	if in.Image != nil {
		stored, err := s.media.Save(ctx, models.PostImagePath(actingAccountID, title, in.Image.Filename), in.Image)
		if err != nil {
			return nil, err
		}
		post.Image = &stored
	}

	if err := s.posts.Create(ctx, post); err != nil {
		if post.Image != nil {
			s.media.Remove(ctx, *post.Image)
		}
		return nil, err
	}

	observability.RecordDomainEvent("post", "create")
	return post, nil
}

// UpdatePost applies in to the post. With partial false the title is
// required. The author never changes.
func (s *PostService) UpdatePost(ctx context.Context, id uint, in PostInput, partial bool) (_ *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "UpdatePost", attribute.Int64("post.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil || !partial {
		title, err := cleanRequired("title", in.Title, models.MaxTitleLength)
		if err != nil {
			return nil, err
		}
		post.Title = title
	}
	if in.LikedBy != nil {
		if err := s.checkAccounts(ctx, *in.LikedBy); err != nil {
			return nil, err
		}
		post.LikedBy = *in.LikedBy
	}

	previous := post.Image
	var stored string
	if in.Image != nil {
		stored, err = s.media.Save(ctx, models.PostImagePath(post.AuthorID, post.Title, in.Image.Filename), in.Image)
		if err != nil {
			return nil, err
		}
		post.Image = &stored
	}

	if err := s.posts.Update(ctx, post, in.LikedBy != nil); err != nil {
		s.media.Remove(ctx, unreferenced(stored, previous))
		return nil, err
	}
	if stored != "" && previous != nil {
		s.media.Remove(ctx, unreferenced(*previous, &stored))
	}

	observability.RecordDomainEvent("post", "update")
	return post, nil
}

// DeletePost removes the post; its comments and likes go with it.
func (s *PostService) DeletePost(ctx context.Context, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "service", "DeletePost", attribute.Int64("post.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	if post.Image != nil {
		s.media.Remove(ctx, *post.Image)
	}

	observability.RecordDomainEvent("post", "delete")
	return nil
}

// ToggleLike likes the post for the acting account, or unlikes it if it was
// already liked, and returns the updated post.
func (s *PostService) ToggleLike(ctx context.Context, postID, actingAccountID uint) (*models.Post, bool, error) {
	liked, err := s.posts.ToggleLike(ctx, postID, actingAccountID)
	if err != nil {
		return nil, false, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	if liked {
		observability.RecordDomainEvent("post", "like")
	} else {
		observability.RecordDomainEvent("post", "unlike")
	}
	return post, liked, nil
}

func (s *PostService) checkAccounts(ctx context.Context, ids []uint) error {
	missing, err := s.accounts.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return models.NewValidationError(fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", missing[0]))
	}
	return nil
}

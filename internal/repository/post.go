package repository

import (
	"context"
	"errors"

	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post, replaceLikes bool) error
	Delete(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, postID, accountID uint) (bool, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and, when LikedBy is set, its like rows in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return setLikes(tx, post.ID, post.LikedBy)
	})
	if err != nil {
		if isForeignKeyError(err) {
			return models.NewValidationError("Invalid account reference")
		}
		return models.NewInternalError(err)
	}
	return loadLikes(r.db.WithContext(ctx), []*models.Post{post})
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	db := readDB(r.db).WithContext(ctx)
	var post models.Post
	if err := db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	if err := loadLikes(db, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	db := readDB(r.db).WithContext(ctx)
	posts := []*models.Post{}
	if err := db.Order("id ASC").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := loadLikes(db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Update writes title and image, and replaces the like set when replaceLikes is true.
func (r *postRepository) Update(ctx context.Context, post *models.Post, replaceLikes bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{ID: post.ID}).Select("title", "image").Updates(post)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", post.ID)
		}
		if !replaceLikes {
			return nil
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		return setLikes(tx, post.ID, post.LikedBy)
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		if isForeignKeyError(err) {
			return models.NewValidationError("Invalid account reference")
		}
		return models.NewInternalError(err)
	}
	return loadLikes(r.db.WithContext(ctx), []*models.Post{post})
}

// Delete removes the post; its likes and comments cascade.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// ToggleLike adds accountID to the post's likes, or removes it if already present.
// It reports whether the post is liked afterwards.
func (r *postRepository) ToggleLike(ctx context.Context, postID, accountID uint) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND account_id = ?", postID, accountID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		return tx.Create(&models.PostLike{PostID: postID, AccountID: accountID}).Error
	})
	if err != nil {
		if isForeignKeyError(err) {
			return false, models.NewNotFoundError("Post", postID)
		}
		return false, models.NewInternalError(err)
	}
	return liked, nil
}

func setLikes(tx *gorm.DB, postID uint, accountIDs []uint) error {
	if len(accountIDs) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(accountIDs))
	likes := make([]models.PostLike, 0, len(accountIDs))
	for _, id := range accountIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		likes = append(likes, models.PostLike{PostID: postID, AccountID: id})
	}
	return tx.Omit(clause.Associations).Create(&likes).Error
}

// loadLikes fills LikedBy for every post with one query, ordered by account id.
func loadLikes(db *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	byID := make(map[uint]*models.Post, len(posts))
	for _, p := range posts {
		p.LikedBy = []uint{}
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	var likes []models.PostLike
	if err := db.Where("post_id IN ?", ids).Order("post_id ASC, account_id ASC").Find(&likes).Error; err != nil {
		return models.NewInternalError(err)
	}
	for _, l := range likes {
		if p, ok := byID[l.PostID]; ok {
			p.LikedBy = append(p.LikedBy, l.AccountID)
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kazumasamatsumoto/api-insta/internal/cache"
	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"gorm.io/gorm"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	UpdateFlags(ctx context.Context, id uint, flags map[string]interface{}) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
	ListStaff(ctx context.Context) ([]models.Account, error)
	MissingIDs(ctx context.Context, ids []uint) ([]uint, error)
	MediaPaths(ctx context.Context, id uint) ([]string, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns a new AccountRepository implementation.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Account", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &account, nil
}

// GetByEmail looks up an already-normalized email. A miss returns (nil, nil).
func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &account, nil
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Account with this email already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Account with this email already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateAccount(ctx, account.ID)
	return nil
}

// UpdateFlags writes the given privilege columns. Keys are column names.
func (r *accountRepository) UpdateFlags(ctx context.Context, id uint, flags map[string]interface{}) error {
	if len(flags) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(flags)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Account", id)
	}
	cache.InvalidateAccount(ctx, id)
	return nil
}

func (r *accountRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).UpdateColumn("last_login", at).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the account; profiles, posts, likes and comments go with it
// through ON DELETE CASCADE.
func (r *accountRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Account{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Account", id)
	}
	cache.InvalidateAccount(ctx, id)
	return nil
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	var accounts []models.Account
	if err := readDB(r.db).WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&accounts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return accounts, nil
}

func (r *accountRepository) ListStaff(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := readDB(r.db).WithContext(ctx).Where("is_staff = ?", true).Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return accounts, nil
}

// MissingIDs returns the subset of ids that have no account, in input order.
func (r *accountRepository) MissingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	present := make(map[uint]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []uint
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// MediaPaths lists the stored avatar and post image paths of everything the
// account owns, i.e. the files its deletion leaves unreferenced.
func (r *accountRepository) MediaPaths(ctx context.Context, id uint) ([]string, error) {
	db := r.db.WithContext(ctx)
	var avatars, images []string
	if err := db.Model(&models.Profile{}).
		Where("owner_id = ? AND avatar IS NOT NULL AND avatar <> ''", id).
		Pluck("avatar", &avatars).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := db.Model(&models.Post{}).
		Where("author_id = ? AND image IS NOT NULL AND image <> ''", id).
		Pluck("image", &images).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return append(avatars, images...), nil
}

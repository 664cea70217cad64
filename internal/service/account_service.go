package service

import (
	"context"
	"errors"
	"time"

	"github.com/kazumasamatsumoto/api-insta/internal/cache"
	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/observability"
	"github.com/kazumasamatsumoto/api-insta/internal/repository"
	"github.com/kazumasamatsumoto/api-insta/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordMinLength applies when the manager is built with a zero minimum.
const DefaultPasswordMinLength = 8

// dummyHash is compared against when no account matches, so lookups of
// unknown emails cost about as much as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// AccountStatus is the cached subset of an account consulted on every
// authenticated request.
type AccountStatus struct {
	Exists   bool `json:"exists"`
	IsActive bool `json:"is_active"`
	IsStaff  bool `json:"is_staff"`
}

// AccountFlagsInput changes privilege flags; nil fields are left as they are.
type AccountFlagsInput struct {
	IsActive    *bool `json:"is_active"`
	IsStaff     *bool `json:"is_staff"`
	IsSuperuser *bool `json:"is_superuser"`
}

// AccountManager creates, authenticates and administers accounts.
type AccountManager struct {
	repo              repository.AccountRepository
	media             MediaStore
	passwordMinLength int
	hashCost          int
	now               func() time.Time
}

// NewAccountManager returns an AccountManager backed by repo. media removes the
// files of deleted accounts and may be nil when nothing is deleted.
func NewAccountManager(repo repository.AccountRepository, media MediaStore, passwordMinLength int) *AccountManager {
	if passwordMinLength <= 0 {
		passwordMinLength = DefaultPasswordMinLength
	}
	return &AccountManager{
		repo:              repo,
		media:             media,
		passwordMinLength: passwordMinLength,
		hashCost:          bcrypt.DefaultCost,
		now:               time.Now,
	}
}

// CreateAccount registers a regular account. The email is normalized before
// the uniqueness check. An empty password leaves the account without a usable
// password.
func (s *AccountManager) CreateAccount(ctx context.Context, email, password string) (_ *models.Account, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "CreateAccount")
	defer func() { observability.EndSpan(span, err) }()

	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, models.NewValidationError("Users must have an email address")
	}
	if err := validation.ValidateEmail(email, models.MaxEmailLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("Account with this email already exists")
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	observability.RecordDomainEvent("account", "create")
	return account, nil
}

// CreateSuperuser registers an account and grants it staff and superuser flags.
func (s *AccountManager) CreateSuperuser(ctx context.Context, email, password string) (*models.Account, error) {
	if password == "" {
		return nil, models.NewValidationError("Superusers must have a password")
	}
	account, err := s.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}

	account.IsStaff = true
	account.IsSuperuser = true
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate checks email and password and records the login time.
func (s *AccountManager) Authenticate(ctx context.Context, email, password string) (_ *models.Account, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "Authenticate")
	defer func() { observability.EndSpan(span, err) }()

	invalid := models.NewUnauthorizedError("No active account found with the given credentials")

	account, err := s.repo.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if account == nil || !account.HasUsablePassword() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}
	if !account.IsActive {
		return nil, invalid
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, account.ID, now); err != nil {
		return nil, err
	}
	account.LastLogin = &now
	return account, nil
}

// Status returns the cached active/staff state of an account. Unknown ids
// report Exists=false rather than an error.
func (s *AccountManager) Status(ctx context.Context, id uint) (AccountStatus, error) {
	return cache.Aside(ctx, cache.AccountKey(id), cache.AccountTTL, func(ctx context.Context) (AccountStatus, error) {
		account, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return AccountStatus{}, nil
			}
			return AccountStatus{}, err
		}
		return AccountStatus{Exists: true, IsActive: account.IsActive, IsStaff: account.IsStaff}, nil
	})
}

// IsActive reports whether the account exists and may authenticate.
func (s *AccountManager) IsActive(ctx context.Context, id uint) (bool, error) {
	st, err := s.Status(ctx, id)
	return st.Exists && st.IsActive, err
}

// IsStaff reports whether the account may use the admin endpoints.
func (s *AccountManager) IsStaff(ctx context.Context, id uint) (bool, error) {
	st, err := s.Status(ctx, id)
	return st.Exists && st.IsActive && st.IsStaff, err
}

func (s *AccountManager) ListAccounts(ctx context.Context, limit, offset int) ([]models.Account, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *AccountManager) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateFlags applies the non-nil flags and returns the updated account.
func (s *AccountManager) UpdateFlags(ctx context.Context, id uint, in AccountFlagsInput) (*models.Account, error) {
	flags := map[string]interface{}{}
	if in.IsActive != nil {
		flags["is_active"] = *in.IsActive
	}
	if in.IsStaff != nil {
		flags["is_staff"] = *in.IsStaff
	}
	if in.IsSuperuser != nil {
		flags["is_superuser"] = *in.IsSuperuser
	}
	if len(flags) == 0 {
		return nil, models.NewValidationError("No flags to update")
	}
	if err := s.repo.UpdateFlags(ctx, id, flags); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// DeleteAccount removes the account together with everything it owns,
// including the avatar and post image files.
func (s *AccountManager) DeleteAccount(ctx context.Context, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "service", "DeleteAccount", attribute.Int64("account.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	files, err := s.repo.MediaPaths(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.media != nil {
		for _, f := range files {
			s.media.Remove(ctx, f)
		}
	}
	observability.RecordDomainEvent("account", "delete")
	return nil
}

func (s *AccountManager) hashPassword(password string) (string, error) {
	if password == "" {
		return models.UnusablePasswordPrefix + uuid.NewString(), nil
	}
	if err := validation.ValidatePassword(password, s.passwordMinLength); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", models.NewValidationError(err.Error())
		}
		return "", models.NewInternalError(err)
	}
	return string(hash), nil
}

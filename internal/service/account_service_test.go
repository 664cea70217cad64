package service

import (
	"context"
	"testing"

	"github.com/kazumasamatsumoto/api-insta/internal/cache"
	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/repository"
	"github.com/kazumasamatsumoto/api-insta/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAccountManager(t *testing.T) (*AccountManager, repository.AccountRepository) {
	t.Helper()
	repo := repository.NewAccountRepository(testutil.NewTestDB(t))
	m := NewAccountManager(repo, &mediaStub{}, 8)
	m.hashCost = bcrypt.MinCost
	return m, repo
}

func boolPtr(b bool) *bool { return &b }

func TestCreateAccount(t *testing.T) {
	m, _ := newAccountManager(t)
	ctx := context.Background()

	account, err := m.CreateAccount(ctx, "  Alice@Example.COM ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.True(t, account.IsActive)
	assert.False(t, account.IsStaff)
	assert.False(t, account.IsSuperuser)
	assert.NotEqual(t, "password123", account.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("password123")))

	t.Run("case variant is a duplicate", func(t *testing.T) {
		_, err := m.CreateAccount(ctx, "ALICE@example.com", "password123")
		assertValidationError(t, err)
	})

	t.Run("empty email", func(t *testing.T) {
		_, err := m.CreateAccount(ctx, "", "password123")
		assertValidationError(t, err)
		_, err = m.CreateAccount(ctx, "   ", "password123")
		assertValidationError(t, err)
	})

	t.Run("malformed email", func(t *testing.T) {
		_, err := m.CreateAccount(ctx, "not-an-email", "password123")
		assertValidationError(t, err)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := m.CreateAccount(ctx, "bob@example.com", "short")
		assertValidationError(t, err)
	})

	t.Run("no password means unusable", func(t *testing.T) {
		acc, err := m.CreateAccount(ctx, "nopass@example.com", "")
		require.NoError(t, err)
		assert.False(t, acc.HasUsablePassword())
		_, err = m.Authenticate(ctx, "nopass@example.com", "")
		assertUnauthorizedError(t, err)
	})
}

func TestCreateSuperuser(t *testing.T) {
	m, repo := newAccountManager(t)
	ctx := context.Background()

	admin, err := m.CreateSuperuser(ctx, "root@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, admin.IsStaff)
	assert.True(t, admin.IsSuperuser)

	stored, err := repo.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsStaff)
	assert.True(t, stored.IsSuperuser)
	assert.True(t, stored.HasUsablePassword())

	_, err = m.CreateSuperuser(ctx, "other@example.com", "")
	assertValidationError(t, err)
}

func TestAuthenticate(t *testing.T) {
	m, _ := newAccountManager(t)
	ctx := context.Background()

	created, err := m.CreateAccount(ctx, "carol@example.com", "password123")
	require.NoError(t, err)

	account, err := m.Authenticate(ctx, "CAROL@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, account.ID)
	require.NotNil(t, account.LastLogin)

	_, err = m.Authenticate(ctx, "carol@example.com", "wrong-password")
	assertUnauthorizedError(t, err)

	_, err = m.Authenticate(ctx, "nobody@example.com", "password123")
	assertUnauthorizedError(t, err)

	_, err = m.UpdateFlags(ctx, created.ID, AccountFlagsInput{IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, err = m.Authenticate(ctx, "carol@example.com", "password123")
	assertUnauthorizedError(t, err)
}

func TestAccountStatus_Cached(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(client)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = client.Close()
	})

	m, _ := newAccountManager(t)
	ctx := context.Background()
	acc, err := m.CreateAccount(ctx, "dave@example.com", "password123")
	require.NoError(t, err)

	active, err := m.IsActive(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, active)
	assert.True(t, mr.Exists(cache.AccountKey(acc.ID)))

	staff, err := m.IsStaff(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, staff)

	_, err = m.UpdateFlags(ctx, acc.ID, AccountFlagsInput{IsStaff: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.AccountKey(acc.ID)), "flag changes invalidate the cached status")

	staff, err = m.IsStaff(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, staff)

	require.NoError(t, m.DeleteAccount(ctx, acc.ID))
	active, err = m.IsActive(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestUpdateFlags_Errors(t *testing.T) {
	m, _ := newAccountManager(t)
	ctx := context.Background()

	_, err := m.UpdateFlags(ctx, 1, AccountFlagsInput{})
	assertValidationError(t, err)

	_, err = m.UpdateFlags(ctx, 999, AccountFlagsInput{IsStaff: boolPtr(true)})
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	assert.True(t, models.HasCode(m.DeleteAccount(ctx, 999), models.CodeNotFound))
}

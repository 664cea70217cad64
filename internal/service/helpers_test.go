package service

import (
	"context"
	"errors"
	"path"
	"strconv"
	"strings"
	"testing"

	"github.com/kazumasamatsumoto/api-insta/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, models.CodeUnauthorized, appErr.Code)
}

func strPtr(s string) *string { return &s }

func uintPtr(v uint) *uint { return &v }

// mediaStub records saved and removed paths instead of touching the filesystem.
// Like MediaService it never hands out a path that is still stored: a taken
// name gets a numeric suffix before the extension.
type mediaStub struct {
	saveErr error
	saved   []string
	removed []string
	live    map[string]bool
}

func (m *mediaStub) Save(_ context.Context, relPath string, _ *Upload) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.live == nil {
		m.live = map[string]bool{}
	}
	stored := relPath
	for n := 2; m.live[stored]; n++ {
		ext := path.Ext(relPath)
		stored = strings.TrimSuffix(relPath, ext) + "_" + strconv.Itoa(n) + ext
	}
	m.live[stored] = true
	m.saved = append(m.saved, stored)
	return stored, nil
}

func (m *mediaStub) Remove(_ context.Context, relPath string) {
	if relPath != "" {
		delete(m.live, relPath)
		m.removed = append(m.removed, relPath)
	}
}

func uintStr(v uint) string { return strconv.FormatUint(uint64(v), 10) }

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadPath(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "avatar keeps original extension",
			got:      AvatarPath(1, "Al", "me.PNG"),
			expected: "avatars/1Al.png",
		},
		{
			name:     "post image",
			got:      PostImagePath(12, "Hi", "photo.jpeg"),
			expected: "posts/12Hi.jpeg",
		},
		{
			name:     "no extension",
			got:      PostImagePath(3, "x", "blob"),
			expected: "posts/3x",
		},
		{
			name:     "slashes cannot escape category",
			got:      AvatarPath(7, "../../etc/passwd", "a.gif"),
			expected: "avatars/7____etc_passwd.gif",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}

func TestAccountHasUsablePassword(t *testing.T) {
	assert.False(t, (&Account{}).HasUsablePassword())
	assert.False(t, (&Account{PasswordHash: UnusablePasswordPrefix + "abc"}).HasUsablePassword())
	assert.True(t, (&Account{PasswordHash: "$2a$10$abc"}).HasUsablePassword())
}

func TestHasCode(t *testing.T) {
	err := NewValidationError("bad")
	assert.True(t, HasCode(err, CodeValidation))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(nil, CodeValidation))
}

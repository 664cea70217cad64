package models

import (
	"fmt"
	"path"
	"strings"
)

// Media categories used as the first path segment of stored files.
const (
	MediaCategoryAvatars = "avatars"
	MediaCategoryPosts   = "posts"
)

// UploadPath builds the storage path of an uploaded file relative to the media
// root: {category}/{ownerID}{name}.{ext}. The extension comes from the
// original filename and is lower-cased; names are reduced to a single path
// segment so they cannot escape the category directory.
func UploadPath(category string, ownerID uint, name, originalFilename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(originalFilename), "."))
	base := fmt.Sprintf("%d%s", ownerID, sanitizePathSegment(name))
	if ext == "" {
		return path.Join(category, base)
	}
	return path.Join(category, base+"."+ext)
}

// AvatarPath is the UploadPath for a profile avatar.
func AvatarPath(ownerID uint, nickName, originalFilename string) string {
	return UploadPath(MediaCategoryAvatars, ownerID, nickName, originalFilename)
}

// PostImagePath is the UploadPath for a post image.
func PostImagePath(authorID uint, title, originalFilename string) string {
	return UploadPath(MediaCategoryPosts, authorID, title, originalFilename)
}

func sanitizePathSegment(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", "\x00", "")
	return replacer.Replace(strings.TrimSpace(s))
}

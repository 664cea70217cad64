package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kazumasamatsumoto/api-insta/internal/config"
	"github.com/kazumasamatsumoto/api-insta/internal/featureflags"
	"github.com/kazumasamatsumoto/api-insta/internal/middleware"
	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaRoot            = "./media"
	DefaultMediaMaxUploadSizeMB = 10
	ThumbnailMaxSize            = 256
	WebPQuality                 = 70

	// maxNameAttempts bounds the search for a free name when the derived
	// path is already taken.
	maxNameAttempts = 16
	nameSuffixLen   = 7
)

// Upload is a file received in a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// MediaStore persists uploaded files under server-computed relative paths.
// Save never overwrites: it returns the path actually written, which differs
// from relPath when that name is already taken.
type MediaStore interface {
	Save(ctx context.Context, relPath string, up *Upload) (string, error)
	Remove(ctx context.Context, relPath string)
}

// MediaService stores avatars and post images on the local filesystem.
type MediaService struct {
	root     string
	maxBytes int64
	flags    *featureflags.Set
}

// NewMediaService builds a MediaService from the media settings in cfg.
func NewMediaService(cfg *config.Config, flags *featureflags.Set) *MediaService {
	root := DefaultMediaRoot
	maxMB := DefaultMediaMaxUploadSizeMB
	if cfg != nil {
		if cfg.MediaRoot != "" {
			root = cfg.MediaRoot
		}
		if cfg.MediaMaxUploadSizeMB > 0 {
			maxMB = cfg.MediaMaxUploadSizeMB
		}
	}
	return &MediaService{
		root:     root,
		maxBytes: int64(maxMB) * 1024 * 1024,
		flags:    flags,
	}
}

// Root is the directory files are stored under.
func (s *MediaService) Root() string {
	return s.root
}

// ThumbnailPath is where the WebP thumbnail of relPath is written:
// {category}/thumbs/{file}.webp. The original extension is kept so a.png and
// a.jpg get distinct thumbnails.
func ThumbnailPath(relPath string) string {
	dir, file := path.Split(relPath)
	return path.Join(dir, "thumbs", file+".webp")
}

// AlternativeName inserts a random suffix before the extension of relPath:
// posts/1Hi.png becomes posts/1Hi_a1b2c3d.png.
func AlternativeName(relPath string) string {
	ext := path.Ext(relPath)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:nameSuffixLen]
	return strings.TrimSuffix(relPath, ext) + "_" + suffix + ext
}

// Validate checks size, sniffed type and that the content decodes as an image.
func (s *MediaService) Validate(up *Upload) (image.Image, error) {
	if up == nil || len(up.Content) == 0 {
		return nil, models.NewValidationError("No file was submitted")
	}
	if int64(len(up.Content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(up.Content)) {
		return nil, models.NewValidationError("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	decoded, format, err := image.Decode(bytes.NewReader(up.Content))
	if err != nil || !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	if provided := normalizeContentType(up.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Image content type mismatch")
	}
	return decoded, nil
}

// Save validates up and writes it to relPath. When relPath already exists the
// file is written under AlternativeName(relPath) instead, so a stored file is
// only ever referenced by the record that saved it.
func (s *MediaService) Save(ctx context.Context, relPath string, up *Upload) (stored string, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "SaveMedia")
	defer func() { observability.EndSpan(span, err) }()

	decoded, err := s.Validate(up)
	if err != nil {
		return "", err
	}
	stored, err = s.create(relPath, up.Content)
	if err != nil {
		return "", err
	}
	category := strings.SplitN(stored, "/", 2)[0]
	observability.MediaBytesStored.WithLabelValues(category).Add(float64(len(up.Content)))

	if s.flags.On(featureflags.MediaThumbnails) {
		if err := s.writeThumbnail(stored, decoded); err != nil {
			middleware.Logger.WarnContext(ctx, "thumbnail generation failed",
				slog.String("path", stored), slog.String("error", err.Error()))
		}
	}
	return stored, nil
}

// create writes data to the first free name derived from relPath.
func (s *MediaService) create(relPath string, data []byte) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+relPath), "/")
	candidate := clean
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		abs, err := s.abs(candidate)
		if err != nil {
			return "", err
		}
		err = writeNewFile(abs, data)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", models.NewInternalError(err)
		}
		candidate = AlternativeName(clean)
	}
	return "", models.NewInternalError(fmt.Errorf("no free name for %s", clean))
}

// Remove deletes relPath and its thumbnail. Missing files are ignored.
func (s *MediaService) Remove(ctx context.Context, relPath string) {
	if relPath == "" {
		return
	}
	for _, p := range []string{relPath, ThumbnailPath(relPath)} {
		abs, err := s.abs(p)
		if err != nil {
			continue
		}
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			middleware.Logger.WarnContext(ctx, "media removal failed",
				slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

func (s *MediaService) writeThumbnail(relPath string, src image.Image) error {
	thumb := resizeToFit(src, ThumbnailMaxSize, ThumbnailMaxSize)
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, thumb, &webp.Options{Quality: WebPQuality}); err != nil {
		return err
	}
	abs, err := s.abs(ThumbnailPath(relPath))
	if err != nil {
		return err
	}
	return writeBytesToFile(abs, buf.Bytes())
}

// abs resolves relPath under the media root and rejects paths escaping it.
func (s *MediaService) abs(relPath string) (string, error) {
	clean := path.Clean("/" + relPath)
	if clean == "/" {
		return "", models.NewValidationError("Invalid media path")
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if sh := float64(maxHeight) / float64(h); sh < scale {
		scale = sh
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	return p == d || (p == "image/jpg" && d == "image/jpeg")
}

func isSupportedDecodedFormat(format string) bool {
	return decodedFormatToMime(format) != ""
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

// writeNewFile creates p exclusively; it fails with fs.ErrExist when p is taken.
func writeNewFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return err
	}
	return f.Close()
}

func writeBytesToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

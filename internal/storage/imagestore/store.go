// Package imagestore persists uploaded product images. The backend is chosen
// once at startup from configuration.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
)

// Store is an image storage backend.
type Store interface {
	// Put stores data under name and returns the reference saved on the product.
	Put(ctx context.Context, data []byte, name, contentType string) (string, error)
	// Delete removes the object behind ref. It reports false when ref does not
	// belong to this store.
	Delete(ctx context.Context, ref string) (bool, error)
}

// ErrNotConfigured is returned when the selected backend lacks required settings.
var ErrNotConfigured = errors.New("image store not configured")

// New returns the Store selected by cfg.Backend.
func New(cfg config.ImageStore) (Store, error) {
	switch cfg.Backend {
	case config.ImageStoreS3:
		return NewS3Store(cfg)
	case config.ImageStoreREST:
		return NewRESTStore(cfg, nil)
	default:
		return NewLocalStore(cfg.LocalDir)
	}
}

// AllowedExtensions lists the accepted image file extensions.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// IsAllowedExtension reports whether filename has an accepted image extension.
func IsAllowedExtension(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ContentType infers the content type from the extension, falling back to the
// declared type and then to image/jpeg.
func ContentType(filename, declared string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if declared != "" {
		return declared
	}
	return "image/jpeg"
}

// ObjectName builds the stored name of an upload: a timestamp prefix plus the
// sanitized original filename.
func ObjectName(now time.Time, filename string) string {
	return now.Format("20060102_150405") + "_" + SanitizeFilename(filename)
}

// SanitizeFilename strips directories, folds accents and keeps only ASCII
// letters, digits, dots, dashes and underscores.
func SanitizeFilename(filename string) string {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = path.Base(path.Clean(name))

	asciiFold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(asciiFold, name)
	if err == nil {
		name = folded
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	clean := strings.Trim(b.String(), "._")
	if clean == "" {
		return "unnamed"
	}
	return clean
}

// IsPlaceholder reports whether ref is an external placeholder image that must
// never be deleted.
func IsPlaceholder(ref string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}

// objectNameFromRef extracts the stored object name from a bare name or URL.
func objectNameFromRef(ref string) (string, error) {
	if !isURL(ref) {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse image ref: %w", err)
	}

	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("image ref has no object name: %s", ref)
	}

	return name, nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// publicObjectURL is the public download URL of a Supabase storage object.
func publicObjectURL(base, bucket, name string) string {
	return strings.TrimRight(base, "/") + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

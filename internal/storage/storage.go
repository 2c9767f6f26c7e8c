// Package storage keeps memory photos outside the database.
//
// The database stores only the object key. The store that wrote the object
// turns the key into a public URL, so switching from the local directory to
// a bucket (or moving the bucket) never rewrites rows.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted photo.
const MaxImageSize = 5 << 20 // 5 MiB

var (
	ErrTooLarge        = errors.New("storage: image exceeds 5 MiB")
	ErrUnsupportedType = errors.New("storage: unsupported image type")
	ErrInvalidKey      = errors.New("storage: invalid object key")
)

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageStore saves, deletes and resolves memory photos.
type ImageStore interface {
	// Save stores r under a fresh key derived from originalName and
	// returns the key. It fails with ErrUnsupportedType or ErrTooLarge
	// before anything is kept.
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL is the address clients fetch the image from.
	URL(key string) string
}

// ContentType returns the MIME type for an allowed file name, or "" when
// the extension is not accepted.
func ContentType(name string) string {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ObjectKey builds "uuid_name" from an uploaded file name. Directory parts
// are dropped and spaces replaced so the key is safe as a path and a URL
// segment.
func ObjectKey(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '?', '#', '%':
			return '_'
		}
		return r
	}, base)
	return uuid.NewString() + "_" + base
}

// readLimited reads all of r, failing with ErrTooLarge past MaxImageSize.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// validKey rejects keys that could escape the store's namespace.
func validKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`)
}

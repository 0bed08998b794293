package utils

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxMediaBytes caps a single promotion upload.
const MaxMediaBytes = 25 * 1024 * 1024

var ErrUnsupportedMedia = errors.New("unsupported media type")

var mediaExtensions = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".gif":  "image",
	".webp": "image",
	".mp4":  "video",
	".webm": "video",
	".mov":  "video",
}

// MediaKey validates an upload and builds its object key: promotions/<account>/<uuid><ext>.
func MediaKey(accountID string, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return "", ErrUnsupportedMedia
	}
	if fileHeader.Size > MaxMediaBytes {
		return "", fmt.Errorf("%w: file larger than %d bytes", ErrUnsupportedMedia, MaxMediaBytes)
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := mediaExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, ext)
	}
	return fmt.Sprintf("promotions/%s/%s%s", accountID, uuid.NewString(), ext), nil
}

// MediaKind reports "image" or "video" for a stored key, "" if unknown.
func MediaKind(key string) string {
	return mediaExtensions[strings.ToLower(filepath.Ext(key))]
}

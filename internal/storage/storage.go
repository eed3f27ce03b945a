// Package storage keeps uploaded FRA files in an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultURLExpiry is how long pre-signed upload URLs stay valid
const DefaultURLExpiry = 15 * time.Minute

// ObjectStore handles file storage operations
type ObjectStore interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}

// contentTypes maps accepted upload extensions to the content type they are stored with
var contentTypes = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".xml":  "application/xml",
	".json": "application/json",
	".frx":  "application/octet-stream",
	".dbl":  "application/octet-stream",
	".meg":  "application/octet-stream",
	".n4f":  "application/octet-stream",
	"":      "application/octet-stream",
}

// ContentTypeFor returns the content type for a file name, or an error when
// the extension is not an FRA format
func ContentTypeFor(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ct, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file extension %q", ext)
	}
	return ct, nil
}

// ValidateContentType validates that the content type is supported
func ValidateContentType(contentType string) error {
	for _, ct := range contentTypes {
		if ct == contentType {
			return nil
		}
	}
	return fmt.Errorf("invalid content type: %s", contentType)
}

// ObjectKey builds the key an upload is stored under
func ObjectKey(id, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", id, filepath.Base(filename))
}

// Package storage persists inline image payloads submitted with generation
// requests and returns a URL the record can point at.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader persists objects to a storage backend.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

type UploadRequest struct {
	// ObjectName is the slash-separated key within the backend.
	ObjectName  string
	Content     io.Reader
	ContentType string
}

// UploadResult is the outcome of a successful upload. ExpiresAt is zero for
// URLs that do not expire.
type UploadResult struct {
	ObjectName string
	URL        string
	ExpiresAt  time.Time
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// InputObjectName returns inputs/YYYY/MM/DD/<uuid>.<ext> for an uploaded image.
func InputObjectName(now time.Time, contentType string) string {
	ext, ok := extensions[strings.ToLower(contentType)]
	if !ok {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		} else {
			ext = ".bin"
		}
	}
	return fmt.Sprintf("inputs/%s/%s%s", now.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}

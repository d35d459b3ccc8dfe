// Package storage uploads processed images and manifests and returns their public URLs.
package storage

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Namespace string

const (
	NamespaceImages Namespace = "images"
	NamespaceCSV    Namespace = "csv"
)

type ObjectStore interface {
	// Upload stores the file at localPath under ns and returns its URL.
	Upload(ctx context.Context, localPath string, ns Namespace) (string, error)
}

// objectName is "<namespace>/<uuid><ext>" so retries never overwrite an earlier upload.
func objectName(localPath string, ns Namespace) string {
	return string(ns) + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(localPath))
}

func contentType(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local copies uploads into Dir and serves them under BaseURL. Meant for development.
type Local struct {
	Dir     string
	BaseURL string
}

var _ ObjectStore = (*Local)(nil)

func (l *Local) Upload(ctx context.Context, localPath string, ns Namespace) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(localPath, ns)
	dst := filepath.Join(l.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(l.BaseURL, "/") + "/" + name, nil
}

package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

type Supabase struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

var _ ObjectStore = (*Supabase)(nil)

func NewSupabase(supabaseURL, serviceRoleKey, bucket string) *Supabase {
	baseURL := strings.TrimRight(supabaseURL, "/")
	return &Supabase{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

// Upload reads the whole file; images and manifests are small enough for that.
// The storage client takes no context, so ctx is only checked before the request.
func (s *Supabase) Upload(ctx context.Context, localPath string, ns Namespace) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	path := objectName(localPath, ns)
	ct := contentType(localPath)
	upsert := false
	if _, err := s.client.UploadFile(s.bucket, path, f, storage.FileOptions{
		ContentType: &ct,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return s.PublicURL(path), nil
}

func (s *Supabase) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}

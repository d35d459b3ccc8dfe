package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Extensions re-encoded as lossy JPEG. Anything else is uploaded as fetched.
var recompressible = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func Recompressible(ext string) bool { return recompressible[ext] }

// ExtensionOf returns the lowercased extension of the URL path, dot included.
func ExtensionOf(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

var errTooLarge = errors.New("image exceeds size limit")

type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: timeout}, MaxBytes: maxBytes}
}

// Fetch downloads rawURL into a new file in dir named with ext. Non-2xx is an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir, ext string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	out, err := os.CreateTemp(dir, "img-*"+ext)
	if err != nil {
		return "", err
	}
	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && f.MaxBytes > 0 && n > f.MaxBytes {
		err = errTooLarge
	}
	if err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	return out.Name(), nil
}

// Recompress decodes src and writes it next to src as a JPEG at the given quality.
func Recompress(src string, quality int) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filepath.Base(src), err)
	}
	dst := strings.TrimSuffix(src, filepath.Ext(src)) + "-q.jpg"
	if err := imaging.Save(img, dst, imaging.JPEGQuality(quality)); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("encode %s: %w", filepath.Base(dst), err)
	}
	return dst, nil
}

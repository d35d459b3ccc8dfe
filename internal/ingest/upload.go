package ingest

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/ariefcatur/go-image-orders/internal/apperr"
)

// FileField is the multipart field the tabular file is expected under.
const FileField = "csv"

// CheckUpload enforces exactly one attached file, under FileField, with a tabular media type.
func CheckUpload(form *multipart.Form) (*multipart.FileHeader, Kind, error) {
	total := 0
	if form != nil {
		for _, fhs := range form.File {
			total += len(fhs)
		}
	}
	switch {
	case total == 0:
		return nil, 0, apperr.Validation(apperr.CodeNoFiles, "No files were uploaded", nil)
	case total > 1:
		return nil, 0, apperr.Validation(apperr.CodeOnlyOneFile, "Only one file is allowed", nil)
	}

	fhs := form.File[FileField]
	if len(fhs) == 0 {
		return nil, 0, apperr.Validation(apperr.CodeNotCSV, "File must be a CSV", nil)
	}
	kind, ok := KindOf(fhs[0].Header.Get("Content-Type"))
	if !ok {
		return nil, 0, apperr.Validation(apperr.CodeNotCSV, "File must be a CSV", nil)
	}
	return fhs[0], kind, nil
}

// Artifact is the uploaded file spooled to local disk. Remove must be called on every path.
type Artifact struct {
	Path string
}

// Spool copies the upload to a uniquely named file in dir.
func Spool(fh *multipart.FileHeader, dir string) (*Artifact, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	a := &Artifact{Path: dst.Name()}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = a.Remove()
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = a.Remove()
		return nil, err
	}
	return a, nil
}

func (a *Artifact) Remove() error {
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

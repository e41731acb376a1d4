package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Uploader is the seam to whatever object store holds report media. The
// backend service owns durability; this package only ships bytes and hands
// back a public URL.
type Uploader interface {
	Upload(ctx context.Context, name string, contentType string, data []byte) (string, error)
}

// DiskUploader writes media under a local directory and serves it from
// BaseURL. Suitable for dev and single-node deployments.
type DiskUploader struct {
	Dir     string
	BaseURL string
}

func (d DiskUploader) Upload(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = sanitizeName(name)
	if name == "" {
		return "", fmt.Errorf("empty media name")
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(d.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return strings.TrimRight(d.BaseURL, "/") + "/" + name, nil
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

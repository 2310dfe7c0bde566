package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Disk stores objects below a local directory.
type Disk struct {
	root    string
	baseURL string
}

// NewDisk creates root if needed.  baseURL is the public prefix the HTTP
// server mounts root under.
func NewDisk(root, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Disk{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory files are written to.
func (d *Disk) Root() string { return d.root }

// BaseURL is the public prefix for stored files.
func (d *Disk) BaseURL() string { return d.baseURL }

func (d *Disk) Save(ctx context.Context, key string, body io.Reader, _ string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Delete removes the file.  A missing file is not an error.
func (d *Disk) Delete(_ context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(d.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Disk) URL(key string) string {
	return d.baseURL + "/" + strings.TrimLeft(key, "/")
}

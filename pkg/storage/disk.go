package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
)

// Disk stores media files in a single local directory.
type Disk struct {
	root   string
	logger *zap.Logger
}

// NewDisk creates the root directory if needed and returns a disk-backed store.
func NewDisk(root string, logger *zap.Logger) (*Disk, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}
	return &Disk{root: abs, logger: logger}, nil
}

// Root returns the absolute media directory.
func (d *Disk) Root() string { return d.root }

func (d *Disk) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(d.root, key), nil
}

// Put writes body to key atomically; readers never observe a partial file.
func (d *Disk) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	pending, err := renameio.NewPendingFile(p, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			d.logger.Debug("cleanup pending media file", zap.String("key", key), zap.Error(err))
		}
	}()
	if _, err := io.Copy(pending, &ctxReader{ctx: ctx, r: body}); err != nil {
		return fmt.Errorf("write media file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit media file: %w", err)
	}
	return nil
}

// Open returns the file for key or ErrNotFound.
func (d *Disk) Open(_ context.Context, key string) (io.ReadCloser, Object, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Object{}, ErrNotFound
	}
	if err != nil {
		return nil, Object{}, fmt.Errorf("open media file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Object{}, fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, Object{}, ErrNotFound
	}
	return f, Object{Key: key, Size: info.Size(), ContentType: ContentTypeForKey(key), ModTime: info.ModTime()}, nil
}

// Remove deletes key; a missing file is not an error.
func (d *Disk) Remove(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

// List returns all regular files in the media directory.
func (d *Disk) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read media dir: %w", err)
	}
	var out []Object
	for _, e := range entries {
		if !e.Type().IsRegular() || ValidateKey(e.Name()) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{Key: e.Name(), Size: info.Size(), ContentType: ContentTypeForKey(e.Name()), ModTime: info.ModTime()})
	}
	return out, nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

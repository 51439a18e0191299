package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the store's size limit.
var ErrTooLarge = errors.New("file too large")

// Upload is one file received with a post.
type Upload struct {
	Filename string
	Content  io.Reader
}

// AttachmentStore persists uploaded files and returns a reference to store on the post.
// Remove deletes a file by the reference Save returned.
type AttachmentStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// DiskStore writes files under Root/yyyy/mm/dd and serves them from URLPrefix.
type DiskStore struct {
	Root      string
	URLPrefix string
	MaxBytes  int64
	now       func() time.Time
}

// NewDiskStore creates a store rooted at root. maxMB <= 0 means 50MB.
func NewDiskStore(root, urlPrefix string, maxMB int) *DiskStore {
	if maxMB <= 0 {
		maxMB = 50
	}
	return &DiskStore{
		Root:      root,
		URLPrefix: strings.TrimRight(urlPrefix, "/"),
		MaxBytes:  int64(maxMB) * 1024 * 1024,
		now:       time.Now,
	}
}

// Save copies r to disk and returns its public path, e.g. /static/uploads/2024/05/01/<name>.
func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := s.now()
	year, month, day := now.Format("2006"), now.Format("01"), now.Format("02")
	baseDir := filepath.Join(s.Root, year, month, day)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	fname := filepath.Base(filepath.Clean("/" + filename))
	if fname == "/" || fname == "." || fname == "" {
		fname = "file"
	}
	// prevent collisions between identical names uploaded in the same day
	safeName := fmt.Sprintf("%d_%s_%s", now.UnixNano(), uuid.NewString()[:8], fname)
	dstPath := filepath.Join(baseDir, safeName)

	out, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", safeName, err)
	}

	lr := &io.LimitedReader{R: r, N: s.MaxBytes + 1}
	written, err := io.Copy(out, lr)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("write %s: %w", safeName, err)
	}
	if written > s.MaxBytes {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("%s: %w", fname, ErrTooLarge)
	}

	return path.Join(s.URLPrefix, year, month, day, safeName), nil
}

// Remove deletes the file behind ref. A file that is already gone is not an error.
func (s *DiskStore) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, ok := strings.CutPrefix(ref, s.URLPrefix+"/")
	if !ok {
		return fmt.Errorf("%s: not a stored reference", ref)
	}
	rel = path.Clean("/" + rel)
	if err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(rel))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}

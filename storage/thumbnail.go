package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoders for image.Decode
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxSourceBytes  = 20 << 20
	maxSourcePixels = 40_000_000
)

// ErrTooManyPixels is returned for images whose declared size exceeds the decode limit.
var ErrTooManyPixels = errors.New("image dimensions too large")

// Thumbnailer produces scaled JPEG previews for media posts.
type Thumbnailer struct {
	Store  AttachmentStore
	Width  int
	Client *http.Client
}

// NewThumbnailer scales images to at most width pixels wide. width <= 0 means 480.
func NewThumbnailer(store AttachmentStore, width int) *Thumbnailer {
	if width <= 0 {
		width = 480
	}
	return &Thumbnailer{
		Store:  store,
		Width:  width,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsImage reports whether a stored reference looks like an image file.
func IsImage(ref string) bool {
	switch strings.ToLower(path.Ext(ref)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// FromURL downloads the image at url and stores a scaled copy.
func (t *Thumbnailer) FromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return t.FromReader(ctx, io.LimitReader(resp.Body, maxSourceBytes))
}

// FromReader decodes an image from r and stores a scaled copy.
func (t *Thumbnailer) FromReader(ctx context.Context, r io.Reader) (string, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return "", fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooManyPixels)
	}

	src, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Scale(src, t.Width), &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return t.Store.Save(ctx, "thumbnail.jpg", &buf)
}

// Scale resizes src to maxWidth keeping the aspect ratio. Narrower images are returned untouched.
func Scale(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return src
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

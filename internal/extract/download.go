package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/fetch"
	"github.com/jonathan/weixin-spider/internal/types"
)

// DefaultImageExt is used when the declared content type is not a known image type.
const DefaultImageExt = ".jpg"

// DefaultImageTimeout bounds each image download.
const DefaultImageTimeout = 30 * time.Second

// Downloader writes article images under a root directory.
type Downloader struct {
	Root    string
	Timeout time.Duration
	Fetch   *fetch.Options // Base options; Timeout is replaced per image
	logger  *zap.Logger
}

// NewDownloader creates a downloader writing under root.
func NewDownloader(root string, timeout time.Duration, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	return &Downloader{Root: root, Timeout: timeout, logger: logger}
}

// Dir returns the directory images for label are written to.
func (d *Downloader) Dir(label string) string {
	return filepath.Join(d.Root, SanitizeLabel(label))
}

// Download fetches every image of article in order, setting LocalPath on each
// one that was saved. A failed image is logged and skipped. The returned
// error is only for an unusable destination directory.
func (d *Downloader) Download(ctx context.Context, article *types.Article, label string) (int, error) {
	if len(article.Images) == 0 {
		return 0, nil
	}

	dir := d.Dir(label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}

	saved := 0
	for i := range article.Images {
		if ctx.Err() != nil {
			return saved, ctx.Err()
		}
		img := &article.Images[i]
		path, err := d.downloadOne(ctx, dir, img)
		if err != nil {
			d.logger.Warn("failed to download image",
				zap.Int("index", img.Index),
				zap.String("image_url", img.URL),
				zap.Error(err))
			continue
		}
		img.LocalPath = path
		saved++
	}

	d.logger.Info("images downloaded",
		zap.String("dir", dir),
		zap.Int("saved", saved),
		zap.Int("total", len(article.Images)))
	return saved, nil
}

func (d *Downloader) downloadOne(ctx context.Context, dir string, img *types.Image) (string, error) {
	opts := fetch.DefaultOptions()
	if d.Fetch != nil {
		copied := *d.Fetch
		opts = &copied
	}
	opts.Timeout = d.Timeout

	result, err := fetch.URL(ctx, img.URL, opts)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("image_%03d%s", img.Index, ImageExtension(result.MediaType()))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, result.Body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	d.logger.Debug("image saved", zap.String("path", path), zap.Int("bytes", len(result.Body)))
	return path, nil
}

// ImageExtension maps a declared image media type to a file extension.
func ImageExtension(mediaType string) string {
	if !strings.HasPrefix(mediaType, "image/") {
		return DefaultImageExt
	}
	mt := mimetype.Lookup(mediaType)
	if mt == nil || mt.Extension() == "" {
		return DefaultImageExt
	}
	return mt.Extension()
}

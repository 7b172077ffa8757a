package transfer

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
)

const thumbnailMaxDim = 256

// makeThumbnail downscales an uploaded image and caches it in the thumbnail
// namespace. Failures are logged, never propagated: a missing thumbnail
// only costs the UI a placeholder.
func (e *Engine) makeThumbnail(ctx context.Context, f *os.File, item *models.Item) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		e.logger.Warn(ctx, "thumbnail skipped", "uuid", item.UUID, "error", err)
		return
	}
	img, _, err := image.Decode(f)
	if err != nil {
		e.logger.Warn(ctx, "thumbnail skipped", "uuid", item.UUID, "error", err)
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, downscale(img, thumbnailMaxDim), &jpeg.Options{Quality: 80}); err != nil {
		e.logger.Warn(ctx, "thumbnail skipped", "uuid", item.UUID, "error", err)
		return
	}
	if err := e.kv.Set(ctx, item.UUID, buf.Bytes(), store.BucketThumbnails); err != nil {
		e.logger.Warn(ctx, "failed to cache thumbnail", "uuid", item.UUID, "error", err)
	}
}

// Thumbnail returns the cached thumbnail for an item, or common.ErrNotFound.
func (e *Engine) Thumbnail(ctx context.Context, uuid string) ([]byte, error) {
	return e.kv.Get(ctx, uuid, store.BucketThumbnails)
}

func downscale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}
	nw, nh := maxDim, maxDim
	if w > h {
		nh = h * maxDim / w
	} else {
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Package thumbnail produces small debug-dump PNGs for a detector's cut
// list: one downscaled still per detected boundary, so a human reviewing a
// run's shot detection can eyeball whether the cuts line up with real edits
// without scrubbing the source video. This sits entirely off the
// reconciliation hot path -- nothing in internal/montage/reconcile,
// internal/montage/orchestrator, or internal/montage/finalize reads these
// files back; a failure here is logged and swallowed, never propagated.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/reelsheet/montage-core/internal/montage/shotdetect"
	"github.com/reelsheet/montage-core/internal/platform/localmedia"
	"github.com/reelsheet/montage-core/internal/platform/logger"
)

const maxWidth = 160

// Dumper extracts and downscales one still per cut, for local inspection.
type Dumper struct {
	log   *logger.Logger
	tools localmedia.Tools
}

func New(log *logger.Logger, tools localmedia.Tools) *Dumper {
	return &Dumper{log: log.With("component", "shotdetect.thumbnail"), tools: tools}
}

// DumpCuts writes one thumbnail per cut into destDir, named by cut index.
// Best-effort: a single frame's failure is logged and skipped rather than
// aborting the rest of the dump.
func (d *Dumper) DumpCuts(ctx context.Context, videoPath, destDir string, cuts []shotdetect.Cut) {
	if d == nil || d.tools == nil || len(cuts) == 0 {
		return
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		d.log.Warn("thumbnail: mkdir destDir failed, skipping dump", "error", err)
		return
	}
	for i, c := range cuts {
		framePath := filepath.Join(destDir, fmt.Sprintf("cut_%04d.jpg", i))
		if err := d.tools.ExtractFrame(ctx, videoPath, c.TimestampSeconds, framePath); err != nil {
			d.log.Warn("thumbnail: extract frame failed, skipping", "cut_index", i, "error", err)
			continue
		}
		thumbPath := filepath.Join(destDir, fmt.Sprintf("cut_%04d_thumb.png", i))
		if err := downscaleToPNG(framePath, thumbPath); err != nil {
			d.log.Warn("thumbnail: downscale failed, skipping", "cut_index", i, "error", err)
		}
		_ = os.Remove(framePath)
	}
}

func downscaleToPNG(srcPath, dstPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source frame: %w", err)
	}
	defer f.Close()

	src, err := jpeg.Decode(f)
	if err != nil {
		return fmt.Errorf("decode source frame: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("source frame has empty bounds")
	}
	if width > maxWidth {
		height = height * maxWidth / width
		width = maxWidth
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create thumbnail file: %w", err)
	}
	defer out.Close()
	if err := png.Encode(out, dst); err != nil {
		return fmt.Errorf("encode thumbnail png: %w", err)
	}
	return nil
}

// Package chunkplan computes the fixed-length, non-overlapping chunk
// windows a video is split into (§4.2). No teacher analog — pure windowing
// arithmetic built directly from spec.md.
package chunkplan

import (
	"fmt"

	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/montage/timecode"
	"github.com/reelsheet/montage-core/internal/types"
)

// Window is one planned chunk before it has been cut or uploaded.
type Window struct {
	Index         int
	StartSeconds  float64
	EndSeconds    float64
	StartTimecode string
	EndTimecode   string
}

// Plan partitions [0, duration) into windows of chunkLength seconds with no
// overlap. Overlap was deliberately removed upstream (it produced
// duplicates the de-duplicator couldn't cleanly resolve), so this only
// accepts a length, not a length+overlap pair. A trailing window shorter
// than absorbSeconds is folded into the previous window instead of being
// emitted on its own. A video with duration <= chunkLength yields a single
// window.
func Plan(duration, chunkLength, absorbSeconds float64, fps float64) ([]Window, error) {
	if duration <= 0 {
		return nil, mgerr.Validation(fmt.Errorf("%w: duration must be positive, got %v", mgerr.ErrUnsupportedDuration, duration))
	}
	if chunkLength <= 0 {
		return nil, mgerr.Validation(fmt.Errorf("%w: chunk length must be positive, got %v", mgerr.ErrUnsupportedDuration, chunkLength))
	}

	bounds := []float64{0}
	for bounds[len(bounds)-1] < duration {
		next := bounds[len(bounds)-1] + chunkLength
		if next > duration {
			next = duration
		}
		bounds = append(bounds, next)
	}
	if len(bounds) < 2 {
		bounds = []float64{0, duration}
	}

	// Absorb a too-short trailing window into the one before it.
	if len(bounds) > 2 {
		last := len(bounds) - 1
		if bounds[last]-bounds[last-1] < absorbSeconds {
			bounds = append(bounds[:last-1], bounds[last])
		}
	}

	windows := make([]Window, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		startTC := timecode.AtWholeSecond(bounds[i])
		endTC := timecode.AtWholeSecond(bounds[i+1])
		windows = append(windows, Window{
			Index:         i,
			StartSeconds:  bounds[i],
			EndSeconds:    bounds[i+1],
			StartTimecode: startTC,
			EndTimecode:   endTC,
		})
	}
	return windows, nil
}

// ToChunkStates converts a plan into the pending types.ChunkState rows a
// freshly-initialized ProgressDocument carries.
func ToChunkStates(windows []Window) []types.ChunkState {
	out := make([]types.ChunkState, 0, len(windows))
	for _, w := range windows {
		out = append(out, types.ChunkState{
			Index:         w.Index,
			StartTimecode: w.StartTimecode,
			EndTimecode:   w.EndTimecode,
			Status:        types.ChunkStatusPending,
		})
	}
	return out
}

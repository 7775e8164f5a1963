// Package timecode converts between HH:MM:SS:FF video timecodes and
// fractional seconds at a per-video frame rate. It has no teacher analog —
// the teacher repo does no frame-accurate media math — so this is built
// directly from the formulas spec.md names, in the small single-purpose
// package style the teacher uses for narrow platform concerns (see
// internal/platform/gcp's one-file-per-concern layout).
package timecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reelsheet/montage-core/internal/montage/mgerr"
)

// ToSeconds converts "HH:MM:SS:FF" at fps into fractional seconds:
// h*3600 + m*60 + s + f/fps.
func ToSeconds(tc string, fps float64) (float64, error) {
	h, m, s, f, err := parse(tc)
	if err != nil {
		return 0, err
	}
	if fps <= 0 {
		return 0, mgerr.Validation(fmt.Errorf("%w: non-positive fps %v", mgerr.ErrInvalidTimecode, fps))
	}
	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(f)/fps, nil
}

// FromSeconds converts fractional seconds into "HH:MM:SS:FF" at fps,
// rounding to the nearest whole frame and carrying frame overflow into
// seconds per spec.md's "((frames mod fps)+fps) mod fps" rule.
func FromSeconds(totalSeconds float64, fps float64) (string, error) {
	if fps <= 0 {
		return "", mgerr.Validation(fmt.Errorf("%w: non-positive fps %v", mgerr.ErrInvalidTimecode, fps))
	}
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	totalFrames := int64(totalSeconds*fps + 0.5)
	fpsInt := int64(fps + 0.5)
	if fpsInt <= 0 {
		fpsInt = 1
	}
	frames := ((totalFrames % fpsInt) + fpsInt) % fpsInt
	totalWholeSeconds := (totalFrames - frames) / fpsInt
	secs := totalWholeSeconds % 60
	totalMinutes := totalWholeSeconds / 60
	mins := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, mins, secs, frames), nil
}

// AtWholeSecond rounds seconds to the nearest whole second and formats it
// with frames=0, used for chunk boundaries which are always emitted at whole
// seconds regardless of later frame-level model output.
func AtWholeSecond(totalSeconds float64) string {
	s := int64(totalSeconds + 0.5)
	secs := s % 60
	totalMinutes := s / 60
	mins := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:00", hours, mins, secs)
}

// FramesBetween returns the signed frame count from a to b at fps.
func FramesBetween(a, b string, fps float64) (int64, error) {
	as, err := ToSeconds(a, fps)
	if err != nil {
		return 0, err
	}
	bs, err := ToSeconds(b, fps)
	if err != nil {
		return 0, err
	}
	d := (bs - as) * fps
	if d < 0 {
		return int64(d - 0.5), nil
	}
	return int64(d + 0.5), nil
}

func parse(tc string) (h, m, s, f int, err error) {
	parts := strings.Split(strings.TrimSpace(tc), ":")
	if len(parts) != 4 {
		return 0, 0, 0, 0, mgerr.Validation(fmt.Errorf("%w: %q (want HH:MM:SS:FF)", mgerr.ErrInvalidTimecode, tc))
	}
	vals := make([]int, 4)
	for i, p := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil || n < 0 {
			return 0, 0, 0, 0, mgerr.Validation(fmt.Errorf("%w: %q", mgerr.ErrInvalidTimecode, tc))
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// Package credits implements the opening/closing credits merge heuristics
// that fold raw shot-boundary cuts into mergedScenes (§4.4). No teacher
// analog — built directly from spec.md's sliding-window rules.
package credits

import (
	"github.com/reelsheet/montage-core/internal/montage/timecode"
	"github.com/reelsheet/montage-core/internal/types"
)

// Thresholds carries the configurable knobs spec.md names as constants;
// internal/montage/config supplies the defaults (resolving Open Question 1
// in favor of configuration).
type Thresholds struct {
	OpeningWindowSeconds float64
	ClosingWindowSeconds float64
}

// Merge folds a sorted list of raw cut timestamps (seconds, ascending) into
// mergedScenes, applying the opening/closing credits heuristics. fps is
// needed to render timecodes; duration is the full video length.
func Merge(cuts []float64, duration, fps float64, th Thresholds) []types.MergedScene {
	if len(cuts) == 0 {
		return nil
	}
	bounds := normalizeBounds(cuts, duration)

	openEndIdx, openLogoIdx := detectOpening(bounds, duration, th.OpeningWindowSeconds)
	closeStartIdx := detectClosing(bounds, duration, th.ClosingWindowSeconds)

	var scenes []types.MergedScene
	cursor := 0

	if openEndIdx > 0 {
		if openLogoIdx > 0 && openLogoIdx < openEndIdx {
			scenes = append(scenes, buildScene(bounds, 0, openLogoIdx, fps, types.MergedSceneOpeningCredits))
			scenes = append(scenes, buildScene(bounds, openLogoIdx, openEndIdx, fps, types.MergedSceneOpeningCredits))
		} else {
			scenes = append(scenes, buildScene(bounds, 0, openEndIdx, fps, types.MergedSceneOpeningCredits))
		}
		cursor = openEndIdx
	}

	regularEnd := len(bounds) - 1
	if closeStartIdx > cursor && closeStartIdx < len(bounds) {
		regularEnd = closeStartIdx
	}

	for i := cursor; i < regularEnd; i++ {
		scenes = append(scenes, buildScene(bounds, i, i+1, fps, types.MergedSceneRegular))
	}

	if closeStartIdx > cursor && closeStartIdx < len(bounds)-1 {
		scenes = append(scenes, buildScene(bounds, closeStartIdx, len(bounds)-1, fps, types.MergedSceneClosingCredits))
	}

	return scenes
}

// normalizeBounds ensures a leading boundary at 0 (within 0.5s) and a
// trailing boundary at duration (within 2s of the last cut), per the
// detector's emission contract (§4.3) -- credits merge operates on whatever
// boundary list it's handed, so it re-asserts the same guarantee
// defensively in case an upstream caller passes a raw, unpadded cut list.
func normalizeBounds(cuts []float64, duration float64) []float64 {
	bounds := make([]float64, 0, len(cuts)+2)
	if len(cuts) == 0 || cuts[0] > 0.5 {
		bounds = append(bounds, 0)
	}
	bounds = append(bounds, cuts...)
	if duration-bounds[len(bounds)-1] > 2.0 {
		bounds = append(bounds, duration)
	} else {
		bounds[len(bounds)-1] = duration
	}
	return bounds
}

// detectOpening returns the bound index where the opening credits are
// declared over (openEndIdx), and, if found, the index of the first cut in
// [3,8]s marking the end of the logo segment (openLogoIdx, 0 if none).
func detectOpening(bounds []float64, duration, windowSeconds float64) (openEndIdx, openLogoIdx int) {
	window := windowSeconds
	if alt := 0.15 * duration; alt < window {
		window = alt
	}
	if window <= 0 {
		return 0, 0
	}

	// Eligibility: >= 10 cuts within the first 90s.
	cutsInFirst90 := 0
	for _, b := range bounds {
		if b <= 90 {
			cutsInFirst90++
		}
	}
	if cutsInFirst90 < 10 {
		return 0, 0
	}

	for i := 5; i < len(bounds)-5; i++ {
		if bounds[i] > window {
			break
		}
		avgRecent := windowAvgDuration(bounds, i, i+5)
		avgPrevious := windowAvgDuration(bounds, i-5, i)
		if avgPrevious <= 0 {
			continue
		}
		elapsed := bounds[i]
		if elapsed < 30 {
			continue
		}
		if avgRecent > 1.5*avgPrevious || avgRecent > 2.5 {
			openEndIdx = i
			break
		}
	}
	if openEndIdx == 0 {
		return 0, 0
	}

	for i := 0; i < openEndIdx; i++ {
		if bounds[i] >= 3 && bounds[i] <= 8 {
			openLogoIdx = i
			break
		}
	}
	return openEndIdx, openLogoIdx
}

// detectClosing returns the bound index where the closing credits begin, or
// 0 if no closing credits interval was detected.
func detectClosing(bounds []float64, duration, windowSeconds float64) int {
	_ = windowSeconds // closing window is derived from the main-region cutoffs below, kept for signature symmetry with detectOpening
	mainStart, mainEnd := findMainRegionBounds(bounds, duration)
	if mainEnd <= mainStart {
		return 0
	}
	mainAvg := windowAvgDuration(bounds, mainStart, mainEnd)
	if mainAvg <= 0 {
		return 0
	}

	for i := len(bounds) - 1 - 5; i >= 5; i-- {
		avgWindow := windowAvgDuration(bounds, i, i+5)
		avgBefore := windowAvgDuration(bounds, i-5, i)
		if avgBefore < 0.5*mainAvg || avgBefore > 2.0*mainAvg {
			continue
		}
		if avgWindow < 0.4*mainAvg || avgWindow > 2.5*mainAvg {
			if duration-bounds[i] >= 15 {
				return i
			}
		}
	}
	return 0
}

func findMainRegionBounds(bounds []float64, duration float64) (startIdx, endIdx int) {
	cutoff := duration * 0.9
	startIdx, endIdx = -1, -1
	for i, b := range bounds {
		if b >= 60 && startIdx == -1 {
			startIdx = i
		}
		if b < cutoff {
			endIdx = i
		}
	}
	if startIdx == -1 {
		startIdx = 0
	}
	if endIdx < startIdx {
		endIdx = len(bounds) - 1
	}
	return startIdx, endIdx
}

func windowAvgDuration(bounds []float64, from, to int) float64 {
	if to <= from || to >= len(bounds) || from < 0 {
		return 0
	}
	total := 0.0
	count := 0
	for i := from; i < to; i++ {
		total += bounds[i+1] - bounds[i]
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func buildScene(bounds []float64, fromIdx, toIdx int, fps float64, sceneType string) types.MergedScene {
	start := bounds[fromIdx]
	end := bounds[toIdx]
	startTC, _ := timecode.FromSeconds(start, fps)
	endTC, _ := timecode.FromSeconds(end, fps)
	return types.MergedScene{
		StartTimecode:       startTC,
		EndTimecode:         endTC,
		StartTimestamp:      start,
		EndTimestamp:        end,
		Type:                sceneType,
		OriginalScenesCount: toIdx - fromIdx,
	}
}

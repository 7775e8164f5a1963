// Package reconcile aligns parsed scenes against detector boundaries for
// one chunk (§4.9). No teacher analog — built directly from spec.md's
// perfect-match/clamp rules.
package reconcile

import (
	"github.com/reelsheet/montage-core/internal/montage/parser"
	"github.com/reelsheet/montage-core/internal/montage/timecode"
)

// Boundary is one detector-reported cut window within a chunk.
type Boundary struct {
	StartTimecode string
	EndTimecode   string
}

// Scene is a final, reconciled scene ready for entry insertion.
type Scene struct {
	Start       string
	End         string
	PlanType    string
	Description string
	Dialogues   string
}

const defaultPlanType = "Ср."
const defaultDialogues = "Музыка"

// Reconcile implements §4.9: perfect positional alignment when |P| == |B|,
// otherwise clamp P's own timecodes to [chunkStart-1s, chunkEnd), or use P
// directly (still clamped) when B is empty.
func Reconcile(parsed []parser.Scene, boundaries []Boundary, chunkStartTC, chunkEndTC string, fps float64) []Scene {
	if len(parsed) == 0 {
		return nil
	}
	if len(boundaries) == len(parsed) && len(boundaries) > 0 {
		return alignPositional(parsed, boundaries)
	}
	return clamp(parsed, chunkStartTC, chunkEndTC, fps)
}

func alignPositional(parsed []parser.Scene, boundaries []Boundary) []Scene {
	out := make([]Scene, len(parsed))
	for i := range parsed {
		out[i] = Scene{
			Start:       boundaries[i].StartTimecode,
			End:         boundaries[i].EndTimecode,
			PlanType:    fallback(parsed[i].PlanType, defaultPlanType),
			Description: parsed[i].Description,
			Dialogues:   fallback(parsed[i].Dialogues, defaultDialogues),
		}
	}
	return out
}

func clamp(parsed []parser.Scene, chunkStartTC, chunkEndTC string, fps float64) []Scene {
	chunkStart, errStart := timecode.ToSeconds(chunkStartTC, fps)
	chunkEnd, errEnd := timecode.ToSeconds(chunkEndTC, fps)
	if errStart != nil || errEnd != nil {
		chunkStart, chunkEnd = 0, 0
	}
	lowerBound := chunkStart - 1.0

	out := make([]Scene, 0, len(parsed))
	for _, p := range parsed {
		startSec, err := timecode.ToSeconds(p.Start, fps)
		if err != nil {
			continue
		}
		if startSec < lowerBound || startSec >= chunkEnd {
			continue
		}
		out = append(out, Scene{
			Start:       p.Start,
			End:         p.End,
			PlanType:    fallback(p.PlanType, defaultPlanType),
			Description: p.Description,
			Dialogues:   fallback(p.Dialogues, defaultDialogues),
		})
	}
	return out
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

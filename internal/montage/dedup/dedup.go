// Package dedup implements the exact/near-duplicate entry removal and the
// gap/overlap validator run by the finalizer (§4.13). No teacher analog —
// built directly from spec.md's Jaccard-similarity and frame-window rules.
package dedup

import (
	"regexp"
	"strings"

	"github.com/reelsheet/montage-core/internal/montage/timecode"
	"github.com/reelsheet/montage-core/internal/types"
)

// Candidate is the minimal shape dedup/validate operate on; callers project
// types.MontageEntry into this to keep the package storage-agnostic.
type Candidate struct {
	ID            string
	StartTimecode string
	EndTimecode   string
	Description   string
	Dialogues     string
}

// Result names which candidate IDs survive and which were dropped.
type Result struct {
	KeptIDs     []string
	DroppedIDs  []string
}

// Dedup drops exact duplicates ((start, end) collisions, keep-first) and
// near-duplicates (Jaccard-similar description/dialogue text within a 2s
// start-timecode window), in spec.md §4.13's order: exact pass first, then
// near-duplicate pass over what's left.
func Dedup(entries []Candidate, fps float64) Result {
	kept := make([]Candidate, 0, len(entries))
	dropped := make([]string, 0)

	seenExact := make(map[string]bool, len(entries))
	for _, e := range entries {
		key := e.StartTimecode + "|" + e.EndTimecode
		if seenExact[key] {
			dropped = append(dropped, e.ID)
			continue
		}
		seenExact[key] = true
		kept = append(kept, e)
	}

	kept, nearDropped := dropNearDuplicates(kept, fps)
	dropped = append(dropped, nearDropped...)

	keptIDs := make([]string, 0, len(kept))
	for _, e := range kept {
		keptIDs = append(keptIDs, e.ID)
	}
	return Result{KeptIDs: keptIDs, DroppedIDs: dropped}
}

func dropNearDuplicates(entries []Candidate, fps float64) ([]Candidate, []string) {
	starts := make([]float64, len(entries))
	for i, e := range entries {
		s, err := timecode.ToSeconds(e.StartTimecode, fps)
		if err != nil {
			s = 0
		}
		starts[i] = s
	}

	dropped := make(map[int]bool)
	var droppedIDs []string
	for i := 0; i < len(entries); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if dropped[j] {
				continue
			}
			diff := starts[j] - starts[i]
			if diff < 0 {
				diff = -diff
			}
			if diff >= 2.0 {
				continue
			}
			descSim := jaccard(tokenize(entries[i].Description), tokenize(entries[j].Description))
			dialogueSim := jaccard(tokenize(entries[i].Dialogues), tokenize(entries[j].Dialogues))
			combined := 0.7*descSim + 0.3*dialogueSim
			threshold := 0.6
			if diff < 0.5 {
				threshold = 0.4
			}
			if combined > threshold {
				// Drop the later entry (higher start timestamp).
				dropped[j] = true
				droppedIDs = append(droppedIDs, entries[j].ID)
			}
		}
	}

	out := make([]Candidate, 0, len(entries))
	for i, e := range entries {
		if !dropped[i] {
			out = append(out, e)
		}
	}
	return out, droppedIDs
}

var tokenPattern = regexp.MustCompile(`[a-zA-Zа-яА-ЯёЁ]{2,}`)

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		out[tok] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// PacingBucket names the expected-plan-count pacing estimate the validator
// logs alongside gap/overlap warnings.
type PacingBucket string

const (
	PacingSlow   PacingBucket = "slow"
	PacingMedium PacingBucket = "medium"
	PacingFast   PacingBucket = "fast"
)

var pacingPlansPerMinute = map[PacingBucket]float64{
	PacingSlow:   10,
	PacingMedium: 15,
	PacingFast:   22,
}

// ExpectedPlanCount estimates plan count for a pacing bucket given the
// video's duration in minutes.
func ExpectedPlanCount(durationMinutes float64, bucket PacingBucket) float64 {
	return durationMinutes * pacingPlansPerMinute[bucket]
}

// Warning is one gap or overlap flagged between two adjacent entries.
type Warning struct {
	BeforeID string
	AfterID  string
	Kind     string // "gap" or "overlap"
	Frames   int64
}

// Validate walks entries in orderIndex order (caller must pre-sort) and
// flags adjacent-pair gaps/overlaps measured in frames at fps. It never
// errors — these are warnings, not failures, per spec.md §4.13.
func Validate(entries []Candidate, fps float64) []Warning {
	var warnings []Warning
	for i := 1; i < len(entries); i++ {
		prevEndFrame, err1 := timecodeToFrame(entries[i-1].EndTimecode, fps)
		curStartFrame, err2 := timecodeToFrame(entries[i].StartTimecode, fps)
		if err1 != nil || err2 != nil {
			continue
		}
		delta := curStartFrame - prevEndFrame
		switch {
		case delta > 0:
			warnings = append(warnings, Warning{BeforeID: entries[i-1].ID, AfterID: entries[i].ID, Kind: "gap", Frames: delta})
		case delta < 0:
			warnings = append(warnings, Warning{BeforeID: entries[i-1].ID, AfterID: entries[i].ID, Kind: "overlap", Frames: -delta})
		}
	}
	return warnings
}

func timecodeToFrame(tc string, fps float64) (int64, error) {
	secs, err := timecode.ToSeconds(tc, fps)
	if err != nil {
		return 0, err
	}
	return int64(secs*fps + 0.5), nil
}

// FromEntries projects persisted entries into dedup Candidates.
func FromEntries(entries []*types.MontageEntry) []Candidate {
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, Candidate{
			ID:            e.ID.String(),
			StartTimecode: e.StartTC,
			EndTimecode:   e.EndTC,
			Description:   e.Description,
			Dialogues:     e.Dialogues,
		})
	}
	return out
}

// Package finalize implements C12: the steps that run once enough of a
// video's chunks have reached a terminal status. No teacher analog for the
// dedup/renumber/validate sequence itself (built directly from spec.md
// §4.12); the "load everything, mutate, then make the terminal repo call"
// shape mirrors the teacher's course-finalization step in
// internal/services/course (same load-all/transform/persist-once skeleton,
// generalized to a thinner set of repos).
package finalize

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/reelsheet/montage-core/internal/montage/dedup"
	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/montage/timecode"
	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/repos"
	"github.com/reelsheet/montage-core/internal/types"
)

// Result summarizes one finalization run for the caller/response surface.
type Result struct {
	KeptEntries    int
	DroppedEntries int
	Warnings       []dedup.Warning
}

// Finalize runs §4.12's five steps against sheetID's entries and, on
// success, marks the video completed with the given progress document
// attached. The steps are not transactional: duplicate deletion and
// renumbering are applied before the video is marked completed, so an error
// in a later step leaves them in place. Errors propagate to the caller,
// which marks the video failed.
func Finalize(ctx context.Context, log *logger.Logger, entryRepo repos.EntryRepo, videoRepo repos.VideoRepo, videoID uuid.UUID, sheetID uuid.UUID, fps float64, doc *types.ProgressDocument) (*Result, error) {
	slog := log.With("component", "finalize", "video_id", videoID.String())

	entries, err := entryRepo.ListBySheetID(ctx, nil, sheetID)
	if err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("load entries: %w", err))
	}

	candidates := dedup.FromEntries(entries)
	result := dedup.Dedup(candidates, fps)

	if len(result.DroppedIDs) > 0 {
		droppedIDs, err := parseUUIDs(result.DroppedIDs)
		if err != nil {
			return nil, mgerr.PerVideoTerminal(fmt.Errorf("parse dropped ids: %w", err))
		}
		if err := entryRepo.DeleteByIDs(ctx, nil, droppedIDs); err != nil {
			return nil, mgerr.PerVideoTerminal(fmt.Errorf("delete duplicate entries: %w", err))
		}
	}

	keptByID := make(map[string]*types.MontageEntry, len(entries))
	for _, e := range entries {
		keptByID[e.ID.String()] = e
	}
	orderedIDs := make([]uuid.UUID, 0, len(result.KeptIDs))
	orderedCandidates := make([]dedup.Candidate, 0, len(result.KeptIDs))
	for _, id := range result.KeptIDs {
		e, ok := keptByID[id]
		if !ok {
			continue
		}
		orderedIDs = append(orderedIDs, e.ID)
		orderedCandidates = append(orderedCandidates, dedup.Candidate{
			ID:            id,
			StartTimecode: e.StartTC,
			EndTimecode:   e.EndTC,
			Description:   e.Description,
			Dialogues:     e.Dialogues,
		})
	}

	if err := entryRepo.RenumberAll(ctx, nil, orderedIDs); err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("renumber entries: %w", err))
	}

	warnings := dedup.Validate(orderedCandidates, fps)
	for _, w := range warnings {
		slog.Warn("finalize validation warning", "kind", w.Kind, "before", w.BeforeID, "after", w.AfterID, "frames", w.Frames)
	}

	durationMinutes := estimateDurationMinutes(doc, fps)
	bucket, expected := bestPacingMatch(durationMinutes, len(orderedIDs))
	slog.Info("finalize pacing estimate", "bucket", bucket, "expected_plan_count", expected, "actual_plan_count", len(orderedIDs))

	if err := videoRepo.Complete(ctx, nil, videoID, doc); err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("mark video completed: %w", err))
	}

	return &Result{
		KeptEntries:    len(orderedIDs),
		DroppedEntries: len(result.DroppedIDs),
		Warnings:       warnings,
	}, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func estimateDurationMinutes(doc *types.ProgressDocument, fps float64) float64 {
	if doc == nil || len(doc.Chunks) == 0 {
		return 0
	}
	last := doc.Chunks[len(doc.Chunks)-1]
	secs, err := timecode.ToSeconds(last.EndTimecode, fps)
	if err != nil {
		return 0
	}
	return secs / 60.0
}

// bestPacingMatch picks whichever pacing bucket's expected count is closest
// to the actual surviving plan count, purely for the logged estimate -- it
// never changes finalize's outcome.
func bestPacingMatch(durationMinutes float64, actual int) (dedup.PacingBucket, float64) {
	best := dedup.PacingMedium
	bestExpected := dedup.ExpectedPlanCount(durationMinutes, best)
	bestDiff := diff(bestExpected, actual)
	for _, bucket := range []dedup.PacingBucket{dedup.PacingSlow, dedup.PacingFast} {
		expected := dedup.ExpectedPlanCount(durationMinutes, bucket)
		if d := diff(expected, actual); d < bestDiff {
			best, bestExpected, bestDiff = bucket, expected, d
		}
	}
	return best, bestExpected
}

func diff(expected float64, actual int) float64 {
	d := expected - float64(actual)
	if d < 0 {
		d = -d
	}
	return d
}

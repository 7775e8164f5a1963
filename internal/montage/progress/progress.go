// Package progress implements the pure state-machine transitions over a
// types.ProgressDocument (§4.10): chunk status transitions, partitioning the
// chunk set into pending/processing/completed/failed, and folding registry
// updates back in. It holds no storage handle of its own -- internal/repos
// owns reading and conditionally writing the serialized document; this
// package only knows how to mutate the in-memory shape correctly. No teacher
// analog: the teacher's closest state machine (CourseGenerationRun.Metadata)
// is mutated ad hoc inline at each call site, whereas this is pulled out
// into its own small package because §4.10's transitions are reused from
// three different places (init, drive, schedule resume).
package progress

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/reelsheet/montage-core/internal/montage/chunkplan"
	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/montage/registry"
	"github.com/reelsheet/montage-core/internal/montage/timecode"
	"github.com/reelsheet/montage-core/internal/types"
)

const processingVersion = "montage-core/1"

// Initialize builds the freshly-seeded progress document a video's init step
// persists once chunk planning, shot detection, and splitting have all
// completed.
func Initialize(sheetID uuid.UUID, windows []chunkplan.Window, storageURLs []string, fps float64, detected []types.DetectedScene, merged []types.MergedScene, scriptData []types.ScriptCharacter) *types.ProgressDocument {
	chunks := chunkplan.ToChunkStates(windows)
	for i := range chunks {
		if i < len(storageURLs) {
			chunks[i].StorageURL = storageURLs[i]
		}
	}
	return &types.ProgressDocument{
		ProcessingVersion: processingVersion,
		SheetID:           sheetID,
		TotalChunks:       len(chunks),
		CompletedChunks:   0,
		CurrentChunk:      0,
		VideoFps:          fps,
		Chunks:            chunks,
		DetectedScenes:    detected,
		MergedScenes:      merged,
		CharacterRegistry: registry.FromScript(scriptData),
		ScriptData:        scriptData,
	}
}

// Transition moves doc.Chunks[index] from `from` to `to`, refusing (with
// ErrConcurrentTransition) when the chunk's current status no longer
// matches `from` -- another worker already advanced it.
func Transition(doc *types.ProgressDocument, index int, from, to string) error {
	if doc == nil || index < 0 || index >= len(doc.Chunks) {
		return mgerr.PerVideoTerminal(fmt.Errorf("%w: chunk index %d out of range", mgerr.ErrProgressUnreadable, index))
	}
	chunk := &doc.Chunks[index]
	if chunk.Status != from {
		return mgerr.Transient(index, fmt.Errorf("%w: chunk %d is %q, wanted %q", mgerr.ErrConcurrentTransition, index, chunk.Status, from))
	}
	chunk.Status = to
	return nil
}

// BeginProcessing transitions a chunk into processing, also accepting a
// chunk that is already processing (the orchestrator resuming a run left
// mid-batch by a prior crashed worker). It reports false only when the
// chunk is in a terminal status, in which case the caller should skip it.
func BeginProcessing(doc *types.ProgressDocument, index int) bool {
	if doc == nil || index < 0 || index >= len(doc.Chunks) {
		return false
	}
	switch doc.Chunks[index].Status {
	case types.ChunkStatusPending, types.ChunkStatusProcessing:
		doc.Chunks[index].Status = types.ChunkStatusProcessing
		return true
	default:
		return false
	}
}

// SetStorageURL records the uploaded chunk's storage location, independent
// of status transitions (it is set once at init and never revisited).
func SetStorageURL(doc *types.ProgressDocument, index int, url string) {
	if doc == nil || index < 0 || index >= len(doc.Chunks) {
		return
	}
	doc.Chunks[index].StorageURL = url
}

// ResetToPending flips a chunk back to pending ahead of the orchestrator's
// one-shot retry pass over failures (§4.11), preserving its index, window,
// and storage URL.
func ResetToPending(doc *types.ProgressDocument, index int) {
	if doc == nil || index < 0 || index >= len(doc.Chunks) {
		return
	}
	doc.Chunks[index].Status = types.ChunkStatusPending
}

// RecalcCompletedChunks recomputes CompletedChunks from the current chunk
// statuses, keeping the denormalized counter honest after a batch of
// transitions.
func RecalcCompletedChunks(doc *types.ProgressDocument) {
	if doc == nil {
		return
	}
	n := 0
	for _, c := range doc.Chunks {
		if c.Status == types.ChunkStatusCompleted {
			n++
		}
	}
	doc.CompletedChunks = n
}

// Partition splits chunk indices by current status.
func Partition(doc *types.ProgressDocument) (pending, processing, completed, failed []int) {
	if doc == nil {
		return nil, nil, nil, nil
	}
	for _, c := range doc.Chunks {
		switch c.Status {
		case types.ChunkStatusPending:
			pending = append(pending, c.Index)
		case types.ChunkStatusProcessing:
			processing = append(processing, c.Index)
		case types.ChunkStatusCompleted:
			completed = append(completed, c.Index)
		case types.ChunkStatusFailed:
			failed = append(failed, c.Index)
		}
	}
	return pending, processing, completed, failed
}

// MergeRegistry folds newly-extracted speaker names for chunkIndex into
// doc.CharacterRegistry in place.
func MergeRegistry(doc *types.ProgressDocument, names []string, chunkIndex int, chunkStartTimecode string) {
	if doc == nil {
		return
	}
	doc.CharacterRegistry = registry.Merge(doc.CharacterRegistry, names, chunkIndex, chunkStartTimecode, doc.ScriptData)
}

// AllTerminal reports whether every chunk has left pending/processing.
func AllTerminal(doc *types.ProgressDocument) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.Chunks {
		if c.Status == types.ChunkStatusPending || c.Status == types.ChunkStatusProcessing {
			return false
		}
	}
	return true
}

// ChunkWindowSeconds resolves a chunk's [start, end) in seconds at the
// document's detected fps, for reconciliation against mergedScenes.
func ChunkWindowSeconds(doc *types.ProgressDocument, index int) (start, end float64, err error) {
	if doc == nil || index < 0 || index >= len(doc.Chunks) {
		return 0, 0, fmt.Errorf("chunk index %d out of range", index)
	}
	chunk := doc.Chunks[index]
	start, err = timecode.ToSeconds(chunk.StartTimecode, doc.VideoFps)
	if err != nil {
		return 0, 0, err
	}
	end, err = timecode.ToSeconds(chunk.EndTimecode, doc.VideoFps)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// MergedScenesInWindow returns the mergedScenes whose start falls inside
// [start-1s, end), the chunkWindow ∩ mergedScenes intersection (with one
// second of slack before the window) that §4.9's reconciler consumes as
// detector boundaries.
func MergedScenesInWindow(doc *types.ProgressDocument, start, end float64) []types.MergedScene {
	if doc == nil {
		return nil
	}
	var out []types.MergedScene
	for _, s := range doc.MergedScenes {
		if s.StartTimestamp >= start-1.0 && s.StartTimestamp < end {
			out = append(out, s)
		}
	}
	return out
}

package finalize

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/repos"
	"github.com/reelsheet/montage-core/internal/types"
)

// fakeEntryRepo is an in-memory stand-in for repos.EntryRepo, keyed by
// sheet ID, so Finalize's dedup/renumber sequence can be exercised without
// a database.
type fakeEntryRepo struct {
	bySheet map[uuid.UUID][]*types.MontageEntry
	deleted []uuid.UUID
}

func newFakeEntryRepo(entries []*types.MontageEntry) *fakeEntryRepo {
	f := &fakeEntryRepo{bySheet: make(map[uuid.UUID][]*types.MontageEntry)}
	for _, e := range entries {
		f.bySheet[e.SheetID] = append(f.bySheet[e.SheetID], e)
	}
	return f
}

func (f *fakeEntryRepo) CreateBatch(ctx context.Context, tx *gorm.DB, entries []*types.MontageEntry) ([]*types.MontageEntry, error) {
	for _, e := range entries {
		f.bySheet[e.SheetID] = append(f.bySheet[e.SheetID], e)
	}
	return entries, nil
}

func (f *fakeEntryRepo) ListBySheetID(ctx context.Context, tx *gorm.DB, sheetID uuid.UUID) ([]*types.MontageEntry, error) {
	return f.bySheet[sheetID], nil
}

func (f *fakeEntryRepo) DeleteBySheetID(ctx context.Context, tx *gorm.DB, sheetID uuid.UUID) error {
	delete(f.bySheet, sheetID)
	return nil
}

func (f *fakeEntryRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	f.deleted = append(f.deleted, ids...)
	dropped := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		dropped[id] = true
	}
	for sheetID, entries := range f.bySheet {
		kept := entries[:0]
		for _, e := range entries {
			if !dropped[e.ID] {
				kept = append(kept, e)
			}
		}
		f.bySheet[sheetID] = kept
	}
	return nil
}

func (f *fakeEntryRepo) RenumberAll(ctx context.Context, tx *gorm.DB, orderedIDs []uuid.UUID) error {
	byID := make(map[uuid.UUID]*types.MontageEntry)
	for _, entries := range f.bySheet {
		for _, e := range entries {
			byID[e.ID] = e
		}
	}
	for i, id := range orderedIDs {
		e, ok := byID[id]
		if !ok {
			continue
		}
		e.PlanNumber = i + 1
		e.OrderIndex = i + 1
	}
	return nil
}

var _ repos.EntryRepo = (*fakeEntryRepo)(nil)

// fakeVideoRepo implements repos.VideoRepo; Finalize only ever calls
// Complete, the rest are no-ops kept to satisfy the interface.
type fakeVideoRepo struct {
	completed       bool
	completeErr     error
	completedDocArg *types.ProgressDocument
}

func (f *fakeVideoRepo) Create(ctx context.Context, tx *gorm.DB, video *types.Video) (*types.Video, error) {
	return video, nil
}
func (f *fakeVideoRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Video, error) {
	return nil, nil
}
func (f *fakeVideoRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error { return nil }
func (f *fakeVideoRepo) ClaimForProcessing(ctx context.Context, tx *gorm.DB, id uuid.UUID, staleAfter time.Duration) (*types.Video, error) {
	return nil, nil
}
func (f *fakeVideoRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress *types.ProgressDocument) error {
	return nil
}
func (f *fakeVideoRepo) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress *types.ProgressDocument) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = true
	f.completedDocArg = progress
	return nil
}
func (f *fakeVideoRepo) Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, message string) error {
	return nil
}
func (f *fakeVideoRepo) ListStaleProcessing(ctx context.Context, tx *gorm.DB, staleAfter time.Duration) ([]*types.Video, error) {
	return nil, nil
}

var _ repos.VideoRepo = (*fakeVideoRepo)(nil)

func newEntry(sheetID uuid.UUID, start, end, desc string) *types.MontageEntry {
	return &types.MontageEntry{
		ID:          uuid.New(),
		SheetID:     sheetID,
		StartTC:     start,
		EndTC:       end,
		PlanType:    "Общ.",
		Description: desc,
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestFinalizeDropsExactDuplicateAndRenumbersContiguously(t *testing.T) {
	sheetID := uuid.New()
	videoID := uuid.New()
	entries := []*types.MontageEntry{
		newEntry(sheetID, "00:00:00:00", "00:00:05:00", "a"),
		newEntry(sheetID, "00:00:00:00", "00:00:05:00", "a"), // exact duplicate of the first
		newEntry(sheetID, "00:00:05:00", "00:00:10:00", "b"),
	}
	entryRepo := newFakeEntryRepo(entries)
	videoRepo := &fakeVideoRepo{}

	doc := &types.ProgressDocument{TotalChunks: 1, CompletedChunks: 1}
	result, err := Finalize(context.Background(), testLogger(t), entryRepo, videoRepo, videoID, sheetID, 24, doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DroppedEntries != 1 {
		t.Fatalf("expected 1 dropped entry, got %d", result.DroppedEntries)
	}
	if result.KeptEntries != 2 {
		t.Fatalf("expected 2 kept entries, got %d", result.KeptEntries)
	}
	if !videoRepo.completed {
		t.Fatalf("expected video to be marked completed")
	}

	remaining := entryRepo.bySheet[sheetID]
	if len(remaining) != 2 {
		t.Fatalf("expected 2 entries left in the repo, got %d", len(remaining))
	}
	planNumbers := make(map[int]bool)
	for _, e := range remaining {
		planNumbers[e.PlanNumber] = true
		if e.PlanNumber != e.OrderIndex {
			t.Fatalf("plan_number and order_index should match after renumbering, got %+v", e)
		}
	}
	if !planNumbers[1] || !planNumbers[2] {
		t.Fatalf("expected contiguous plan numbers {1,2}, got %+v", planNumbers)
	}
}

func TestFinalizeFlagsGapAsWarningWithoutFailing(t *testing.T) {
	sheetID := uuid.New()
	videoID := uuid.New()
	entries := []*types.MontageEntry{
		newEntry(sheetID, "00:00:00:00", "00:00:05:00", "a"),
		newEntry(sheetID, "00:00:06:00", "00:00:10:00", "b"), // 1s gap at 24fps
	}
	entryRepo := newFakeEntryRepo(entries)
	videoRepo := &fakeVideoRepo{}

	doc := &types.ProgressDocument{TotalChunks: 1, CompletedChunks: 1}
	result, err := Finalize(context.Background(), testLogger(t), entryRepo, videoRepo, videoID, sheetID, 24, doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 gap warning, got %d: %+v", len(result.Warnings), result.Warnings)
	}
	if result.Warnings[0].Kind != "gap" {
		t.Fatalf("expected a gap warning, got %+v", result.Warnings[0])
	}
	if !videoRepo.completed {
		t.Fatalf("a gap warning must not block completion")
	}
}

func TestFinalizePropagatesCompleteError(t *testing.T) {
	sheetID := uuid.New()
	videoID := uuid.New()
	entries := []*types.MontageEntry{newEntry(sheetID, "00:00:00:00", "00:00:05:00", "a")}
	entryRepo := newFakeEntryRepo(entries)
	videoRepo := &fakeVideoRepo{completeErr: errCompleteBoom}

	doc := &types.ProgressDocument{TotalChunks: 1, CompletedChunks: 1}
	_, err := Finalize(context.Background(), testLogger(t), entryRepo, videoRepo, videoID, sheetID, 24, doc)
	if err == nil {
		t.Fatalf("expected an error when Complete fails")
	}
}

var errCompleteBoom = &finalizeTestError{"complete failed"}

type finalizeTestError struct{ msg string }

func (e *finalizeTestError) Error() string { return e.msg }

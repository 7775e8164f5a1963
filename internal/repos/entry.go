package repos

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/types"
)

// EntryRepo owns MontageEntry rows for a sheet. Entries are appended
// chunk-by-chunk as the orchestrator drives a video, then renumbered in one
// batch at finalization time (§C12) to make planNumber/orderIndex
// contiguous 1..N.
type EntryRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, entries []*types.MontageEntry) ([]*types.MontageEntry, error)
	ListBySheetID(ctx context.Context, tx *gorm.DB, sheetID uuid.UUID) ([]*types.MontageEntry, error)
	DeleteBySheetID(ctx context.Context, tx *gorm.DB, sheetID uuid.UUID) error

	// DeleteByIDs removes the given entries in batches of 100, the
	// finalizer's dedup-delete step (§4.12).
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error

	// RenumberAll overwrites PlanNumber/OrderIndex for every given entry ID
	// in one transaction, in the order the IDs are passed (index i gets
	// plan number i+1). Used by the finalizer after dedup/validate.
	RenumberAll(ctx context.Context, tx *gorm.DB, orderedIDs []uuid.UUID) error
}

type entryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntryRepo(db *gorm.DB, baseLog *logger.Logger) EntryRepo {
	return &entryRepo{db: db, log: baseLog.With("repo", "EntryRepo")}
}

func (r *entryRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// CreateBatch inserts entries, absorbing a racing duplicate insert on
// (sheet_id, plan_number) rather than rolling the whole batch back -- two
// concurrent Drive() passes over the same chunk both produce the same
// plan_number for that chunk, and spec.md §4.9/§4.10/§8 Scenario 4 require
// the loser to see its row already present, not a hard failure. Uses
// ON CONFLICT DO NOTHING (the teacher's CreateIgnoreDuplicates idiom) so
// rows that don't conflict still land in the same statement; isDuplicateKey
// remains as a defensive fallback in case a caller passes entries outside
// an upsert-friendly path (e.g. a driver that doesn't support the clause).
func (r *entryRepo) CreateBatch(ctx context.Context, tx *gorm.DB, entries []*types.MontageEntry) ([]*types.MontageEntry, error) {
	if len(entries) == 0 {
		return []*types.MontageEntry{}, nil
	}
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
	}
	err := r.tx(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sheet_id"}, {Name: "plan_number"}},
			DoNothing: true,
		}).
		Create(&entries).Error
	if err != nil && !isDuplicateKey(err) {
		return nil, err
	}
	return entries, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation, in
// the teacher's structuraltrace.go isDuplicateKey shape.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func (r *entryRepo) ListBySheetID(ctx context.Context, tx *gorm.DB, sheetID uuid.UUID) ([]*types.MontageEntry, error) {
	var out []*types.MontageEntry
	if sheetID == uuid.Nil {
		return out, nil
	}
	err := r.tx(tx).WithContext(ctx).
		Where("sheet_id = ?", sheetID).
		Order("order_index ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entryRepo) DeleteBySheetID(ctx context.Context, tx *gorm.DB, sheetID uuid.UUID) error {
	if sheetID == uuid.Nil {
		return nil
	}
	return r.tx(tx).WithContext(ctx).Where("sheet_id = ?", sheetID).Delete(&types.MontageEntry{}).Error
}

func (r *entryRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	const batchSize = 100
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := r.tx(tx).WithContext(ctx).Where("id IN ?", ids[start:end]).Delete(&types.MontageEntry{}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *entryRepo) RenumberAll(ctx context.Context, tx *gorm.DB, orderedIDs []uuid.UUID) error {
	if len(orderedIDs) == 0 {
		return nil
	}
	return r.tx(tx).WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		// Push every row's plan_number past the target range first so the
		// unique (sheet_id, plan_number) index never collides mid-batch.
		offset := len(orderedIDs) + 1
		for i, id := range orderedIDs {
			if err := txx.Model(&types.MontageEntry{}).
				Where("id = ?", id).
				Update("plan_number", offset+i).Error; err != nil {
				return err
			}
		}
		for i, id := range orderedIDs {
			planNumber := i + 1
			if err := txx.Model(&types.MontageEntry{}).
				Where("id = ?", id).
				Updates(map[string]interface{}{
					"plan_number": planNumber,
					"order_index": planNumber,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

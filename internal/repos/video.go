package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/types"
)

// VideoRepo owns the Video row, including the conditional status transitions
// that keep "only one process at a time advances progress for a given
// video" true under concurrent orchestrator/worker processes.
type VideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, video *types.Video) (*types.Video, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Video, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	// ClaimForProcessing transitions a video from uploaded (or a stale
	// processing run) into processing, returning the claimed row, or nil if
	// another process already holds the lock. Grounded on JobRunRepo's
	// SKIP LOCKED claim pattern, generalized from a job queue to a single
	// per-video row.
	ClaimForProcessing(ctx context.Context, tx *gorm.DB, id uuid.UUID, staleAfter time.Duration) (*types.Video, error)

	// UpdateProgress conditionally replaces the Progress blob and bumps
	// UpdatedAt, guarded by the row still being in processing status so a
	// stale driver can't clobber a later run's state after losing its lock.
	UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress *types.ProgressDocument) error

	// Complete and Fail are the two terminal transitions out of processing.
	Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress *types.ProgressDocument) error
	Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, message string) error

	// ListStaleProcessing returns videos stuck in processing whose progress
	// document has not advanced within staleAfter — the resume-sweep query
	// (§6.1 "Resume sweep").
	ListStaleProcessing(ctx context.Context, tx *gorm.DB, staleAfter time.Duration) ([]*types.Video, error)
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *videoRepo) Create(ctx context.Context, tx *gorm.DB, video *types.Video) (*types.Video, error) {
	if video.ID == uuid.Nil {
		video.ID = uuid.New()
	}
	if video.Status == "" {
		video.Status = types.VideoStatusUploaded
	}
	if err := r.tx(tx).WithContext(ctx).Create(video).Error; err != nil {
		return nil, err
	}
	return video, nil
}

func (r *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Video, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var v types.Video
	err := r.tx(tx).WithContext(ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *videoRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(tx).WithContext(ctx).Where("id = ?", id).Delete(&types.Video{}).Error
}

func (r *videoRepo) ClaimForProcessing(ctx context.Context, tx *gorm.DB, id uuid.UUID, staleAfter time.Duration) (*types.Video, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	now := time.Now()
	staleCutoff := now.Add(-staleAfter)
	var claimed *types.Video
	err := r.tx(tx).WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var v types.Video
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				id = ?
				AND (
					status = ?
					OR (status = ? AND updated_at < ?)
				)
			`, id, types.VideoStatusUploaded, types.VideoStatusProcessing, staleCutoff)
		qErr := q.First(&v).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.Video{}).
			Where("id = ?", v.ID).
			Updates(map[string]interface{}{
				"status":     types.VideoStatusProcessing,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		v.Status = types.VideoStatusProcessing
		claimed = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *videoRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress *types.ProgressDocument) error {
	if id == uuid.Nil {
		return nil
	}
	blob, err := progressToJSON(progress)
	if err != nil {
		return err
	}
	return r.tx(tx).WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ? AND status = ?", id, types.VideoStatusProcessing).
		Updates(map[string]interface{}{
			"progress":   blob,
			"updated_at": time.Now(),
		}).Error
}

func (r *videoRepo) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress *types.ProgressDocument) error {
	if id == uuid.Nil {
		return nil
	}
	blob, err := progressToJSON(progress)
	if err != nil {
		return err
	}
	now := time.Now()
	return r.tx(tx).WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ? AND status = ?", id, types.VideoStatusProcessing).
		Updates(map[string]interface{}{
			"progress":     blob,
			"status":       types.VideoStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

func (r *videoRepo) Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, message string) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(tx).WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ? AND status = ?", id, types.VideoStatusProcessing).
		Updates(map[string]interface{}{
			"status":     types.VideoStatusFailed,
			"error":      message,
			"updated_at": time.Now(),
		}).Error
}

func (r *videoRepo) ListStaleProcessing(ctx context.Context, tx *gorm.DB, staleAfter time.Duration) ([]*types.Video, error) {
	cutoff := time.Now().Add(-staleAfter)
	var out []*types.Video
	err := r.tx(tx).WithContext(ctx).
		Where("status = ? AND updated_at < ?", types.VideoStatusProcessing, cutoff).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

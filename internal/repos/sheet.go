package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/types"
)

// SheetRepo owns the MontageSheet row, one per video.
type SheetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sheet *types.MontageSheet) (*types.MontageSheet, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MontageSheet, error)
	GetByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*types.MontageSheet, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type sheetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSheetRepo(db *gorm.DB, baseLog *logger.Logger) SheetRepo {
	return &sheetRepo{db: db, log: baseLog.With("repo", "SheetRepo")}
}

func (r *sheetRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *sheetRepo) Create(ctx context.Context, tx *gorm.DB, sheet *types.MontageSheet) (*types.MontageSheet, error) {
	if sheet.ID == uuid.Nil {
		sheet.ID = uuid.New()
	}
	if err := r.tx(tx).WithContext(ctx).Create(sheet).Error; err != nil {
		return nil, err
	}
	return sheet, nil
}

func (r *sheetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MontageSheet, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var s types.MontageSheet
	err := r.tx(tx).WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sheetRepo) GetByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*types.MontageSheet, error) {
	if videoID == uuid.Nil {
		return nil, nil
	}
	var s types.MontageSheet
	err := r.tx(tx).WithContext(ctx).Where("video_id = ?", videoID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sheetRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(tx).WithContext(ctx).Where("id = ?", id).Delete(&types.MontageSheet{}).Error
}

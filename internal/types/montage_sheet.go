package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MontageSheet is one per video: the container a video's ordered entries
// belong to.
type MontageSheet struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	VideoID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"video_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MontageSheet) TableName() string { return "montage_sheet" }

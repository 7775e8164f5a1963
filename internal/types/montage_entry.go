package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MontageEntry is one plan/shot within a sheet. PlanNumber and OrderIndex
// carry the same semantics (both 1-based, equal after finalization per
// Open Question 2); they are kept as separate columns because a sheet can
// carry in-progress entries whose order has not yet been finalized.
type MontageEntry struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SheetID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_montage_entry_sheet_plan,unique,priority:1" json:"sheet_id"`
	PlanNumber  int            `gorm:"column:plan_number;not null;index:idx_montage_entry_sheet_plan,unique,priority:2" json:"plan_number"`
	OrderIndex  int            `gorm:"column:order_index;not null" json:"order_index"`
	StartTC     string         `gorm:"column:start_timecode;not null" json:"startTimecode"`
	EndTC       string         `gorm:"column:end_timecode;not null" json:"endTimecode"`
	PlanType    string         `gorm:"column:plan_type;not null" json:"planType"`
	Description string         `gorm:"column:description" json:"description"`
	Dialogues   string         `gorm:"column:dialogues" json:"dialogues"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MontageEntry) TableName() string { return "montage_entry" }

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Video status enumeration. Advances monotonically except for the
// processing -> failed transition, which is terminal.
const (
	VideoStatusUploaded   = "uploaded"
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
)

type Video struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	OriginalFilename string         `gorm:"column:original_filename;not null" json:"original_filename"`
	SourceStorageURL string         `gorm:"column:source_storage_url;not null" json:"source_storage_url"`
	DurationSeconds  float64        `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	FrameRate        float64        `gorm:"column:frame_rate;not null;default:24" json:"frame_rate"`
	Status           string         `gorm:"column:status;not null;index" json:"status"`
	Error            string         `gorm:"column:error" json:"error,omitempty"`
	Progress         datatypes.JSON `gorm:"type:jsonb;column:progress" json:"progress"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Video) TableName() string { return "video" }

// ChunkStatus enumeration for ProgressDocument.Chunks[i].Status.
const (
	ChunkStatusPending    = "pending"
	ChunkStatusProcessing = "processing"
	ChunkStatusCompleted  = "completed"
	ChunkStatusFailed     = "failed"
)

// MergedSceneType enumeration for ProgressDocument.MergedScenes[i].Type.
const (
	MergedSceneOpeningCredits = "opening_credits"
	MergedSceneClosingCredits = "closing_credits"
	MergedSceneRegular        = "regular"
)

// ChunkState is one window of the video's chunk plan, tracked independently
// as the orchestrator drives it through pending -> processing -> completed/failed.
type ChunkState struct {
	Index         int    `json:"index"`
	StartTimecode string `json:"startTimecode"`
	EndTimecode   string `json:"endTimecode"`
	Status        string `json:"status"`
	StorageURL    string `json:"storageUrl,omitempty"`
}

// DetectedScene is a raw shot-boundary cut reported by the detector, before
// credits-merge folding.
type DetectedScene struct {
	Timecode  string  `json:"timecode"`
	Timestamp float64 `json:"timestamp"`
}

// MergedScene is a credits-merge-folded boundary spanning one or more raw
// detected scenes.
type MergedScene struct {
	StartTimecode       string  `json:"startTimecode"`
	EndTimecode         string  `json:"endTimecode"`
	StartTimestamp      float64 `json:"startTimestamp"`
	EndTimestamp        float64 `json:"endTimestamp"`
	Type                string  `json:"type"`
	OriginalScenesCount int     `json:"originalScenesCount"`
}

// CharacterRegistryEntry is one identity in the evolving character table
// (§C8). Uniqueness is by case-folded CanonicalName.
type CharacterRegistryEntry struct {
	CanonicalName     string   `json:"canonicalName"`
	Aliases           []string `json:"aliases,omitempty"`
	FirstSeenChunk    int      `json:"firstSeenChunk"`
	FirstSeenTimecode string   `json:"firstSeenTimecode"`
	Appearances       int      `json:"appearances"`
	IsGenericTerm     bool     `json:"isGenericTerm,omitempty"`
	IsFromScript      bool     `json:"isFromScript,omitempty"`
}

// ScriptCharacter is one entry of an externally-supplied cast list, accepted
// at init time to pre-seed the registry.
type ScriptCharacter struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// ProgressDocument is the authoritative per-video orchestration state. It is
// serialized into Video.Progress as one datatypes.JSON blob, the same way
// the teacher folds CourseGenerationRun's run state into its Metadata column.
type ProgressDocument struct {
	ProcessingVersion string                    `json:"processingVersion"`
	SheetID           uuid.UUID                 `json:"sheetId"`
	TotalChunks       int                       `json:"totalChunks"`
	CompletedChunks   int                       `json:"completedChunks"`
	CurrentChunk      int                       `json:"currentChunk"`
	VideoFps          float64                   `json:"videoFps"`
	Chunks            []ChunkState              `json:"chunks"`
	DetectedScenes    []DetectedScene           `json:"detectedScenes,omitempty"`
	MergedScenes      []MergedScene             `json:"mergedScenes,omitempty"`
	CharacterRegistry []CharacterRegistryEntry  `json:"characterRegistry,omitempty"`
	ScriptData        []ScriptCharacter         `json:"scriptData,omitempty"`
}

// CompletionRatio returns CompletedChunks/TotalChunks, or 0 when there are no
// chunks yet. IsPartial reports whether that ratio sits in [0.5, 1.0) — the
// window in which a finalized sheet is correct-but-incomplete (§6.1).
func (p *ProgressDocument) CompletionRatio() float64 {
	if p == nil || p.TotalChunks == 0 {
		return 0
	}
	return float64(p.CompletedChunks) / float64(p.TotalChunks)
}

func (p *ProgressDocument) IsPartial() bool {
	ratio := p.CompletionRatio()
	return ratio >= 0.5 && ratio < 1.0
}

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImageDescriptionResult is the variant payload for free-text image
// description runs. An empty Description is a valid result (the model
// generated nothing), distinct from a failed run, which is never
// persisted at all.
type ImageDescriptionResult struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AnalysisID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"analysis_id"`
	Analysis         *ImageAnalysis `gorm:"constraint:OnDelete:CASCADE;foreignKey:AnalysisID;references:ID" json:"analysis,omitempty"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ModelName        string         `gorm:"column:model_name;not null" json:"model_name"`
	Prompt           string         `gorm:"column:prompt;type:text" json:"prompt"`
	MaxNewTokens     *int           `gorm:"column:max_new_tokens" json:"max_new_tokens,omitempty"`
	Temperature      *float64       `gorm:"column:temperature" json:"temperature,omitempty"`
	Description      string         `gorm:"column:description;type:text" json:"description"`
	ProcessingTimeMs int64          `gorm:"column:processing_time_ms;not null" json:"processing_time_ms"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
}

func (ImageDescriptionResult) TableName() string { return "image_description_result" }

func (r *ImageDescriptionResult) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

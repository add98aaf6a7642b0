package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Analysis type tags. The tag on the envelope decides which variant
// table holds the payload; readers dispatch on it and never inspect
// the payload itself.
const (
	AnalysisTypeObjectDetection  = "object_detection"
	AnalysisTypeImageDescription = "image_description"
	AnalysisTypeFaceRecognition  = "face_recognition"
)

// ImageAnalysis is the parent envelope for one analysis run: who ran
// it, on what image, of what kind. Exactly one variant row exists per
// envelope and both are written in the same transaction. Rows are
// never updated or deleted by the application.
type ImageAnalysis struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_image_analysis_user_created,priority:1" json:"user_id"`
	User         *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	SessionID    *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	AnalysisType string     `gorm:"column:analysis_type;not null;index" json:"analysis_type"`
	ImageHash    string     `gorm:"column:image_hash;not null;index" json:"image_hash"`
	ImageFormat  string     `gorm:"column:image_format" json:"image_format,omitempty"`
	FileName     string     `gorm:"column:file_name" json:"file_name,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;index:idx_image_analysis_user_created,priority:2" json:"created_at"`
}

func (ImageAnalysis) TableName() string { return "image_analysis" }

func (a *ImageAnalysis) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

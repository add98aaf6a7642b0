package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FaceRecognitionResult is the variant payload for face recognition
// runs. Threshold records the match policy that was in effect, not a
// value this layer re-validates.
type FaceRecognitionResult struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	AnalysisID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"analysis_id"`
	Analysis         *ImageAnalysis   `gorm:"constraint:OnDelete:CASCADE;foreignKey:AnalysisID;references:ID" json:"analysis,omitempty"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Threshold        float64          `gorm:"column:threshold;not null" json:"threshold"`
	ProcessingTimeMs int64            `gorm:"column:processing_time_ms;not null" json:"processing_time_ms"`
	Faces            []RecognizedFace `gorm:"foreignKey:ResultID;references:ID" json:"faces"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
}

func (FaceRecognitionResult) TableName() string { return "face_recognition_result" }

func (r *FaceRecognitionResult) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RecognizedFace is one face owned by a recognition result. A face
// that was detected but matched no registered person has PersonID and
// PersonName both nil with the confidence still reported.
type RecognizedFace struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ResultID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"result_id"`
	PersonID   *uuid.UUID     `gorm:"type:uuid;column:person_id" json:"person_id,omitempty"`
	PersonName *string        `gorm:"column:person_name" json:"person_name,omitempty"`
	Confidence float64        `gorm:"column:confidence;not null" json:"confidence"`
	X1         *float64       `gorm:"column:x1" json:"x1,omitempty"`
	Y1         *float64       `gorm:"column:y1" json:"y1,omitempty"`
	X2         *float64       `gorm:"column:x2" json:"x2,omitempty"`
	Y2         *float64       `gorm:"column:y2" json:"y2,omitempty"`
	Attributes datatypes.JSON `gorm:"type:jsonb;column:attributes" json:"attributes,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (RecognizedFace) TableName() string { return "recognized_face" }

func (f *RecognizedFace) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ObjectDetectionResult is the variant payload for object detection
// runs. UserID is denormalized from the envelope at write time so the
// table can be filtered without a join; it always equals the
// envelope's UserID.
type ObjectDetectionResult struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	AnalysisID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"analysis_id"`
	Analysis         *ImageAnalysis   `gorm:"constraint:OnDelete:CASCADE;foreignKey:AnalysisID;references:ID" json:"analysis,omitempty"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	ModelName        string           `gorm:"column:model_name;not null" json:"model_name"`
	ModelSettings    datatypes.JSON   `gorm:"type:jsonb;column:model_settings" json:"model_settings,omitempty"`
	ProcessingTimeMs int64            `gorm:"column:processing_time_ms;not null" json:"processing_time_ms"`
	Objects          []DetectedObject `gorm:"foreignKey:ResultID;references:ID" json:"objects"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
}

func (ObjectDetectionResult) TableName() string { return "object_detection_result" }

func (r *ObjectDetectionResult) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// DetectedObject is one detected object owned by a detection result.
// The set is unordered; rows are immutable once written.
type DetectedObject struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ResultID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"result_id"`
	Label      string         `gorm:"column:label;not null" json:"label"`
	Confidence float64        `gorm:"column:confidence;not null" json:"confidence"`
	X1         float64        `gorm:"column:x1;not null" json:"x1"`
	Y1         float64        `gorm:"column:y1;not null" json:"y1"`
	X2         float64        `gorm:"column:x2;not null" json:"x2"`
	Y2         float64        `gorm:"column:y2;not null" json:"y2"`
	Attributes datatypes.JSON `gorm:"type:jsonb;column:attributes" json:"attributes,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (DetectedObject) TableName() string { return "detected_object" }

func (o *DetectedObject) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/visionvault-backend/internal/types"
)

// BoundingBox is the four-edge box shared by detection and face
// results. Detection providers emit normalized [0,1] edges; the store
// persists whatever the provider reported.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// DetectionInput is one detected object as handed over by an
// inference collaborator, already validated by the caller.
type DetectionInput struct {
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	Box        BoundingBox    `json:"box"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// FaceInput is one recognized (or merely detected) face. PersonID and
// PersonName are both nil for a face that matched no registered person.
type FaceInput struct {
	PersonID   *uuid.UUID     `json:"person_id,omitempty"`
	PersonName *string        `json:"person_name,omitempty"`
	Confidence float64        `json:"confidence"`
	Box        *BoundingBox   `json:"box,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// AnalysisRecord is the joined read model: the envelope plus exactly
// one resolved variant, selected by the envelope's AnalysisType tag.
type AnalysisRecord struct {
	Analysis         *types.ImageAnalysis          `json:"analysis"`
	ObjectDetection  *types.ObjectDetectionResult  `json:"object_detection,omitempty"`
	ImageDescription *types.ImageDescriptionResult `json:"image_description,omitempty"`
	FaceRecognition  *types.FaceRecognitionResult  `json:"face_recognition,omitempty"`
}

// HistoryPage is one page of a user's analysis history.
type HistoryPage struct {
	Items   []*AnalysisRecord `json:"items"`
	Total   int64             `json:"total"`
	HasMore bool              `json:"has_more"`
}

func toJSONMap(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	return datatypes.JSON(raw), nil
}

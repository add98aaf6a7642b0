package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/apierr"
	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/repos"
	"github.com/yungbote/visionvault-backend/internal/types"
	"github.com/yungbote/visionvault-backend/internal/utils"
)

// AnalysisStoreService owns the write path: each save persists one
// envelope plus exactly one typed variant (and that variant's child
// rows) inside a single transaction. Either all rows commit or none
// do. Resubmitting the same image produces a brand-new envelope with
// an equal hash; nothing is deduplicated and nothing is ever updated.
type AnalysisStoreService interface {
	SaveObjectDetection(ctx context.Context, in SaveObjectDetectionInput) (*AnalysisRecord, error)
	SaveImageDescription(ctx context.Context, in SaveImageDescriptionInput) (*AnalysisRecord, error)
	SaveFaceRecognition(ctx context.Context, in SaveFaceRecognitionInput) (*AnalysisRecord, error)
}

type SaveObjectDetectionInput struct {
	UserID           uuid.UUID
	SessionID        *uuid.UUID
	ImageBytes       []byte
	FileName         string
	ImageFormat      string
	ModelName        string
	ModelSettings    map[string]any
	Detections       []DetectionInput
	ProcessingTimeMs int64
}

type SaveImageDescriptionInput struct {
	UserID           uuid.UUID
	SessionID        *uuid.UUID
	ImageBytes       []byte
	FileName         string
	ImageFormat      string
	ModelName        string
	Prompt           string
	MaxNewTokens     *int
	Temperature      *float64
	Description      string
	ProcessingTimeMs int64
}

type SaveFaceRecognitionInput struct {
	UserID           uuid.UUID
	SessionID        *uuid.UUID
	ImageBytes       []byte
	FileName         string
	ImageFormat      string
	Threshold        float64
	Faces            []FaceInput
	ProcessingTimeMs int64
}

type analysisStoreService struct {
	db              *gorm.DB
	log             *logger.Logger
	analysisRepo    repos.AnalysisRepo
	detectionRepo   repos.ObjectDetectionRepo
	descriptionRepo repos.ImageDescriptionRepo
	faceRepo        repos.FaceRecognitionRepo
}

func NewAnalysisStoreService(
	db *gorm.DB,
	log *logger.Logger,
	analysisRepo repos.AnalysisRepo,
	detectionRepo repos.ObjectDetectionRepo,
	descriptionRepo repos.ImageDescriptionRepo,
	faceRepo repos.FaceRecognitionRepo,
) AnalysisStoreService {
	serviceLog := log.With("service", "AnalysisStoreService")
	return &analysisStoreService{
		db:              db,
		log:             serviceLog,
		analysisRepo:    analysisRepo,
		detectionRepo:   detectionRepo,
		descriptionRepo: descriptionRepo,
		faceRepo:        faceRepo,
	}
}

func (s *analysisStoreService) SaveObjectDetection(ctx context.Context, in SaveObjectDetectionInput) (*AnalysisRecord, error) {
	if err := validateSaveInput(in.UserID, in.ImageBytes, in.ProcessingTimeMs); err != nil {
		return nil, err
	}
	settings, err := toJSONMap(in.ModelSettings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrInvalidInput, err)
	}
	objects := make([]*types.DetectedObject, 0, len(in.Detections))
	for _, d := range in.Detections {
		attrs, aErr := toJSONMap(d.Attributes)
		if aErr != nil {
			return nil, fmt.Errorf("%w: %v", apierr.ErrInvalidInput, aErr)
		}
		objects = append(objects, &types.DetectedObject{
			Label:      d.Label,
			Confidence: d.Confidence,
			X1:         d.Box.X1,
			Y1:         d.Box.Y1,
			X2:         d.Box.X2,
			Y2:         d.Box.Y2,
			Attributes: attrs,
		})
	}

	analysis := s.newEnvelope(types.AnalysisTypeObjectDetection, in.UserID, in.SessionID, in.ImageBytes, in.FileName, in.ImageFormat)
	result := &types.ObjectDetectionResult{
		UserID:           in.UserID,
		ModelName:        in.ModelName,
		ModelSettings:    settings,
		ProcessingTimeMs: in.ProcessingTimeMs,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := s.analysisRepo.Create(ctx, tx, []*types.ImageAnalysis{analysis}); cErr != nil {
			return fmt.Errorf("failed to create analysis envelope: %w", cErr)
		}
		result.AnalysisID = analysis.ID
		if _, cErr := s.detectionRepo.Create(ctx, tx, []*types.ObjectDetectionResult{result}); cErr != nil {
			return fmt.Errorf("failed to create detection result: %w", cErr)
		}
		for _, o := range objects {
			o.ResultID = result.ID
		}
		if _, cErr := s.detectionRepo.CreateObjects(ctx, tx, objects); cErr != nil {
			return fmt.Errorf("failed to create detected objects: %w", cErr)
		}
		return nil
	}); err != nil {
		s.log.Warn("Object detection save rolled back", "error", err, "user_id", in.UserID)
		return nil, fmt.Errorf("%w: %v", apierr.ErrPersistence, err)
	}

	resultObjects := make([]types.DetectedObject, 0, len(objects))
	for _, o := range objects {
		resultObjects = append(resultObjects, *o)
	}
	result.Objects = resultObjects
	s.log.Info("Object detection analysis saved", "analysis_id", analysis.ID, "user_id", in.UserID, "objects", len(objects))
	return &AnalysisRecord{Analysis: analysis, ObjectDetection: result}, nil
}

func (s *analysisStoreService) SaveImageDescription(ctx context.Context, in SaveImageDescriptionInput) (*AnalysisRecord, error) {
	if err := validateSaveInput(in.UserID, in.ImageBytes, in.ProcessingTimeMs); err != nil {
		return nil, err
	}

	analysis := s.newEnvelope(types.AnalysisTypeImageDescription, in.UserID, in.SessionID, in.ImageBytes, in.FileName, in.ImageFormat)
	result := &types.ImageDescriptionResult{
		UserID:           in.UserID,
		ModelName:        in.ModelName,
		Prompt:           in.Prompt,
		MaxNewTokens:     in.MaxNewTokens,
		Temperature:      in.Temperature,
		Description:      in.Description,
		ProcessingTimeMs: in.ProcessingTimeMs,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := s.analysisRepo.Create(ctx, tx, []*types.ImageAnalysis{analysis}); cErr != nil {
			return fmt.Errorf("failed to create analysis envelope: %w", cErr)
		}
		result.AnalysisID = analysis.ID
		if _, cErr := s.descriptionRepo.Create(ctx, tx, []*types.ImageDescriptionResult{result}); cErr != nil {
			return fmt.Errorf("failed to create description result: %w", cErr)
		}
		return nil
	}); err != nil {
		s.log.Warn("Image description save rolled back", "error", err, "user_id", in.UserID)
		return nil, fmt.Errorf("%w: %v", apierr.ErrPersistence, err)
	}

	s.log.Info("Image description analysis saved", "analysis_id", analysis.ID, "user_id", in.UserID)
	return &AnalysisRecord{Analysis: analysis, ImageDescription: result}, nil
}

func (s *analysisStoreService) SaveFaceRecognition(ctx context.Context, in SaveFaceRecognitionInput) (*AnalysisRecord, error) {
	if err := validateSaveInput(in.UserID, in.ImageBytes, in.ProcessingTimeMs); err != nil {
		return nil, err
	}
	faces := make([]*types.RecognizedFace, 0, len(in.Faces))
	for _, f := range in.Faces {
		attrs, aErr := toJSONMap(f.Attributes)
		if aErr != nil {
			return nil, fmt.Errorf("%w: %v", apierr.ErrInvalidInput, aErr)
		}
		face := &types.RecognizedFace{
			PersonID:   f.PersonID,
			PersonName: f.PersonName,
			Confidence: f.Confidence,
			Attributes: attrs,
		}
		if f.Box != nil {
			box := *f.Box
			face.X1, face.Y1, face.X2, face.Y2 = &box.X1, &box.Y1, &box.X2, &box.Y2
		}
		faces = append(faces, face)
	}

	analysis := s.newEnvelope(types.AnalysisTypeFaceRecognition, in.UserID, in.SessionID, in.ImageBytes, in.FileName, in.ImageFormat)
	result := &types.FaceRecognitionResult{
		UserID:           in.UserID,
		Threshold:        in.Threshold,
		ProcessingTimeMs: in.ProcessingTimeMs,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := s.analysisRepo.Create(ctx, tx, []*types.ImageAnalysis{analysis}); cErr != nil {
			return fmt.Errorf("failed to create analysis envelope: %w", cErr)
		}
		result.AnalysisID = analysis.ID
		if _, cErr := s.faceRepo.Create(ctx, tx, []*types.FaceRecognitionResult{result}); cErr != nil {
			return fmt.Errorf("failed to create recognition result: %w", cErr)
		}
		for _, f := range faces {
			f.ResultID = result.ID
		}
		if _, cErr := s.faceRepo.CreateFaces(ctx, tx, faces); cErr != nil {
			return fmt.Errorf("failed to create recognized faces: %w", cErr)
		}
		return nil
	}); err != nil {
		s.log.Warn("Face recognition save rolled back", "error", err, "user_id", in.UserID)
		return nil, fmt.Errorf("%w: %v", apierr.ErrPersistence, err)
	}

	resultFaces := make([]types.RecognizedFace, 0, len(faces))
	for _, f := range faces {
		resultFaces = append(resultFaces, *f)
	}
	result.Faces = resultFaces
	s.log.Info("Face recognition analysis saved", "analysis_id", analysis.ID, "user_id", in.UserID, "faces", len(faces))
	return &AnalysisRecord{Analysis: analysis, FaceRecognition: result}, nil
}

// newEnvelope assembles the parent row. The image format falls back
// to sniffing the bytes when the caller did not supply one.
func (s *analysisStoreService) newEnvelope(analysisType string, userID uuid.UUID, sessionID *uuid.UUID, imageBytes []byte, fileName, imageFormat string) *types.ImageAnalysis {
	if imageFormat == "" {
		imageFormat = utils.DetectImageFormat(imageBytes)
	}
	return &types.ImageAnalysis{
		UserID:       userID,
		SessionID:    sessionID,
		AnalysisType: analysisType,
		ImageHash:    utils.Fingerprint(imageBytes),
		ImageFormat:  imageFormat,
		FileName:     fileName,
	}
}

func validateSaveInput(userID uuid.UUID, imageBytes []byte, processingTimeMs int64) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: userId is required", apierr.ErrInvalidInput)
	}
	if len(imageBytes) == 0 {
		return fmt.Errorf("%w: image bytes are required", apierr.ErrInvalidInput)
	}
	if processingTimeMs < 0 {
		return fmt.Errorf("%w: processingTimeMs must be non-negative", apierr.ErrInvalidInput)
	}
	return nil
}

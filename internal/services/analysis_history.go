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
)

// MaxHistoryLimit bounds a single history page. Larger requested
// limits are clamped rather than rejected.
const MaxHistoryLimit = 100

// AnalysisHistoryService is the read path: ownership-scoped,
// paginated retrieval of envelopes joined with the variant the
// envelope's type tag names. It never writes.
type AnalysisHistoryService interface {
	GetUserHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*HistoryPage, error)
	GetSessionHistory(ctx context.Context, sessionID uuid.UUID) ([]*AnalysisRecord, error)
	GetAnalysisByID(ctx context.Context, id, requestingUserID uuid.UUID) (*AnalysisRecord, error)
}

type analysisHistoryService struct {
	db              *gorm.DB
	log             *logger.Logger
	analysisRepo    repos.AnalysisRepo
	detectionRepo   repos.ObjectDetectionRepo
	descriptionRepo repos.ImageDescriptionRepo
	faceRepo        repos.FaceRecognitionRepo
}

func NewAnalysisHistoryService(
	db *gorm.DB,
	log *logger.Logger,
	analysisRepo repos.AnalysisRepo,
	detectionRepo repos.ObjectDetectionRepo,
	descriptionRepo repos.ImageDescriptionRepo,
	faceRepo repos.FaceRecognitionRepo,
) AnalysisHistoryService {
	serviceLog := log.With("service", "AnalysisHistoryService")
	return &analysisHistoryService{
		db:              db,
		log:             serviceLog,
		analysisRepo:    analysisRepo,
		detectionRepo:   detectionRepo,
		descriptionRepo: descriptionRepo,
		faceRepo:        faceRepo,
	}
}

func (s *analysisHistoryService) GetUserHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: userId is required", apierr.ErrInvalidInput)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", apierr.ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must be non-negative", apierr.ErrInvalidInput)
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	total, err := s.analysisRepo.CountByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count user history: %w", err)
	}
	analyses, err := s.analysisRepo.GetPageByUserID(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user history page: %w", err)
	}
	items, err := s.resolveVariants(ctx, analyses)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Items:   items,
		Total:   total,
		HasMore: int64(offset+len(items)) < total,
	}, nil
}

func (s *analysisHistoryService) GetSessionHistory(ctx context.Context, sessionID uuid.UUID) ([]*AnalysisRecord, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: sessionId is required", apierr.ErrInvalidInput)
	}
	analyses, err := s.analysisRepo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session history: %w", err)
	}
	return s.resolveVariants(ctx, analyses)
}

func (s *analysisHistoryService) GetAnalysisByID(ctx context.Context, id, requestingUserID uuid.UUID) (*AnalysisRecord, error) {
	if id == uuid.Nil || requestingUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: analysis id and requesting user id are required", apierr.ErrInvalidInput)
	}
	analyses, err := s.analysisRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analysis: %w", err)
	}
	// A record owned by someone else reads the same as a record that
	// does not exist.
	if len(analyses) == 0 || analyses[0].UserID != requestingUserID {
		return nil, apierr.ErrNotFound
	}
	records, err := s.resolveVariants(ctx, analyses[:1])
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// resolveVariants attaches the matching variant (and its children) to
// each envelope. The envelope's type tag decides which table is
// consulted; the payload itself is never inspected.
func (s *analysisHistoryService) resolveVariants(ctx context.Context, analyses []*types.ImageAnalysis) ([]*AnalysisRecord, error) {
	records := make([]*AnalysisRecord, 0, len(analyses))
	if len(analyses) == 0 {
		return records, nil
	}

	byType := map[string][]uuid.UUID{}
	for _, a := range analyses {
		byType[a.AnalysisType] = append(byType[a.AnalysisType], a.ID)
	}

	detections := map[uuid.UUID]*types.ObjectDetectionResult{}
	if ids := byType[types.AnalysisTypeObjectDetection]; len(ids) > 0 {
		results, err := s.detectionRepo.GetByAnalysisIDs(ctx, nil, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve detection variants: %w", err)
		}
		for _, r := range results {
			detections[r.AnalysisID] = r
		}
	}

	descriptions := map[uuid.UUID]*types.ImageDescriptionResult{}
	if ids := byType[types.AnalysisTypeImageDescription]; len(ids) > 0 {
		results, err := s.descriptionRepo.GetByAnalysisIDs(ctx, nil, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve description variants: %w", err)
		}
		for _, r := range results {
			descriptions[r.AnalysisID] = r
		}
	}

	recognitions := map[uuid.UUID]*types.FaceRecognitionResult{}
	if ids := byType[types.AnalysisTypeFaceRecognition]; len(ids) > 0 {
		results, err := s.faceRepo.GetByAnalysisIDs(ctx, nil, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve recognition variants: %w", err)
		}
		for _, r := range results {
			recognitions[r.AnalysisID] = r
		}
	}

	for _, a := range analyses {
		record := &AnalysisRecord{Analysis: a}
		switch a.AnalysisType {
		case types.AnalysisTypeObjectDetection:
			record.ObjectDetection = detections[a.ID]
		case types.AnalysisTypeImageDescription:
			record.ImageDescription = descriptions[a.ID]
		case types.AnalysisTypeFaceRecognition:
			record.FaceRecognition = recognitions[a.ID]
		}
		if record.ObjectDetection == nil && record.ImageDescription == nil && record.FaceRecognition == nil {
			// Writes are atomic, so a missing variant means external
			// interference with the tables.
			s.log.Warn("Analysis envelope has no variant row", "analysis_id", a.ID, "analysis_type", a.AnalysisType)
		}
		records = append(records, record)
	}
	return records, nil
}

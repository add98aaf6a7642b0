package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/types"
)

type FaceRecognitionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, results []*types.FaceRecognitionResult) ([]*types.FaceRecognitionResult, error)
	CreateFaces(ctx context.Context, tx *gorm.DB, faces []*types.RecognizedFace) ([]*types.RecognizedFace, error)
	GetByAnalysisIDs(ctx context.Context, tx *gorm.DB, analysisIDs []uuid.UUID) ([]*types.FaceRecognitionResult, error)
}

type faceRecognitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFaceRecognitionRepo(db *gorm.DB, baseLog *logger.Logger) FaceRecognitionRepo {
	repoLog := baseLog.With("repo", "FaceRecognitionRepo")
	return &faceRecognitionRepo{db: db, log: repoLog}
}

func (r *faceRecognitionRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.FaceRecognitionResult) ([]*types.FaceRecognitionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(results) == 0 {
		return []*types.FaceRecognitionResult{}, nil
	}

	if err := transaction.WithContext(ctx).Omit("Faces").Create(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *faceRecognitionRepo) CreateFaces(ctx context.Context, tx *gorm.DB, faces []*types.RecognizedFace) ([]*types.RecognizedFace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(faces) == 0 {
		return []*types.RecognizedFace{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&faces).Error; err != nil {
		return nil, err
	}
	return faces, nil
}

func (r *faceRecognitionRepo) GetByAnalysisIDs(ctx context.Context, tx *gorm.DB, analysisIDs []uuid.UUID) ([]*types.FaceRecognitionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FaceRecognitionResult
	if len(analysisIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("Faces").
		Where("analysis_id IN ?", analysisIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

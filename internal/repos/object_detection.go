package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/types"
)

type ObjectDetectionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, results []*types.ObjectDetectionResult) ([]*types.ObjectDetectionResult, error)
	CreateObjects(ctx context.Context, tx *gorm.DB, objects []*types.DetectedObject) ([]*types.DetectedObject, error)
	GetByAnalysisIDs(ctx context.Context, tx *gorm.DB, analysisIDs []uuid.UUID) ([]*types.ObjectDetectionResult, error)
}

type objectDetectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewObjectDetectionRepo(db *gorm.DB, baseLog *logger.Logger) ObjectDetectionRepo {
	repoLog := baseLog.With("repo", "ObjectDetectionRepo")
	return &objectDetectionRepo{db: db, log: repoLog}
}

func (r *objectDetectionRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.ObjectDetectionResult) ([]*types.ObjectDetectionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(results) == 0 {
		return []*types.ObjectDetectionResult{}, nil
	}

	if err := transaction.WithContext(ctx).Omit("Objects").Create(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *objectDetectionRepo) CreateObjects(ctx context.Context, tx *gorm.DB, objects []*types.DetectedObject) ([]*types.DetectedObject, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(objects) == 0 {
		return []*types.DetectedObject{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&objects).Error; err != nil {
		return nil, err
	}
	return objects, nil
}

func (r *objectDetectionRepo) GetByAnalysisIDs(ctx context.Context, tx *gorm.DB, analysisIDs []uuid.UUID) ([]*types.ObjectDetectionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ObjectDetectionResult
	if len(analysisIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("Objects").
		Where("analysis_id IN ?", analysisIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

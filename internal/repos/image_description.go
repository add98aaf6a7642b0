package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/types"
)

type ImageDescriptionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, results []*types.ImageDescriptionResult) ([]*types.ImageDescriptionResult, error)
	GetByAnalysisIDs(ctx context.Context, tx *gorm.DB, analysisIDs []uuid.UUID) ([]*types.ImageDescriptionResult, error)
}

type imageDescriptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImageDescriptionRepo(db *gorm.DB, baseLog *logger.Logger) ImageDescriptionRepo {
	repoLog := baseLog.With("repo", "ImageDescriptionRepo")
	return &imageDescriptionRepo{db: db, log: repoLog}
}

func (r *imageDescriptionRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.ImageDescriptionResult) ([]*types.ImageDescriptionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(results) == 0 {
		return []*types.ImageDescriptionResult{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *imageDescriptionRepo) GetByAnalysisIDs(ctx context.Context, tx *gorm.DB, analysisIDs []uuid.UUID) ([]*types.ImageDescriptionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ImageDescriptionResult
	if len(analysisIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("analysis_id IN ?", analysisIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

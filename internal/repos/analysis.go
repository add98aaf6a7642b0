package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/types"
)

// AnalysisRepo owns the envelope table. All history reads order by
// created_at DESC with id DESC as a tiebreak so pagination stays
// stable when rows share a timestamp.
type AnalysisRepo interface {
	Create(ctx context.Context, tx *gorm.DB, analyses []*types.ImageAnalysis) ([]*types.ImageAnalysis, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ImageAnalysis, error)
	GetPageByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.ImageAnalysis, error)
	CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ImageAnalysis, error)
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	repoLog := baseLog.With("repo", "AnalysisRepo")
	return &analysisRepo{db: db, log: repoLog}
}

func (r *analysisRepo) Create(ctx context.Context, tx *gorm.DB, analyses []*types.ImageAnalysis) ([]*types.ImageAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(analyses) == 0 {
		return []*types.ImageAnalysis{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&analyses).Error; err != nil {
		return nil, err
	}
	return analyses, nil
}

func (r *analysisRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ImageAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ImageAnalysis
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *analysisRepo) GetPageByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.ImageAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ImageAnalysis
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *analysisRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if userID == uuid.Nil {
		return 0, nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.ImageAnalysis{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *analysisRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ImageAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ImageAnalysis
	if sessionID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

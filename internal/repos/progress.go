package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

type ProgressRepo interface {
	// GetForUpdate locks the (participant, activity type) ledger row.
	GetForUpdate(ctx context.Context, tx *gorm.DB, participantID, activityTypeID uuid.UUID) (*types.PointsProgress, error)
	Create(ctx context.Context, tx *gorm.DB, row *types.PointsProgress) (*types.PointsProgress, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	GetByPair(ctx context.Context, tx *gorm.DB, participantID, activityTypeID uuid.UUID) (*types.PointsProgress, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func (r *progressRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, participantID, activityTypeID uuid.UUID) (*types.PointsProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.PointsProgress
	err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("participant_id = ? AND activity_type_id = ?", participantID, activityTypeID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *progressRepo) Create(ctx context.Context, tx *gorm.DB, row *types.PointsProgress) (*types.PointsProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *progressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.PointsProgress{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *progressRepo) GetByPair(ctx context.Context, tx *gorm.DB, participantID, activityTypeID uuid.UUID) (*types.PointsProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.PointsProgress
	err := transaction.WithContext(ctx).
		Where("participant_id = ? AND activity_type_id = ?", participantID, activityTypeID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

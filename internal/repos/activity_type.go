package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

type ActivityTypeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ActivityType) (*types.ActivityType, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivityType, error)
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.ActivityType, error)
	ListActive(ctx context.Context, tx *gorm.DB, includePending bool) ([]*types.ActivityType, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type activityTypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityTypeRepo(db *gorm.DB, baseLog *logger.Logger) ActivityTypeRepo {
	return &activityTypeRepo{db: db, log: baseLog.With("repo", "ActivityTypeRepo")}
}

func (r *activityTypeRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ActivityType) (*types.ActivityType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *activityTypeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivityType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ActivityType
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *activityTypeRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.ActivityType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ActivityType
	err := transaction.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *activityTypeRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ActivityType{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *activityTypeRepo) ListActive(ctx context.Context, tx *gorm.DB, includePending bool) ([]*types.ActivityType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ActivityType
	q := transaction.WithContext(ctx).Where("is_active = ?", true)
	if !includePending {
		q = q.Where("status = ?", types.ActivityTypeApproved)
	}
	if err := q.Order("name ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

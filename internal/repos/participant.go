package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

type ParticipantRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Participant) (*types.Participant, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type participantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParticipantRepo(db *gorm.DB, baseLog *logger.Logger) ParticipantRepo {
	return &participantRepo{db: db, log: baseLog.With("repo", "ParticipantRepo")}
}

func (r *participantRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Participant) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *participantRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Participant
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *participantRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Participant
	err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *participantRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Participant{}).
		Where("id = ?", id).
		Updates(fields).Error
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ActivitySession) (*types.ActivitySession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivitySession, error)
	// GetOwned returns the session only when it belongs to the participant.
	GetOwned(ctx context.Context, tx *gorm.DB, id, participantID uuid.UUID) (*types.ActivitySession, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivitySession, error)
	ListByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) ([]*types.ActivitySession, error)
	ListByStatuses(ctx context.Context, tx *gorm.DB, statuses []types.SessionStatus) ([]*types.ActivitySession, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ActivitySession) (*types.ActivitySession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivitySession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ActivitySession
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *sessionRepo) GetOwned(ctx context.Context, tx *gorm.DB, id, participantID uuid.UUID) (*types.ActivitySession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ActivitySession
	err := transaction.WithContext(ctx).
		Where("id = ? AND participant_id = ?", id, participantID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *sessionRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivitySession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ActivitySession
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

func (r *sessionRepo) ListByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) ([]*types.ActivitySession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ActivitySession
	if err := transaction.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("started_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sessionRepo) ListByStatuses(ctx context.Context, tx *gorm.DB, statuses []types.SessionStatus) ([]*types.ActivitySession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ActivitySession
	if len(statuses) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("submitted_at DESC NULLS LAST").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ActivitySession{}).
		Where("id = ?", id).
		Updates(fields).Error
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

type FaceProfileRepo interface {
	GetByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*types.FaceProfile, error)
	// Upsert replaces the participant's profile; templates are overwritten,
	// never versioned.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.FaceProfile) error
}

type faceProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFaceProfileRepo(db *gorm.DB, baseLog *logger.Logger) FaceProfileRepo {
	return &faceProfileRepo{db: db, log: baseLog.With("repo", "FaceProfileRepo")}
}

func (r *faceProfileRepo) GetByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*types.FaceProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.FaceProfile
	err := transaction.WithContext(ctx).
		Where("participant_id = ?", participantID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *faceProfileRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.FaceProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("participant_id = ?", row.ParticipantID).
		Assign(map[string]any{
			"embedding":   row.Embedding,
			"photo_count": row.PhotoCount,
		}).
		FirstOrCreate(row).Error
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

type FaceCheckRepo interface {
	// Upsert writes the check keyed by (session_id, photo_id): creates if
	// absent, else overwrites scores and flags.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.FaceCheck) error
	GetBySessionAndPhoto(ctx context.Context, tx *gorm.DB, sessionID, photoID uuid.UUID) (*types.FaceCheck, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.FaceCheck, error)
}

type faceCheckRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFaceCheckRepo(db *gorm.DB, baseLog *logger.Logger) FaceCheckRepo {
	return &faceCheckRepo{db: db, log: baseLog.With("repo", "FaceCheckRepo")}
}

func (r *faceCheckRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.FaceCheck) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("session_id = ? AND photo_id = ?", row.SessionID, row.PhotoID).
		Assign(map[string]any{
			"participant_id": row.ParticipantID,
			"matched":        row.Matched,
			"cosine_score":   row.CosineScore,
			"l2_score":       row.L2Score,
			"total_faces":    row.TotalFaces,
			"annotated_key":  row.AnnotatedKey,
			"reason":         row.Reason,
		}).
		FirstOrCreate(row).Error
}

func (r *faceCheckRepo) GetBySessionAndPhoto(ctx context.Context, tx *gorm.DB, sessionID, photoID uuid.UUID) (*types.FaceCheck, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.FaceCheck
	err := transaction.WithContext(ctx).
		Where("session_id = ? AND photo_id = ?", sessionID, photoID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *faceCheckRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.FaceCheck, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.FaceCheck
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

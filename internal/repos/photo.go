package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

type PhotoRepo interface {
	// Upsert writes the photo keyed by (session_id, seq_no), overwriting the
	// slot's metadata when it is reused.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.ActivityPhoto) error
	CountBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ActivityPhoto, error)
	GetBySeq(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, seqNo int) (*types.ActivityPhoto, error)
	// LatestCaptured returns the most recently captured photo of a session.
	LatestCaptured(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.ActivityPhoto, error)
}

type photoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPhotoRepo(db *gorm.DB, baseLog *logger.Logger) PhotoRepo {
	return &photoRepo{db: db, log: baseLog.With("repo", "PhotoRepo")}
}

func (r *photoRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ActivityPhoto) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("session_id = ? AND seq_no = ?", row.SessionID, row.SeqNo).
		Assign(map[string]any{
			"participant_id":  row.ParticipantID,
			"object_key":      row.ObjectKey,
			"captured_at":     row.CapturedAt,
			"lat":             row.Lat,
			"lng":             row.Lng,
			"sha256":          row.SHA256,
			"distance_m":      row.DistanceM,
			"in_geofence":     row.InGeofence,
			"geo_flag_reason": row.GeoFlagReason,
		}).
		FirstOrCreate(row).Error
}

func (r *photoRepo) CountBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.ActivityPhoto{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return int(count), err
}

func (r *photoRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ActivityPhoto, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ActivityPhoto
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq_no ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *photoRepo) GetBySeq(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, seqNo int) (*types.ActivityPhoto, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ActivityPhoto
	err := transaction.WithContext(ctx).
		Where("session_id = ? AND seq_no = ?", sessionID, seqNo).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *photoRepo) LatestCaptured(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.ActivityPhoto, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ActivityPhoto
	err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("captured_at DESC NULLS LAST").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

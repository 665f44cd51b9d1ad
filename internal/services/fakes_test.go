package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// In-memory repo fakes. They ignore the tx argument: services under test pass
// it through untouched and a nil *gorm.DB makes inTx run the callback
// directly.

type fakeSessionRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.ActivitySession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rows: map[uuid.UUID]*types.ActivitySession{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ActivitySession) (*types.ActivitySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivitySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeSessionRepo) GetOwned(ctx context.Context, tx *gorm.DB, id, participantID uuid.UUID) (*types.ActivitySession, error) {
	row, err := r.GetByID(ctx, tx, id)
	if err != nil || row == nil {
		return nil, err
	}
	if row.ParticipantID != participantID {
		return nil, nil
	}
	return row, nil
}

func (r *fakeSessionRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivitySession, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *fakeSessionRepo) ListByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) ([]*types.ActivitySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ActivitySession
	for _, row := range r.rows {
		if row.ParticipantID == participantID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *fakeSessionRepo) ListByStatuses(ctx context.Context, tx *gorm.DB, statuses []types.SessionStatus) ([]*types.ActivitySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ActivitySession
	for _, row := range r.rows {
		for _, st := range statuses {
			if row.Status == st {
				cp := *row
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			row.Status = v.(types.SessionStatus)
		case "flag_reason":
			switch fr := v.(type) {
			case nil:
				row.FlagReason = nil
			case string:
				row.FlagReason = &fr
			case *string:
				row.FlagReason = fr
			}
		case "duration_hours":
			d := v.(float64)
			row.DurationHours = &d
		case "submitted_at":
			ts := v.(time.Time)
			row.SubmittedAt = &ts
		case "points_processed":
			row.PointsProcessed = v.(bool)
		case "updated_at":
			row.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

type fakePhotoRepo struct {
	mu   sync.Mutex
	rows []*types.ActivityPhoto
}

func newFakePhotoRepo() *fakePhotoRepo { return &fakePhotoRepo{} }

func (r *fakePhotoRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ActivityPhoto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rows {
		if existing.SessionID == row.SessionID && existing.SeqNo == row.SeqNo {
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			cp := *row
			r.rows[i] = &cp
			return nil
		}
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	cp := *row
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakePhotoRepo) CountBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (r *fakePhotoRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ActivityPhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ActivityPhoto
	for _, row := range r.rows {
		if row.SessionID == sessionID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqNo < out[j].SeqNo })
	return out, nil
}

func (r *fakePhotoRepo) GetBySeq(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, seqNo int) (*types.ActivityPhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SessionID == sessionID && row.SeqNo == seqNo {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePhotoRepo) LatestCaptured(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.ActivityPhoto, error) {
	rows, _ := r.ListBySession(ctx, tx, sessionID)
	var best *types.ActivityPhoto
	for _, row := range rows {
		if row.CapturedAt == nil {
			continue
		}
		if best == nil || row.CapturedAt.After(*best.CapturedAt) {
			best = row
		}
	}
	if best == nil && len(rows) > 0 {
		best = rows[len(rows)-1]
	}
	return best, nil
}

type fakeActivityTypeRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.ActivityType
}

func newFakeActivityTypeRepo() *fakeActivityTypeRepo {
	return &fakeActivityTypeRepo{rows: map[uuid.UUID]*types.ActivityType{}}
}

func (r *fakeActivityTypeRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ActivityType) (*types.ActivityType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *fakeActivityTypeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivityType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeActivityTypeRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.ActivityType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Name == name {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeActivityTypeRepo) ListActive(ctx context.Context, tx *gorm.DB, includePending bool) ([]*types.ActivityType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ActivityType
	for _, row := range r.rows {
		if !row.IsActive {
			continue
		}
		if !includePending && row.Status != types.ActivityTypeApproved {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeActivityTypeRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			row.Status = v.(types.ActivityTypeStatus)
		case "is_active":
			row.IsActive = v.(bool)
		case "updated_at":
			row.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

type fakeProgressRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*types.PointsProgress
	locks map[string]*sync.Mutex
	held  map[uuid.UUID]*sync.Mutex
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{
		rows:  map[uuid.UUID]*types.PointsProgress{},
		locks: map[string]*sync.Mutex{},
		held:  map[uuid.UUID]*sync.Mutex{},
	}
}

func (r *fakeProgressRepo) rowLock(participantID, activityTypeID uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := participantID.String() + "/" + activityTypeID.String()
	lk, ok := r.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		r.locks[key] = lk
	}
	return lk
}

// GetForUpdate emulates the row lock: when the pair row exists, the lock is
// held until the next UpdateFields on that row, so concurrent award attempts
// for the same (participant, activity type) serialize like they do against
// the database.
func (r *fakeProgressRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, participantID, activityTypeID uuid.UUID) (*types.PointsProgress, error) {
	lk := r.rowLock(participantID, activityTypeID)
	lk.Lock()
	row, err := r.GetByPair(ctx, tx, participantID, activityTypeID)
	if err != nil || row == nil {
		lk.Unlock()
		return row, err
	}
	r.mu.Lock()
	r.held[row.ID] = lk
	r.mu.Unlock()
	return row, nil
}

func (r *fakeProgressRepo) GetByPair(ctx context.Context, tx *gorm.DB, participantID, activityTypeID uuid.UUID) (*types.PointsProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ParticipantID == participantID && row.ActivityTypeID == activityTypeID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeProgressRepo) Create(ctx context.Context, tx *gorm.DB, row *types.PointsProgress) (*types.PointsProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *fakeProgressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "total_minutes":
			row.TotalMinutes = v.(int)
		case "points_awarded":
			row.PointsAwarded = v.(int)
		case "updated_at":
			row.UpdatedAt = v.(time.Time)
		}
	}
	if lk, locked := r.held[id]; locked {
		delete(r.held, id)
		lk.Unlock()
	}
	return nil
}

type fakeParticipantRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{rows: map[uuid.UUID]*types.Participant{}}
}

func (r *fakeParticipantRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Participant) (*types.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *fakeParticipantRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeParticipantRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Participant, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *fakeParticipantRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "total_points":
			row.TotalPoints = v.(int)
		case "face_enrolled":
			row.FaceEnrolled = v.(bool)
		case "face_enrolled_at":
			ts := v.(time.Time)
			row.FaceEnrolledAt = &ts
		case "updated_at":
			row.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

type fakeFaceProfileRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.FaceProfile
}

func newFakeFaceProfileRepo() *fakeFaceProfileRepo {
	return &fakeFaceProfileRepo{rows: map[uuid.UUID]*types.FaceProfile{}}
}

func (r *fakeFaceProfileRepo) GetByParticipant(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*types.FaceProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[participantID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeFaceProfileRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.FaceProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ParticipantID] = &cp
	return nil
}

type fakeFaceCheckRepo struct {
	mu   sync.Mutex
	rows []*types.FaceCheck
}

func newFakeFaceCheckRepo() *fakeFaceCheckRepo { return &fakeFaceCheckRepo{} }

func (r *fakeFaceCheckRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.FaceCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rows {
		if existing.SessionID == row.SessionID && existing.PhotoID == row.PhotoID {
			row.ID = existing.ID
			cp := *row
			r.rows[i] = &cp
			return nil
		}
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeFaceCheckRepo) GetBySessionAndPhoto(ctx context.Context, tx *gorm.DB, sessionID, photoID uuid.UUID) (*types.FaceCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SessionID == sessionID && row.PhotoID == photoID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeFaceCheckRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.FaceCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.FaceCheck
	for _, row := range r.rows {
		if row.SessionID == sessionID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/apperr"
	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/repos"
	"github.com/openseva/seva-backend/internal/types"
	"github.com/openseva/seva-backend/internal/utils"
)

const (
	MinPhotos      = 3
	MaxPhotos      = 5
	DefaultRadiusM = 500
)

type AddPhotoInput struct {
	SeqNo      int
	ObjectKey  string
	CapturedAt *time.Time
	Lat        *float64
	Lng        *float64
	SHA256     *string
}

type PhotoDetail struct {
	Photo       *types.ActivityPhoto `json:"photo"`
	URL         string               `json:"url"`
	IsDuplicate bool                 `json:"is_duplicate"`
}

type TargetLocation struct {
	MapsURL   *string  `json:"maps_url,omitempty"`
	TargetLat *float64 `json:"target_lat,omitempty"`
	TargetLng *float64 `json:"target_lng,omitempty"`
	RadiusM   int      `json:"radius_m"`
}

type SessionDetail struct {
	Session        *types.ActivitySession `json:"session"`
	Photos         []*PhotoDetail         `json:"photos"`
	TargetLocation TargetLocation         `json:"target_location"`
}

type SessionService interface {
	CreateSession(ctx context.Context, participantID, activityTypeID uuid.UUID, name string, description *string) (*types.ActivitySession, error)
	AddPhoto(ctx context.Context, participantID, sessionID uuid.UUID, in AddPhotoInput) (*types.ActivityPhoto, error)
	SubmitSession(ctx context.Context, participantID, sessionID uuid.UUID) (*types.ActivitySession, error)
	GetSessionDetail(ctx context.Context, participantID, sessionID uuid.UUID) (*SessionDetail, error)
	ListSessions(ctx context.Context, participantID uuid.UUID) ([]*types.ActivitySession, error)
}

type sessionService struct {
	db               *gorm.DB
	log              *logger.Logger
	sessionRepo      repos.SessionRepo
	photoRepo        repos.PhotoRepo
	activityTypeRepo repos.ActivityTypeRepo
	bucketService    BucketService
}

func NewSessionService(
	db *gorm.DB,
	log *logger.Logger,
	sessionRepo repos.SessionRepo,
	photoRepo repos.PhotoRepo,
	activityTypeRepo repos.ActivityTypeRepo,
	bucketService BucketService,
) SessionService {
	return &sessionService{
		db:               db,
		log:              log.With("service", "SessionService"),
		sessionRepo:      sessionRepo,
		photoRepo:        photoRepo,
		activityTypeRepo: activityTypeRepo,
		bucketService:    bucketService,
	}
}

func (s *sessionService) inTx(fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.Transaction(fn)
}

// endOfDay is the session deadline: 23:59:59 of the calendar day dt falls in.
func endOfDay(dt time.Time) time.Time {
	y, m, d := dt.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, dt.Location())
}

func (s *sessionService) CreateSession(ctx context.Context, participantID, activityTypeID uuid.UUID, name string, description *string) (*types.ActivitySession, error) {
	at, err := s.activityTypeRepo.GetByID(ctx, nil, activityTypeID)
	if err != nil {
		return nil, err
	}
	if at == nil {
		return nil, apperr.NotFound("activity type not found")
	}

	code, err := utils.NewSessionCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &types.ActivitySession{
		ParticipantID:  participantID,
		ActivityTypeID: activityTypeID,
		ActivityName:   strings.TrimSpace(name),
		Description:    description,
		SessionCode:    code,
		StartedAt:      now,
		ExpiresAt:      endOfDay(now),
		Status:         types.SessionDraft,
	}
	created, err := s.sessionRepo.Create(ctx, nil, session)
	if err != nil {
		return nil, err
	}
	s.log.Info("Session created", "session_id", created.ID, "participant_id", participantID)
	return created, nil
}

// loadOwnedDraft runs the shared ownership/state/expiry gate for mutating
// calls. Expiry is detected lazily here and persisted before the call fails.
func (s *sessionService) loadOwnedDraft(ctx context.Context, tx *gorm.DB, participantID, sessionID uuid.UUID, now time.Time) (*types.ActivitySession, error) {
	session, err := s.sessionRepo.GetOwned(ctx, tx, sessionID, participantID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}
	if session.Status != types.SessionDraft {
		return nil, apperr.InvalidState("session is %s, not DRAFT", session.Status)
	}
	if now.After(session.ExpiresAt) {
		if err := s.sessionRepo.UpdateFields(ctx, tx, session.ID, map[string]any{
			"status":     types.SessionExpired,
			"updated_at": now,
		}); err != nil {
			return nil, err
		}
		return nil, apperr.InvalidState("session expired")
	}
	return session, nil
}

func (s *sessionService) AddPhoto(ctx context.Context, participantID, sessionID uuid.UUID, in AddPhotoInput) (*types.ActivityPhoto, error) {
	now := time.Now().UTC()

	session, err := s.loadOwnedDraft(ctx, nil, participantID, sessionID, now)
	if err != nil {
		return nil, err
	}

	if in.SeqNo < 1 || in.SeqNo > MaxPhotos {
		return nil, apperr.Validation("seq_no must be between 1 and %d", MaxPhotos)
	}

	existing, err := s.photoRepo.GetBySeq(ctx, nil, session.ID, in.SeqNo)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		count, err := s.photoRepo.CountBySession(ctx, nil, session.ID)
		if err != nil {
			return nil, err
		}
		if count >= MaxPhotos {
			return nil, apperr.Validation("maximum %d photos allowed", MaxPhotos)
		}
	}

	at, err := s.activityTypeRepo.GetByID(ctx, nil, session.ActivityTypeID)
	if err != nil {
		return nil, err
	}
	distanceM, err := s.enforceGeofence(at, in.Lat, in.Lng)
	if err != nil {
		return nil, err
	}

	photo := &types.ActivityPhoto{
		SessionID:     session.ID,
		ParticipantID: participantID,
		SeqNo:         in.SeqNo,
		ObjectKey:     in.ObjectKey,
		CapturedAt:    in.CapturedAt,
		Lat:           in.Lat,
		Lng:           in.Lng,
		SHA256:        in.SHA256,
		DistanceM:     distanceM,
		InGeofence:    true,
	}
	if err := s.photoRepo.Upsert(ctx, nil, photo); err != nil {
		return nil, err
	}
	return photo, nil
}

// enforceGeofence rejects the upload when the activity type has a configured
// target and the photo's coordinates fall outside the allowed radius. A type
// with no target never blocks.
func (s *sessionService) enforceGeofence(at *types.ActivityType, lat, lng *float64) (*float64, error) {
	if at == nil || at.TargetLat == nil || at.TargetLng == nil {
		return nil, nil
	}
	radiusM := at.RadiusM
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	if lat == nil || lng == nil {
		return nil, apperr.Validation("location is required for this activity; enable GPS and try again")
	}
	distance := utils.HaversineM(*lat, *lng, *at.TargetLat, *at.TargetLng)
	if distance > float64(radiusM) {
		return nil, apperr.Validation("outside allowed area: ~%dm away, allowed radius is %dm", int(distance), radiusM)
	}
	return &distance, nil
}

func (s *sessionService) SubmitSession(ctx context.Context, participantID, sessionID uuid.UUID) (*types.ActivitySession, error) {
	now := time.Now().UTC()

	var out *types.ActivitySession
	err := s.inTx(func(tx *gorm.DB) error {
		session, err := s.loadOwnedDraft(ctx, tx, participantID, sessionID, now)
		if err != nil {
			return err
		}

		photos, err := s.photoRepo.ListBySession(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		if len(photos) < MinPhotos {
			return apperr.Validation("minimum %d photos required", MinPhotos)
		}

		photoTimes := make([]time.Time, 0, len(photos))
		for _, ph := range photos {
			if ph.CapturedAt != nil {
				photoTimes = append(photoTimes, *ph.CapturedAt)
			}
		}
		duration := DurationHours(photoTimes)
		flags := EvaluatePhotoFraud(photos, session.StartedAt, session.ExpiresAt)

		fields := map[string]any{
			"duration_hours": duration,
			"submitted_at":   now,
			"updated_at":     now,
		}
		if len(flags) > 0 {
			fields["status"] = types.SessionFlagged
			fields["flag_reason"] = strings.Join(flags, ",")
		} else {
			fields["status"] = types.SessionSubmitted
		}
		if err := s.sessionRepo.UpdateFields(ctx, tx, session.ID, fields); err != nil {
			return err
		}

		session.DurationHours = &duration
		session.SubmittedAt = &now
		if len(flags) > 0 {
			joined := strings.Join(flags, ",")
			session.Status = types.SessionFlagged
			session.FlagReason = &joined
			s.log.Info("Session flagged on submit", "session_id", session.ID, "flags", joined)
		} else {
			session.Status = types.SessionSubmitted
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sessionService) GetSessionDetail(ctx context.Context, participantID, sessionID uuid.UUID) (*SessionDetail, error) {
	session, err := s.sessionRepo.GetOwned(ctx, nil, sessionID, participantID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}

	photos, err := s.photoRepo.ListBySession(ctx, nil, session.ID)
	if err != nil {
		return nil, err
	}

	shaCounts := map[string]int{}
	for _, ph := range photos {
		if ph.SHA256 != nil && *ph.SHA256 != "" {
			shaCounts[*ph.SHA256]++
		}
	}

	details := make([]*PhotoDetail, 0, len(photos))
	for _, ph := range photos {
		dup := ph.SHA256 != nil && shaCounts[*ph.SHA256] > 1
		url := ""
		if s.bucketService != nil {
			url = s.bucketService.GetPublicURL(ph.ObjectKey)
		}
		details = append(details, &PhotoDetail{Photo: ph, URL: url, IsDuplicate: dup})
	}

	target := TargetLocation{RadiusM: DefaultRadiusM}
	at, err := s.activityTypeRepo.GetByID(ctx, nil, session.ActivityTypeID)
	if err != nil {
		return nil, err
	}
	if at != nil {
		target = TargetLocation{
			MapsURL:   at.MapsURL,
			TargetLat: at.TargetLat,
			TargetLng: at.TargetLng,
			RadiusM:   at.RadiusM,
		}
		if target.RadiusM <= 0 {
			target.RadiusM = DefaultRadiusM
		}
	}

	return &SessionDetail{
		Session:        session,
		Photos:         details,
		TargetLocation: target,
	}, nil
}

func (s *sessionService) ListSessions(ctx context.Context, participantID uuid.UUID) ([]*types.ActivitySession, error) {
	return s.sessionRepo.ListByParticipant(ctx, nil, participantID)
}

// NewEvidenceObjectKey places uploads under a per-session prefix.
func NewEvidenceObjectKey(participantID, sessionID uuid.UUID, ext string) string {
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("activities/%s/%s/%s.%s", participantID, sessionID, uuid.New().String(), ext)
}

package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/apperr"
	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/repos"
	"github.com/openseva/seva-backend/internal/types"
)

// AwardResult reports the outcome of one award attempt. Ineligibility is
// never an error: the enclosing transaction must still be able to commit
// other state changes, so the ledger reports a zero award with a reason.
type AwardResult struct {
	Awarded         int    `json:"awarded"`
	DurationMinutes int    `json:"duration_minutes"`
	TotalMinutes    int    `json:"total_minutes"`
	PointsTotal     int    `json:"points_awarded_total_for_activity"`
	Reason          string `json:"reason,omitempty"`
}

type PointsService interface {
	// AwardPoints converts the session's verified duration into a point
	// delta. It locks, in fixed order, the session row, the progress row and
	// the participant row, and never commits: the caller owns the
	// transaction and composes the award with its own state changes.
	AwardPoints(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*AwardResult, error)
}

type pointsService struct {
	log              *logger.Logger
	sessionRepo      repos.SessionRepo
	photoRepo        repos.PhotoRepo
	activityTypeRepo repos.ActivityTypeRepo
	progressRepo     repos.ProgressRepo
	participantRepo  repos.ParticipantRepo
}

func NewPointsService(
	log *logger.Logger,
	sessionRepo repos.SessionRepo,
	photoRepo repos.PhotoRepo,
	activityTypeRepo repos.ActivityTypeRepo,
	progressRepo repos.ProgressRepo,
	participantRepo repos.ParticipantRepo,
) PointsService {
	return &pointsService{
		log:              log.With("service", "PointsService"),
		sessionRepo:      sessionRepo,
		photoRepo:        photoRepo,
		activityTypeRepo: activityTypeRepo,
		progressRepo:     progressRepo,
		participantRepo:  participantRepo,
	}
}

// Entitlement is the total points a participant's accumulated minutes
// justify for one activity type, clamped to the type's cap.
func Entitlement(totalMinutes, unitMinutes, unitPoints, maxPoints int) int {
	if unitMinutes <= 0 || unitPoints <= 0 {
		return 0
	}
	should := (totalMinutes / unitMinutes) * unitPoints
	if should > maxPoints {
		should = maxPoints
	}
	return should
}

func softReject(reason string) *AwardResult {
	return &AwardResult{Awarded: 0, Reason: reason}
}

func (s *pointsService) AwardPoints(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*AwardResult, error) {
	// Lock order: session -> progress -> participant. Every award attempt
	// takes the same order so concurrent attempts serialize.
	session, err := s.sessionRepo.GetByIDForUpdate(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}

	if session.Status != types.SessionSubmitted && session.Status != types.SessionApproved {
		return softReject(fmt.Sprintf("session status is %s, not eligible", session.Status)), nil
	}

	first, err := s.photoRepo.GetBySeq(ctx, tx, session.ID, 1)
	if err != nil {
		return nil, err
	}
	last, err := s.photoRepo.GetBySeq(ctx, tx, session.ID, MaxPhotos)
	if err != nil {
		return nil, err
	}
	if first == nil || last == nil {
		return softReject(fmt.Sprintf("missing seq 1 or seq %d photo", MaxPhotos)), nil
	}

	t1 := photoTimestamp(first)
	t5 := photoTimestamp(last)
	if !t5.After(t1) {
		return softReject("invalid timestamps for duration"), nil
	}

	durationMinutes := int(t5.Sub(t1).Minutes())
	if durationMinutes <= 0 {
		return softReject("duration too small"), nil
	}

	hours := math.Round(float64(durationMinutes)/60.0*100) / 100
	if err := s.sessionRepo.UpdateFields(ctx, tx, session.ID, map[string]any{
		"duration_hours": hours,
	}); err != nil {
		return nil, err
	}

	at, err := s.activityTypeRepo.GetByID(ctx, tx, session.ActivityTypeID)
	if err != nil {
		return nil, err
	}
	if at == nil || !at.IsActive {
		return softReject("activity type not active"), nil
	}

	unitMinutes := int(at.HoursPerUnit * 60)
	unitPoints := at.PointsPerUnit
	maxPoints := at.MaxPoints
	if unitMinutes <= 0 || unitPoints <= 0 {
		return softReject("invalid activity rule config"), nil
	}

	progress, err := s.progressRepo.GetForUpdate(ctx, tx, session.ParticipantID, session.ActivityTypeID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress, err = s.progressRepo.Create(ctx, tx, &types.PointsProgress{
			ParticipantID:  session.ParticipantID,
			ActivityTypeID: session.ActivityTypeID,
		})
		if err != nil {
			return nil, err
		}
	}

	totalMinutes := progress.TotalMinutes + durationMinutes
	entitlement := Entitlement(totalMinutes, unitMinutes, unitPoints, maxPoints)

	delta := entitlement - progress.PointsAwarded
	if delta < 0 {
		delta = 0
	}

	pointsAwarded := progress.PointsAwarded
	if delta > 0 {
		participant, err := s.participantRepo.GetByIDForUpdate(ctx, tx, session.ParticipantID)
		if err != nil {
			return nil, err
		}
		if participant == nil {
			return nil, apperr.NotFound("participant not found")
		}
		if err := s.participantRepo.UpdateFields(ctx, tx, participant.ID, map[string]any{
			"total_points": participant.TotalPoints + delta,
			"updated_at":   time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		pointsAwarded = entitlement
	}

	if err := s.progressRepo.UpdateFields(ctx, tx, progress.ID, map[string]any{
		"total_minutes":  totalMinutes,
		"points_awarded": pointsAwarded,
		"updated_at":     time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	s.log.Debug("Award computed",
		"session_id", session.ID,
		"duration_minutes", durationMinutes,
		"delta", delta,
		"entitlement", entitlement,
	)

	return &AwardResult{
		Awarded:         delta,
		DurationMinutes: durationMinutes,
		TotalMinutes:    totalMinutes,
		PointsTotal:     pointsAwarded,
	}, nil
}

// photoTimestamp prefers the client-supplied capture time and falls back to
// the row's creation time when it is absent.
func photoTimestamp(ph *types.ActivityPhoto) time.Time {
	if ph.CapturedAt != nil {
		return *ph.CapturedAt
	}
	return ph.CreatedAt
}

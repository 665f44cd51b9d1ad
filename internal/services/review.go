package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openseva/seva-backend/internal/apperr"
	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/repos"
	"github.com/openseva/seva-backend/internal/types"
)

type ReviewDecision struct {
	Session *types.ActivitySession `json:"session"`
	Award   *AwardResult           `json:"award,omitempty"`
}

type AdminReviewService interface {
	// ListReviewQueue returns sessions awaiting a decision. An empty filter
	// means the default queue: SUBMITTED and FLAGGED.
	ListReviewQueue(ctx context.Context, statuses []types.SessionStatus) ([]*types.ActivitySession, error)
	// Approve moves a reviewable session to APPROVED and awards points in
	// the same transaction. Re-approving is a no-op on the ledger.
	Approve(ctx context.Context, sessionID uuid.UUID) (*ReviewDecision, error)
	Reject(ctx context.Context, sessionID uuid.UUID, reason string) (*types.ActivitySession, error)
}

type adminReviewService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.SessionRepo
	points      PointsService
}

func NewAdminReviewService(db *gorm.DB, log *logger.Logger, sessionRepo repos.SessionRepo, points PointsService) AdminReviewService {
	return &adminReviewService{
		db:          db,
		log:         log.With("service", "AdminReviewService"),
		sessionRepo: sessionRepo,
		points:      points,
	}
}

func (s *adminReviewService) inTx(fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.Transaction(fn)
}

func (s *adminReviewService) ListReviewQueue(ctx context.Context, statuses []types.SessionStatus) ([]*types.ActivitySession, error) {
	if len(statuses) == 0 {
		statuses = types.ReviewableStatuses()
	}
	return s.sessionRepo.ListByStatuses(ctx, nil, statuses)
}

// loadReviewable locks the session row and gates on reviewability.
func (s *adminReviewService) loadReviewable(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.ActivitySession, error) {
	session, err := s.sessionRepo.GetByIDForUpdate(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}
	reviewable := false
	for _, st := range types.ReviewableStatuses() {
		if session.Status == st {
			reviewable = true
			break
		}
	}
	if !reviewable {
		return nil, apperr.InvalidState("session is %s, not reviewable", session.Status)
	}
	return session, nil
}

func (s *adminReviewService) Approve(ctx context.Context, sessionID uuid.UUID) (*ReviewDecision, error) {
	var out *ReviewDecision
	err := s.inTx(func(tx *gorm.DB) error {
		session, err := s.loadReviewable(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.sessionRepo.UpdateFields(ctx, tx, session.ID, map[string]any{
			"status":      types.SessionApproved,
			"flag_reason": nil,
			"updated_at":  now,
		}); err != nil {
			return err
		}
		session.Status = types.SessionApproved
		session.FlagReason = nil

		// Guard against double award: a session whose points already went
		// through approves cleanly but moves no points.
		if session.PointsProcessed {
			out = &ReviewDecision{
				Session: session,
				Award:   softReject("points already processed"),
			}
			return nil
		}

		award, err := s.points.AwardPoints(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		if err := s.sessionRepo.UpdateFields(ctx, tx, session.ID, map[string]any{
			"points_processed": true,
			"updated_at":       now,
		}); err != nil {
			return err
		}
		session.PointsProcessed = true

		out = &ReviewDecision{Session: session, Award: award}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Session approved", "session_id", sessionID, "awarded", out.Award.Awarded)
	return out, nil
}

func (s *adminReviewService) Reject(ctx context.Context, sessionID uuid.UUID, reason string) (*types.ActivitySession, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	var out *types.ActivitySession
	err := s.inTx(func(tx *gorm.DB) error {
		session, err := s.loadReviewable(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.sessionRepo.UpdateFields(ctx, tx, session.ID, map[string]any{
			"status":      types.SessionRejected,
			"flag_reason": reason,
			"updated_at":  now,
		}); err != nil {
			return err
		}
		session.Status = types.SessionRejected
		session.FlagReason = &reason
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Session rejected", "session_id", sessionID)
	return out, nil
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openseva/seva-backend/internal/types"
)

type ledgerEnv struct {
	points       PointsService
	sessions     *fakeSessionRepo
	photos       *fakePhotoRepo
	activities   *fakeActivityTypeRepo
	progress     *fakeProgressRepo
	participants *fakeParticipantRepo

	participant  *types.Participant
	activityType *types.ActivityType
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	env := &ledgerEnv{
		sessions:     newFakeSessionRepo(),
		photos:       newFakePhotoRepo(),
		activities:   newFakeActivityTypeRepo(),
		progress:     newFakeProgressRepo(),
		participants: newFakeParticipantRepo(),
	}
	env.points = NewPointsService(testLogger(t), env.sessions, env.photos, env.activities, env.progress, env.participants)

	env.participant, _ = env.participants.Create(context.Background(), nil, &types.Participant{
		Email:     "asha@example.org",
		FirstName: "Asha",
		LastName:  "Rao",
	})
	env.activityType, _ = env.activities.Create(context.Background(), nil, &types.ActivityType{
		Name:          "Tree Planting",
		Status:        types.ActivityTypeApproved,
		HoursPerUnit:  20,
		PointsPerUnit: 5,
		MaxPoints:     20,
		IsActive:      true,
	})
	return env
}

// addSession creates a SUBMITTED session whose first and last photos span the
// given number of minutes.
func (env *ledgerEnv) addSession(t *testing.T, minutes int) *types.ActivitySession {
	t.Helper()
	start := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	session, err := env.sessions.Create(context.Background(), nil, &types.ActivitySession{
		ParticipantID:  env.participant.ID,
		ActivityTypeID: env.activityType.ID,
		ActivityName:   "Tree Planting",
		SessionCode:    "c0ffee",
		StartedAt:      start,
		ExpiresAt:      start.Add(16 * time.Hour),
		Status:         types.SessionSubmitted,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	end := start.Add(time.Duration(minutes) * time.Minute)
	for seq, ts := range map[int]time.Time{1: start, MaxPhotos: end} {
		if err := env.photos.Upsert(context.Background(), nil, &types.ActivityPhoto{
			SessionID:     session.ID,
			ParticipantID: env.participant.ID,
			SeqNo:         seq,
			ObjectKey:     "k",
			CapturedAt:    &ts,
		}); err != nil {
			t.Fatalf("upsert photo: %v", err)
		}
	}
	return session
}

func TestAwardPointsBasic(t *testing.T) {
	env := newLedgerEnv(t)
	session := env.addSession(t, 1200)

	res, err := env.points.AwardPoints(context.Background(), nil, session.ID)
	if err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}
	if res.Awarded != 5 {
		t.Fatalf("Awarded=%d, want 5", res.Awarded)
	}
	if res.DurationMinutes != 1200 {
		t.Fatalf("DurationMinutes=%d, want 1200", res.DurationMinutes)
	}
	if res.TotalMinutes != 1200 {
		t.Fatalf("TotalMinutes=%d, want 1200", res.TotalMinutes)
	}
	if res.PointsTotal != 5 {
		t.Fatalf("PointsTotal=%d, want 5", res.PointsTotal)
	}

	p, _ := env.participants.GetByID(context.Background(), nil, env.participant.ID)
	if p.TotalPoints != 5 {
		t.Fatalf("participant TotalPoints=%d, want 5", p.TotalPoints)
	}
	s, _ := env.sessions.GetByID(context.Background(), nil, session.ID)
	if s.DurationHours == nil || *s.DurationHours != 20 {
		t.Fatalf("session DurationHours=%v, want 20", s.DurationHours)
	}
}

func TestAwardPointsDeltaAcrossSessions(t *testing.T) {
	env := newLedgerEnv(t)

	first := env.addSession(t, 1200)
	if _, err := env.points.AwardPoints(context.Background(), nil, first.ID); err != nil {
		t.Fatalf("first award: %v", err)
	}

	// Partial unit: 600 more minutes does not reach the next 1200-minute
	// unit, so no new points move.
	second := env.addSession(t, 600)
	res, err := env.points.AwardPoints(context.Background(), nil, second.ID)
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if res.Awarded != 0 {
		t.Fatalf("partial unit Awarded=%d, want 0", res.Awarded)
	}
	if res.TotalMinutes != 1800 {
		t.Fatalf("TotalMinutes=%d, want 1800", res.TotalMinutes)
	}

	// Crossing the next unit pays only the delta.
	third := env.addSession(t, 600)
	res, err = env.points.AwardPoints(context.Background(), nil, third.ID)
	if err != nil {
		t.Fatalf("third award: %v", err)
	}
	if res.Awarded != 5 {
		t.Fatalf("delta Awarded=%d, want 5", res.Awarded)
	}
	p, _ := env.participants.GetByID(context.Background(), nil, env.participant.ID)
	if p.TotalPoints != 10 {
		t.Fatalf("participant TotalPoints=%d, want 10", p.TotalPoints)
	}
}

func TestAwardPointsCappedAtMax(t *testing.T) {
	env := newLedgerEnv(t)
	session := env.addSession(t, 7200)

	res, err := env.points.AwardPoints(context.Background(), nil, session.ID)
	if err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}
	if res.Awarded != 20 {
		t.Fatalf("Awarded=%d, want 20 (cap)", res.Awarded)
	}

	// More hours past the cap move nothing.
	extra := env.addSession(t, 2400)
	res, err = env.points.AwardPoints(context.Background(), nil, extra.ID)
	if err != nil {
		t.Fatalf("AwardPoints past cap: %v", err)
	}
	if res.Awarded != 0 {
		t.Fatalf("past cap Awarded=%d, want 0", res.Awarded)
	}
	p, _ := env.participants.GetByID(context.Background(), nil, env.participant.ID)
	if p.TotalPoints != 20 {
		t.Fatalf("participant TotalPoints=%d, want 20", p.TotalPoints)
	}
}

func TestAwardPointsSoftRejects(t *testing.T) {
	env := newLedgerEnv(t)

	// Ineligible status.
	draft := env.addSession(t, 1200)
	if err := env.sessions.UpdateFields(context.Background(), nil, draft.ID, map[string]any{
		"status": types.SessionDraft,
	}); err != nil {
		t.Fatalf("set status: %v", err)
	}
	res, err := env.points.AwardPoints(context.Background(), nil, draft.ID)
	if err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}
	if res.Awarded != 0 || res.Reason == "" {
		t.Fatalf("draft session: got %+v, want zero award with reason", res)
	}

	// Missing boundary photo.
	start := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	noPhotos, _ := env.sessions.Create(context.Background(), nil, &types.ActivitySession{
		ParticipantID:  env.participant.ID,
		ActivityTypeID: env.activityType.ID,
		SessionCode:    "deadbeef",
		StartedAt:      start,
		ExpiresAt:      start.Add(16 * time.Hour),
		Status:         types.SessionSubmitted,
	})
	res, err = env.points.AwardPoints(context.Background(), nil, noPhotos.ID)
	if err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}
	if res.Awarded != 0 || res.Reason == "" {
		t.Fatalf("missing photos: got %+v, want zero award with reason", res)
	}

	// Last photo not after first.
	zeroSpan := env.addSession(t, 0)
	res, err = env.points.AwardPoints(context.Background(), nil, zeroSpan.ID)
	if err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}
	if res.Awarded != 0 || res.Reason == "" {
		t.Fatalf("zero span: got %+v, want zero award with reason", res)
	}

	p, _ := env.participants.GetByID(context.Background(), nil, env.participant.ID)
	if p.TotalPoints != 0 {
		t.Fatalf("participant TotalPoints=%d, want 0", p.TotalPoints)
	}
}

func TestAwardPointsConcurrentSameProgress(t *testing.T) {
	env := newLedgerEnv(t)
	if _, err := env.progress.Create(context.Background(), nil, &types.PointsProgress{
		ParticipantID:  env.participant.ID,
		ActivityTypeID: env.activityType.ID,
	}); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	// Two sessions of two units each: together they land exactly on the
	// 20-point cap, whichever award runs first.
	sessions := []*types.ActivitySession{
		env.addSession(t, 2400),
		env.addSession(t, 2400),
	}

	results := make([]*AwardResult, len(sessions))
	var wg sync.WaitGroup
	for i, session := range sessions {
		wg.Add(1)
		go func(i int, session *types.ActivitySession) {
			defer wg.Done()
			res, err := env.points.AwardPoints(context.Background(), nil, session.ID)
			if err != nil {
				t.Errorf("AwardPoints %d: %v", i, err)
				return
			}
			results[i] = res
		}(i, session)
	}
	wg.Wait()

	awarded := 0
	for i, res := range results {
		if res == nil {
			t.Fatalf("missing result %d", i)
		}
		awarded += res.Awarded
	}
	if awarded != 20 {
		t.Fatalf("deltas sum to %d, want 20", awarded)
	}

	prog, _ := env.progress.GetByPair(context.Background(), nil, env.participant.ID, env.activityType.ID)
	if prog.TotalMinutes != 4800 {
		t.Fatalf("TotalMinutes=%d, want 4800 (no lost update)", prog.TotalMinutes)
	}
	if prog.PointsAwarded != 20 {
		t.Fatalf("PointsAwarded=%d, want 20 (never past the cap)", prog.PointsAwarded)
	}
	p, _ := env.participants.GetByID(context.Background(), nil, env.participant.ID)
	if p.TotalPoints != 20 {
		t.Fatalf("participant TotalPoints=%d, want 20", p.TotalPoints)
	}
}

func TestEntitlement(t *testing.T) {
	cases := []struct {
		name                                          string
		totalMinutes, unitMinutes, unitPoints, maxPts int
		want                                          int
	}{
		{"below_one_unit", 1199, 1200, 5, 20, 0},
		{"exactly_one_unit", 1200, 1200, 5, 20, 5},
		{"floors_partial_units", 2399, 1200, 5, 20, 5},
		{"clamped_to_max", 9600, 1200, 5, 20, 20},
		{"zero_unit_minutes", 1200, 0, 5, 20, 0},
		{"zero_unit_points", 1200, 1200, 0, 20, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Entitlement(tc.totalMinutes, tc.unitMinutes, tc.unitPoints, tc.maxPts)
			if got != tc.want {
				t.Fatalf("Entitlement=%d, want %d", got, tc.want)
			}
		})
	}
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openseva/seva-backend/internal/apperr"
	"github.com/openseva/seva-backend/internal/clients/faceid"
	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/repos"
	"github.com/openseva/seva-backend/internal/types"
)

// Match thresholds. Both must hold for a positive identification.
const (
	CosineThreshold = 0.30
	L2Threshold     = 1.10

	MinEnrollImages = 3
	MaxEnrollImages = 5
)

type EnrollResult struct {
	PhotoCount   int `json:"photo_count"`
	EmbeddingDim int `json:"embedding_dim"`
}

type VerifyResult struct {
	Matched      bool     `json:"matched"`
	CosineScore  *float64 `json:"cosine_score,omitempty"`
	L2Score      *float64 `json:"l2_score,omitempty"`
	TotalFaces   int      `json:"total_faces"`
	AnnotatedURL string   `json:"annotated_url,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

type FaceService interface {
	// Enroll builds the participant's biometric template from 3-5 photos.
	// The template replaces any previous one.
	Enroll(ctx context.Context, participantID uuid.UUID, images [][]byte) (*EnrollResult, error)
	// VerifySession compares the session's most recent evidence photo
	// against the enrolled template and records the outcome. Any non-match,
	// including a photo with no detectable face, flags the session for
	// review.
	VerifySession(ctx context.Context, participantID, sessionID uuid.UUID) (*VerifyResult, error)
}

type faceService struct {
	log             *logger.Logger
	engine          faceid.Engine
	pool            *FacePool
	bucketService   BucketService
	profileRepo     repos.FaceProfileRepo
	checkRepo       repos.FaceCheckRepo
	sessionRepo     repos.SessionRepo
	photoRepo       repos.PhotoRepo
	participantRepo repos.ParticipantRepo
}

func NewFaceService(
	log *logger.Logger,
	engine faceid.Engine,
	pool *FacePool,
	bucketService BucketService,
	profileRepo repos.FaceProfileRepo,
	checkRepo repos.FaceCheckRepo,
	sessionRepo repos.SessionRepo,
	photoRepo repos.PhotoRepo,
	participantRepo repos.ParticipantRepo,
) FaceService {
	return &faceService{
		log:             log.With("service", "FaceService"),
		engine:          engine,
		pool:            pool,
		bucketService:   bucketService,
		profileRepo:     profileRepo,
		checkRepo:       checkRepo,
		sessionRepo:     sessionRepo,
		photoRepo:       photoRepo,
		participantRepo: participantRepo,
	}
}

func (s *faceService) Enroll(ctx context.Context, participantID uuid.UUID, images [][]byte) (*EnrollResult, error) {
	if len(images) < MinEnrollImages || len(images) > MaxEnrollImages {
		return nil, apperr.Validation("between %d and %d photos required", MinEnrollImages, MaxEnrollImages)
	}

	// One detect round trip per image, fanned out. An image with no
	// detectable face is skipped, not fatal; the usable-count gate below
	// decides whether enrollment can proceed.
	embeddings := make([][]float32, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxEnrollImages)
	for i := range images {
		i := i
		g.Go(func() error {
			faces, err := s.engine.DetectFaces(gctx, images[i])
			if err != nil {
				return err
			}
			if face := largestFace(faces); face != nil {
				embeddings[i] = face.Embedding
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usable := make([][]float32, 0, len(embeddings))
	for _, e := range embeddings {
		if len(e) > 0 {
			usable = append(usable, e)
		}
	}
	if len(usable) < MinEnrollImages {
		return nil, apperr.Validation("could not detect a face in enough photos: need %d, got %d", MinEnrollImages, len(usable))
	}

	template := l2Normalize(averageEmbeddings(usable))

	profile := &types.FaceProfile{
		ParticipantID: participantID,
		PhotoCount:    len(usable),
	}
	if err := profile.SetEmbedding(template); err != nil {
		return nil, err
	}
	if err := s.profileRepo.Upsert(ctx, nil, profile); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.participantRepo.UpdateFields(ctx, nil, participantID, map[string]any{
		"face_enrolled":    true,
		"face_enrolled_at": now,
		"updated_at":       now,
	}); err != nil {
		return nil, err
	}

	s.log.Info("Face profile enrolled", "participant_id", participantID, "photo_count", len(usable))
	return &EnrollResult{PhotoCount: len(usable), EmbeddingDim: len(template)}, nil
}

func (s *faceService) VerifySession(ctx context.Context, participantID, sessionID uuid.UUID) (*VerifyResult, error) {
	profile, err := s.profileRepo.GetByParticipant(ctx, nil, participantID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperr.NotFound("no face profile enrolled for participant")
	}
	reference, err := profile.GetEmbedding()
	if err != nil {
		return nil, fmt.Errorf("decode face template: %w", err)
	}

	session, err := s.sessionRepo.GetOwned(ctx, nil, sessionID, participantID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}

	photo, err := s.photoRepo.LatestCaptured(ctx, nil, session.ID)
	if err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, apperr.Validation("session has no photos to verify")
	}

	raw, err := s.bucketService.DownloadFile(ctx, photo.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("fetch evidence photo: %w", err)
	}

	faces, err := s.engine.DetectFaces(ctx, raw)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{TotalFaces: len(faces)}
	var best *faceid.Face
	if len(faces) == 0 {
		result.Reason = "no_faces_detected"
	} else {
		bestCos := math.Inf(-1)
		for i := range faces {
			c := cosineSimilarity(reference, faces[i].Embedding)
			if c > bestCos {
				bestCos = c
				best = &faces[i]
			}
		}
		l2 := l2Distance(reference, best.Embedding)
		result.CosineScore = &bestCos
		result.L2Score = &l2
		result.Matched = withinThresholds(bestCos, l2)
		if !result.Matched {
			result.Reason = fmt.Sprintf("cos=%.3f l2=%.3f", bestCos, l2)
		}
	}

	annotatedKey, err := s.annotateAndUpload(ctx, participantID, session.ID, photo.ID, raw, best, result.Matched)
	if err != nil {
		// The audit image is best-effort; the verdict stands without it.
		s.log.Warn("Annotation failed", "session_id", session.ID, "error", err)
	} else if annotatedKey != "" {
		result.AnnotatedURL = s.bucketService.GetPublicURL(annotatedKey)
	}

	totalFaces := len(faces)
	check := &types.FaceCheck{
		ParticipantID: participantID,
		SessionID:     session.ID,
		PhotoID:       photo.ID,
		Matched:       result.Matched,
		CosineScore:   result.CosineScore,
		L2Score:       result.L2Score,
		TotalFaces:    &totalFaces,
	}
	if annotatedKey != "" {
		check.AnnotatedKey = &annotatedKey
	}
	if result.Reason != "" {
		check.Reason = &result.Reason
	}
	if err := s.checkRepo.Upsert(ctx, nil, check); err != nil {
		return nil, err
	}

	if !result.Matched && sessionCanBeFlagged(session.Status) {
		reason := "face_mismatch:" + result.Reason
		if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
			"status":      types.SessionFlagged,
			"flag_reason": reason,
			"updated_at":  time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		s.log.Info("Session flagged by face check", "session_id", session.ID, "reason", result.Reason)
	}

	return result, nil
}

// withinThresholds: both gates must pass, and equality at either threshold
// still counts as a match.
func withinThresholds(cos, l2 float64) bool {
	return cos >= CosineThreshold && l2 <= L2Threshold
}

// sessionCanBeFlagged: terminal review outcomes are never overwritten by a
// late-arriving face check.
func sessionCanBeFlagged(status types.SessionStatus) bool {
	return status != types.SessionApproved && status != types.SessionRejected
}

func (s *faceService) annotateAndUpload(ctx context.Context, participantID, sessionID, photoID uuid.UUID, raw []byte, face *faceid.Face, matched bool) (string, error) {
	var annotated []byte
	err := s.pool.Do(ctx, func() error {
		var aerr error
		annotated, aerr = annotateFaceCheck(raw, face, matched)
		return aerr
	})
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("face_checks/%s/%s/%s.png", participantID, sessionID, photoID)
	if err := s.bucketService.UploadFile(ctx, key, bytes.NewReader(annotated), "image/png"); err != nil {
		return "", err
	}
	return key, nil
}

func largestFace(faces []faceid.Face) *faceid.Face {
	var best *faceid.Face
	bestArea := 0
	for i := range faces {
		area := faces[i].W * faces[i].H
		if area > bestArea {
			bestArea = area
			best = &faces[i]
		}
	}
	return best
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func l2Distance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := 0; i < len(a); i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func averageEmbeddings(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	out := make([]float32, dim)
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i := range v {
			out[i] += v[i]
		}
	}
	inv := 1.0 / float32(len(vecs))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/openseva/seva-backend/internal/apperr"
	"github.com/openseva/seva-backend/internal/logger"
	"github.com/openseva/seva-backend/internal/repos"
	"github.com/openseva/seva-backend/internal/types"
)

const (
	catalogCacheKey = "catalog:activity_types:active"
	catalogCacheTTL = 60 * time.Second
)

type RequestActivityTypeInput struct {
	Name        string
	Description *string
	MapsURL     *string
	TargetLat   *float64
	TargetLng   *float64
}

type CatalogService interface {
	// ListActivityTypes returns active approved types, and optionally the
	// pending ones awaiting admin approval.
	ListActivityTypes(ctx context.Context, includePending bool) ([]*types.ActivityType, error)
	// RequestActivityType files a participant-proposed type. It enters the
	// catalog as PENDING with the default point rule and becomes visible
	// once an admin approves it.
	RequestActivityType(ctx context.Context, in RequestActivityTypeInput) (*types.ActivityType, error)
	ApproveActivityType(ctx context.Context, id uuid.UUID) (*types.ActivityType, error)
}

type catalogService struct {
	log              *logger.Logger
	rdb              *goredis.Client
	activityTypeRepo repos.ActivityTypeRepo
}

func NewCatalogService(log *logger.Logger, rdb *goredis.Client, activityTypeRepo repos.ActivityTypeRepo) CatalogService {
	return &catalogService{
		log:              log.With("service", "CatalogService"),
		rdb:              rdb,
		activityTypeRepo: activityTypeRepo,
	}
}

func (s *catalogService) ListActivityTypes(ctx context.Context, includePending bool) ([]*types.ActivityType, error) {
	// Only the default listing is cached; the pending view is admin-only
	// and rare.
	if !includePending && s.rdb != nil {
		raw, err := s.rdb.Get(ctx, catalogCacheKey).Bytes()
		if err == nil {
			var cached []*types.ActivityType
			if jerr := json.Unmarshal(raw, &cached); jerr == nil {
				return cached, nil
			}
		} else if err != goredis.Nil {
			s.log.Warn("Catalog cache read failed", "error", err)
		}
	}

	rows, err := s.activityTypeRepo.ListActive(ctx, nil, includePending)
	if err != nil {
		return nil, err
	}

	if !includePending && s.rdb != nil {
		if raw, jerr := json.Marshal(rows); jerr == nil {
			if cerr := s.rdb.Set(ctx, catalogCacheKey, raw, catalogCacheTTL).Err(); cerr != nil {
				s.log.Warn("Catalog cache write failed", "error", cerr)
			}
		}
	}
	return rows, nil
}

func (s *catalogService) RequestActivityType(ctx context.Context, in RequestActivityTypeInput) (*types.ActivityType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	existing, err := s.activityTypeRepo.GetByName(ctx, nil, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Validation("activity type %q already exists", existing.Name)
	}

	row := &types.ActivityType{
		Name:          name,
		Description:   in.Description,
		Status:        types.ActivityTypePending,
		HoursPerUnit:  20,
		PointsPerUnit: 5,
		MaxPoints:     20,
		MapsURL:       in.MapsURL,
		TargetLat:     in.TargetLat,
		TargetLng:     in.TargetLng,
		RadiusM:       DefaultRadiusM,
		IsActive:      true,
	}
	created, err := s.activityTypeRepo.Create(ctx, nil, row)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	s.log.Info("Activity type requested", "name", name)
	return created, nil
}

func (s *catalogService) ApproveActivityType(ctx context.Context, id uuid.UUID) (*types.ActivityType, error) {
	row, err := s.activityTypeRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.NotFound("activity type not found")
	}
	if row.Status == types.ActivityTypeApproved {
		return row, nil
	}
	if err := s.activityTypeRepo.UpdateFields(ctx, nil, row.ID, map[string]any{
		"status":     types.ActivityTypeApproved,
		"updated_at": time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	row.Status = types.ActivityTypeApproved
	s.invalidateCache(ctx)
	return row, nil
}

func (s *catalogService) invalidateCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, catalogCacheKey).Err(); err != nil {
		s.log.Warn("Catalog cache invalidation failed", "error", err)
	}
}

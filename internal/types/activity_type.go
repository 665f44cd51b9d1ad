package types

import (
	"time"

	"github.com/google/uuid"
)

type ActivityTypeStatus string

const (
	ActivityTypeApproved ActivityTypeStatus = "APPROVED"
	ActivityTypePending  ActivityTypeStatus = "PENDING"
	ActivityTypeRejected ActivityTypeStatus = "REJECTED"
)

// ActivityType is the scoring rule and catalog entry for one kind of
// community-service work. Rule fields are read-only from the core's
// perspective; only the administrative workflow mutates them.
type ActivityType struct {
	ID          uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string             `gorm:"uniqueIndex;not null;column:name" json:"name"`
	Description *string            `gorm:"column:description" json:"description,omitempty"`
	Status      ActivityTypeStatus `gorm:"not null;default:'APPROVED';column:status" json:"status"`

	// hours_per_unit hours earn points_per_unit points, capped at max_points.
	HoursPerUnit  float64 `gorm:"not null;default:20;column:hours_per_unit" json:"hours_per_unit"`
	PointsPerUnit int     `gorm:"not null;default:5;column:points_per_unit" json:"points_per_unit"`
	MaxPoints     int     `gorm:"not null;default:20;column:max_points" json:"max_points"`

	// Optional geofence target configured by an administrator.
	MapsURL   *string  `gorm:"column:maps_url" json:"maps_url,omitempty"`
	TargetLat *float64 `gorm:"column:target_lat" json:"target_lat,omitempty"`
	TargetLng *float64 `gorm:"column:target_lng" json:"target_lng,omitempty"`
	RadiusM   int      `gorm:"not null;default:500;column:radius_m" json:"radius_m"`

	IsActive  bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ActivityType) TableName() string { return "activity_type" }

package types

import (
	"time"

	"github.com/google/uuid"
)

// PointsProgress is the cumulative ledger row per (participant, activity
// type). Both counters are monotonically non-decreasing; points_awarded never
// exceeds the activity type's max_points.
type PointsProgress struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParticipantID  uuid.UUID `gorm:"type:uuid;not null;index:idx_participant_type,unique" json:"participant_id"`
	ActivityTypeID uuid.UUID `gorm:"type:uuid;not null;index:idx_participant_type,unique" json:"activity_type_id"`

	TotalMinutes  int `gorm:"not null;default:0;column:total_minutes" json:"total_minutes"`
	PointsAwarded int `gorm:"not null;default:0;column:points_awarded" json:"points_awarded"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PointsProgress) TableName() string { return "points_progress" }

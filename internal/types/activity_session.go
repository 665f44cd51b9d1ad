package types

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionDraft     SessionStatus = "DRAFT"
	SessionSubmitted SessionStatus = "SUBMITTED"
	SessionApproved  SessionStatus = "APPROVED"
	SessionFlagged   SessionStatus = "FLAGGED"
	SessionRejected  SessionStatus = "REJECTED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// ActivitySession is one evidence-gathering attempt. Created DRAFT, mutated
// only through the session service, never deleted.
type ActivitySession struct {
	ID             uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParticipantID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"participant_id"`
	Participant    *Participant  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ParticipantID;references:ID" json:"participant,omitempty"`
	ActivityTypeID uuid.UUID     `gorm:"type:uuid;not null;index" json:"activity_type_id"`
	ActivityType   *ActivityType `gorm:"foreignKey:ActivityTypeID;references:ID" json:"activity_type,omitempty"`

	ActivityName string  `gorm:"not null;column:activity_name" json:"activity_name"`
	Description  *string `gorm:"column:description" json:"description,omitempty"`

	// Opaque correlation token, not an authorization credential.
	SessionCode string `gorm:"uniqueIndex;not null;column:session_code" json:"session_code"`

	StartedAt   time.Time     `gorm:"not null;column:started_at" json:"started_at"`
	ExpiresAt   time.Time     `gorm:"not null;column:expires_at" json:"expires_at"`
	SubmittedAt *time.Time    `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	Status      SessionStatus `gorm:"not null;default:'DRAFT';column:status" json:"status"`

	// Computed on submit; nil until then.
	DurationHours *float64 `gorm:"column:duration_hours" json:"duration_hours,omitempty"`

	// Comma-joined, sorted, deduplicated reason codes when FLAGGED.
	FlagReason *string `gorm:"column:flag_reason" json:"flag_reason,omitempty"`

	PointsProcessed bool `gorm:"not null;default:false;column:points_processed" json:"points_processed"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`

	Photos []*ActivityPhoto `gorm:"foreignKey:SessionID;references:ID" json:"photos,omitempty"`
}

func (ActivitySession) TableName() string { return "activity_session" }

// ReviewableStatuses are the states an admin reviewer may act on.
func ReviewableStatuses() []SessionStatus {
	return []SessionStatus{SessionSubmitted, SessionFlagged}
}

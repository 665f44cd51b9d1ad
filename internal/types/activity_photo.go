package types

import (
	"time"

	"github.com/google/uuid"
)

// ActivityPhoto is one evidence image. At most one row per (session, seq_no);
// re-uploading a slot overwrites its metadata.
type ActivityPhoto struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_session_seq,unique" json:"session_id"`
	Session       *ActivitySession `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	ParticipantID uuid.UUID        `gorm:"type:uuid;not null;index" json:"participant_id"`

	SeqNo     int    `gorm:"not null;index:idx_session_seq,unique;column:seq_no" json:"seq_no"`
	ObjectKey string `gorm:"not null;column:object_key" json:"object_key"`

	CapturedAt *time.Time `gorm:"column:captured_at" json:"captured_at,omitempty"`
	Lat        *float64   `gorm:"column:lat" json:"lat,omitempty"`
	Lng        *float64   `gorm:"column:lng" json:"lng,omitempty"`
	SHA256     *string    `gorm:"column:sha256;index" json:"sha256,omitempty"`

	// Geofence verdict captured at upload time.
	DistanceM     *float64 `gorm:"column:distance_m" json:"distance_m,omitempty"`
	InGeofence    bool     `gorm:"not null;default:true;column:in_geofence" json:"in_geofence"`
	GeoFlagReason *string  `gorm:"column:geo_flag_reason" json:"geo_flag_reason,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ActivityPhoto) TableName() string { return "activity_photo" }

package types

import (
	"time"

	"github.com/google/uuid"
)

// FaceCheck is the outcome of comparing one evidence photo against a
// participant's enrolled profile. Unique per (session, photo); re-running a
// verification overwrites the row.
type FaceCheck struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParticipantID uuid.UUID        `gorm:"type:uuid;not null;index" json:"participant_id"`
	SessionID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_session_photo,unique" json:"session_id"`
	Session       *ActivitySession `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	PhotoID       uuid.UUID        `gorm:"type:uuid;not null;index:idx_session_photo,unique" json:"photo_id"`
	Photo         *ActivityPhoto   `gorm:"constraint:OnDelete:CASCADE;foreignKey:PhotoID;references:ID" json:"photo,omitempty"`

	Matched     bool     `gorm:"not null;default:false;column:matched" json:"matched"`
	CosineScore *float64 `gorm:"column:cosine_score" json:"cosine_score,omitempty"`
	L2Score     *float64 `gorm:"column:l2_score" json:"l2_score,omitempty"`
	TotalFaces  *int     `gorm:"column:total_faces" json:"total_faces,omitempty"`

	// Object key of the annotated audit image.
	AnnotatedKey *string `gorm:"column:annotated_key" json:"annotated_key,omitempty"`
	Reason       *string `gorm:"column:reason" json:"reason,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (FaceCheck) TableName() string { return "face_check" }

package types

import (
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email          string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	FirstName      string     `gorm:"not null;column:first_name" json:"first_name"`
	LastName       string     `gorm:"not null;column:last_name" json:"last_name"`
	TotalPoints    int        `gorm:"not null;default:0;column:total_points" json:"total_points"`
	FaceEnrolled   bool       `gorm:"not null;default:false;column:face_enrolled" json:"face_enrolled"`
	FaceEnrolledAt *time.Time `gorm:"column:face_enrolled_at" json:"face_enrolled_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Participant) TableName() string { return "participant" }

package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FaceProfile is the one normalized biometric template per participant,
// produced by averaging 3-5 enrollment embeddings. Overwritten, not
// versioned, on re-enrollment.
type FaceProfile struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParticipantID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"participant_id"`
	Embedding     datatypes.JSON `gorm:"type:jsonb;not null;column:embedding" json:"-"`
	PhotoCount    int            `gorm:"not null;default:0;column:photo_count" json:"photo_count"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (FaceProfile) TableName() string { return "face_profile" }

func (fp *FaceProfile) GetEmbedding() ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal(fp.Embedding, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (fp *FaceProfile) SetEmbedding(vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	fp.Embedding = datatypes.JSON(raw)
	return nil
}

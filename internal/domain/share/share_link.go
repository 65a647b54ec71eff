package share

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareLink exposes one user's documents read-only under Hash.
type ShareLink struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Hash   string    `gorm:"column:hash;not null;uniqueIndex" json:"hash"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ShareLink) TableName() string { return "share_link" }

func (s *ShareLink) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

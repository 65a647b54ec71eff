package document

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is one stored note. Its vector ids are exactly
// vectorid.Range(UserID, ID, ChunkCount).
type Document struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title string         `gorm:"column:title" json:"title"`
	Text  string         `gorm:"column:text;not null" json:"text"`
	Link  string         `gorm:"column:link" json:"link"`
	Tags  datatypes.JSON `gorm:"column:tags" json:"tags"`

	ChunkCount int `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// TagList decodes Tags; malformed or empty JSON yields nil.
func (d *Document) TagList() []string {
	if d == nil || len(d.Tags) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(d.Tags, &out); err != nil {
		return nil
	}
	return out
}

// EncodeTags stores tags as an ordered set: first occurrence wins, blanks are
// dropped and surrounding space is trimmed.
func EncodeTags(tags []string) datatypes.JSON {
	clean := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		clean = append(clean, t)
	}
	b, _ := json.Marshal(clean)
	return datatypes.JSON(b)
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Movie statuses. A movie's status is derived from its scenes' statuses and
// the assembly outcome; only an explicit cancel sets it independently.
const (
	MovieStatusDraft      = "draft"
	MovieStatusGenerating = "generating"
	MovieStatusCompleted  = "completed"
	MovieStatusFailed     = "failed"
)

// SceneSpec is one planned scene as produced by the script planner. The
// ordered list of specs is stored on the movie and also materialized as
// Scene rows.
type SceneSpec struct {
	SceneNumber int      `json:"scene_number"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Dialogue    []string `json:"dialogue"`
}

type Movie struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	Title       string `gorm:"not null;size:255" json:"title"`
	Genre       string `gorm:"size:64" json:"genre"`
	Style       string `gorm:"size:64" json:"style"`
	Description string `gorm:"type:text" json:"description"`

	// The script as originally planned, in scene order.
	Script datatypes.JSONSlice[SceneSpec] `json:"script"`

	Status string `gorm:"default:'draft';index" json:"status"`

	// Written exactly once, when finalization debits the ledger.
	CreditsUsed int64 `gorm:"default:0" json:"credits_used"`

	PosterURL  string `json:"poster_url,omitempty"`
	TrailerURL string `json:"trailer_url,omitempty"`
	VideoURL   string `json:"video_url,omitempty"`

	Scenes []Scene `gorm:"foreignKey:MovieID" json:"scenes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Movie) TableName() string {
	return "movies"
}

// IsTerminal reports whether the movie has reached a final status.
func (m *Movie) IsTerminal() bool {
	return m.Status == MovieStatusCompleted || m.Status == MovieStatusFailed
}

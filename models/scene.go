package models

import (
	"time"

	"gorm.io/datatypes"
)

// Scene statuses. Generating covers all three sub-steps; the current
// sub-step is visible through which artifact fields are already set.
const (
	SceneStatusPending    = "pending"
	SceneStatusGenerating = "generating"
	SceneStatusCompleted  = "completed"
	SceneStatusFailed     = "failed"
)

// SceneCost is the fixed credit cost of one completed scene.
const SceneCost int64 = 15

// MusicDescriptor steers background music selection for a scene.
type MusicDescriptor struct {
	Genre    string `json:"genre"`
	Mood     string `json:"mood"`
	Duration int    `json:"duration"`
}

// SoundEffect is one candidate effect detected from a scene description.
// Position is "background" or "foreground".
type SoundEffect struct {
	Name       string  `json:"name"`
	Keyword    string  `json:"keyword"`
	Confidence float64 `json:"confidence"`
	Duration   int     `json:"duration"`
	Volume     float64 `json:"volume"`
	Position   string  `json:"position"`
}

type Scene struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	MovieID uint  `gorm:"not null;index" json:"movie_id"`
	Movie   Movie `gorm:"foreignKey:MovieID" json:"-"`

	// Assembly order. Contiguous from 1 within a movie, immutable.
	SceneNumber int `gorm:"not null;index" json:"scene_number"`

	Title       string                       `gorm:"size:255" json:"title"`
	Description string                       `gorm:"type:text" json:"description"`
	Dialogue    datatypes.JSONSlice[string]  `json:"dialogue"`

	StoryboardURL string `json:"storyboard_url,omitempty"`
	VideoURL      string `json:"video_url,omitempty"`
	AudioURL      string `json:"audio_url,omitempty"`

	Music        datatypes.JSONType[MusicDescriptor] `json:"music"`
	SoundEffects datatypes.JSONSlice[SoundEffect]    `json:"sound_effects"`

	Status        string `gorm:"default:'pending';index" json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`

	CreditsUsed int64 `gorm:"default:15" json:"credits_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Scene) TableName() string {
	return "scenes"
}

// IsTerminal reports whether the scene has reached a final status.
func (s *Scene) IsTerminal() bool {
	return s.Status == SceneStatusCompleted || s.Status == SceneStatusFailed
}

// ClearArtifacts drops all generated media references so the scene can be
// regenerated from scratch.
func (s *Scene) ClearArtifacts() {
	s.StoryboardURL = ""
	s.VideoURL = ""
	s.AudioURL = ""
	s.FailureReason = ""
	s.Music = datatypes.NewJSONType(MusicDescriptor{})
	s.SoundEffects = nil
}

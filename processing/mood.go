package processing

import (
	"strings"

	"github.com/cineo-ai/cineo-api/models"
)

// Mood and sound-effect selection is purely heuristic: fixed keyword tables
// scanned in declaration order, first hit wins. Keeping the order stable is
// what makes the selection deterministic, so the tables are slices, not maps.

type moodCategory struct {
	tag      string
	keywords []string
}

var moodCategories = []moodCategory{
	{"dramatic", []string{"dramatic", "intense", "climax", "confrontation", "battle", "fight"}},
	{"peaceful", []string{"peaceful", "calm", "quiet", "serene", "beautiful", "contemplative", "forest", "nature", "garden", "meadow"}},
	{"intense", []string{"chase", "pursuit", "danger", "threat", "fear", "panic"}},
	{"mysterious", []string{"mystery", "unknown", "strange", "weird", "puzzle", "investigation"}},
	{"epic", []string{"epic", "grand", "heroic", "victory", "triumph", "achievement"}},
	{"romantic", []string{"love", "romance", "kiss", "emotional", "heart", "relationship"}},
	{"suspenseful", []string{"suspense", "tension", "waiting", "anticipation", "uncertainty"}},
	{"cheerful", []string{"happy", "joy", "celebration", "fun", "comedy", "light"}},
}

var genreDefaultMoods = map[string]string{
	"romance": "romantic",
	"horror":  "suspenseful",
	"action":  "intense",
	"comedy":  "cheerful",
	"fantasy": "epic",
	"sci-fi":  "mysterious",
	"drama":   "dramatic",
}

// Mood maps a scene description and movie genre to a mood tag. The first
// keyword found in the description wins; otherwise the genre's default mood
// applies; unknown genres resolve to "dramatic".
func Mood(description, genre string) string {
	lower := strings.ToLower(description)
	for _, cat := range moodCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.tag
			}
		}
	}
	if mood, ok := genreDefaultMoods[strings.ToLower(genre)]; ok {
		return mood
	}
	return "dramatic"
}

type effectGroup struct {
	keyword string
	effects []string
}

var soundEffectGroups = []effectGroup{
	// Environmental sounds
	{"factory", []string{"machinery_hum", "distant_machinery", "factory_ambience"}},
	{"forest", []string{"birds_chirping", "wind_rustling", "forest_ambience"}},
	{"city", []string{"traffic", "city_ambience", "people_talking"}},
	{"space", []string{"space_ambience", "electronic_beeps", "sci_fi_ambience"}},
	{"ocean", []string{"waves", "seagulls", "ocean_ambience"}},
	{"rain", []string{"rain", "thunder", "rain_ambience"}},
	{"night", []string{"crickets", "night_ambience", "distant_dogs"}},

	// Action sounds
	{"robot", []string{"robotic_movement", "electronic_beeps", "mechanical_whir"}},
	{"door", []string{"door_creak", "door_slam", "door_open"}},
	{"explosion", []string{"explosion", "debris", "shockwave"}},
	{"gunshot", []string{"gunshot", "bullet_whiz", "shell_drop"}},
	{"footsteps", []string{"footsteps", "running", "walking"}},
	{"car", []string{"car_engine", "tires_screeching", "car_horn"}},
	{"computer", []string{"computer_beeps", "typing", "electronic_chime"}},
	{"phone", []string{"phone_ring", "dial_tone", "phone_pickup"}},

	// Emotional and atmospheric
	{"scary", []string{"creepy_ambience", "heartbeat", "breathing"}},
	{"happy", []string{"cheerful_music", "laughing", "celebration"}},
	{"sad", []string{"somber_music", "sighing", "emotional_ambience"}},
	{"tense", []string{"tension_build", "clock_ticking", "heartbeat_fast"}},
}

// MaxSoundEffects limits how many effects a single scene carries.
const MaxSoundEffects = 5

// SoundEffects scans the description for known scene keywords and returns
// the matching candidate effects, deduplicated by name keeping first
// occurrence order, truncated to MaxSoundEffects.
func SoundEffects(description string) []models.SoundEffect {
	lower := strings.ToLower(description)
	seen := make(map[string]bool)
	var detected []models.SoundEffect

	for _, group := range soundEffectGroups {
		if !strings.Contains(lower, group.keyword) {
			continue
		}
		for _, name := range group.effects {
			if seen[name] {
				continue
			}
			seen[name] = true
			detected = append(detected, models.SoundEffect{
				Name:       name,
				Keyword:    group.keyword,
				Confidence: 0.8,
				Duration:   3,
				Volume:     0.6,
				Position:   "background",
			})
		}
	}

	if len(detected) > MaxSoundEffects {
		detected = detected[:MaxSoundEffects]
	}
	return detected
}

// SceneDuration estimates music duration in seconds from scene content.
// Action beats the contemplative check, which beats the dialogue check.
func SceneDuration(description string) int {
	lower := strings.ToLower(description)

	for _, w := range []string{"battle", "chase", "fight", "confrontation"} {
		if strings.Contains(lower, w) {
			return 45
		}
	}
	for _, w := range []string{"looks at", "thinks", "remembers", "pause"} {
		if strings.Contains(lower, w) {
			return 20
		}
	}
	for _, w := range []string{"says", "tells", "asks", "dialogue"} {
		if strings.Contains(lower, w) {
			return 35
		}
	}
	return 30
}

// MusicFor builds the scene's music descriptor from its description and the
// movie genre.
func MusicFor(description, genre string) models.MusicDescriptor {
	return models.MusicDescriptor{
		Genre:    strings.ToLower(genre),
		Mood:     Mood(description, genre),
		Duration: SceneDuration(description),
	}
}

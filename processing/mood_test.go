package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoodKeywordBeatsGenreDefault(t *testing.T) {
	// "forest" is a keyword hit, so the sci-fi default must not apply.
	mood := Mood("explorers land on a forest moon", "sci-fi")
	assert.Equal(t, "peaceful", mood)
}

func TestMoodFirstCategoryWins(t *testing.T) {
	// "battle" (dramatic) appears before "chase" (intense) in category order.
	mood := Mood("a battle turns into a chase", "action")
	assert.Equal(t, "dramatic", mood)
}

func TestMoodGenreDefaults(t *testing.T) {
	cases := map[string]string{
		"romance": "romantic",
		"horror":  "suspenseful",
		"action":  "intense",
		"comedy":  "cheerful",
		"fantasy": "epic",
		"sci-fi":  "mysterious",
		"drama":   "dramatic",
	}
	for genre, want := range cases {
		assert.Equal(t, want, Mood("nothing matches here", genre), "genre %s", genre)
	}
}

func TestMoodUnknownGenreFallsBackToDramatic(t *testing.T) {
	assert.Equal(t, "dramatic", Mood("nothing matches here", "western"))
}

func TestMoodIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "intense", Mood("The CHASE begins", "drama"))
}

func TestSoundEffectsMatchesMultipleKeywordGroups(t *testing.T) {
	effects := SoundEffects("An explosion rocks the factory")

	names := make(map[string]bool)
	keywords := make(map[string]bool)
	for _, e := range effects {
		assert.False(t, names[e.Name], "duplicate effect %s", e.Name)
		names[e.Name] = true
		keywords[e.Keyword] = true
	}

	assert.True(t, keywords["explosion"], "expected an effect from the explosion group")
	assert.True(t, keywords["factory"], "expected an effect from the factory group")
	assert.LessOrEqual(t, len(effects), MaxSoundEffects)
}

func TestSoundEffectsCarryFixedMetadata(t *testing.T) {
	effects := SoundEffects("rain at night")
	assert.NotEmpty(t, effects)
	for _, e := range effects {
		assert.Equal(t, 0.8, e.Confidence)
		assert.Equal(t, 3, e.Duration)
		assert.Equal(t, 0.6, e.Volume)
		assert.Equal(t, "background", e.Position)
	}
}

func TestSoundEffectsTruncatesToFive(t *testing.T) {
	effects := SoundEffects("rain in the forest at night near the ocean in the city")
	assert.Len(t, effects, MaxSoundEffects)
}

func TestSoundEffectsNoMatches(t *testing.T) {
	assert.Empty(t, SoundEffects("two people sit in silence"))
}

func TestSceneDuration(t *testing.T) {
	assert.Equal(t, 45, SceneDuration("A great battle erupts"))
	assert.Equal(t, 20, SceneDuration("She looks at the horizon"))
	assert.Equal(t, 35, SceneDuration("He says goodbye"))
	assert.Equal(t, 30, SceneDuration("The sun rises"))
}

func TestSceneDurationPrecedence(t *testing.T) {
	// Action keywords outrank contemplative and dialogue ones.
	assert.Equal(t, 45, SceneDuration("She thinks about the battle and says nothing"))
	// Contemplative keywords outrank dialogue ones.
	assert.Equal(t, 20, SceneDuration("He remembers what she says"))
}

func TestMusicFor(t *testing.T) {
	music := MusicFor("A chase through the streets", "Action")
	assert.Equal(t, "action", music.Genre)
	assert.Equal(t, "intense", music.Mood)
	assert.Equal(t, 45, music.Duration)
}

package assembly

import (
	"testing"

	"github.com/cineo-ai/cineo-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func completedScene(number int, videoURL string) models.Scene {
	return models.Scene{
		SceneNumber: number,
		Status:      models.SceneStatusCompleted,
		VideoURL:    videoURL,
		AudioURL:    "audio.mp3",
	}
}

func TestBuildPlanOrdersBySceneNumber(t *testing.T) {
	// Completion order is 3, 1, 2; the cut must still be 1, 2, 3.
	scenes := []models.Scene{
		completedScene(3, "c3.mp4"),
		completedScene(1, "c1.mp4"),
		completedScene(2, "c2.mp4"),
	}

	plan, err := BuildPlan(42, scenes)
	require.NoError(t, err)

	require.Len(t, plan.Clips, 3)
	for i, clip := range plan.Clips {
		assert.Equal(t, i+1, clip.SceneNumber)
	}
	assert.Equal(t, "c1.mp4", plan.Clips[0].VideoRef)
	assert.Empty(t, plan.Warnings)
}

func TestBuildPlanDropsScenesWithoutVideo(t *testing.T) {
	scenes := []models.Scene{
		completedScene(1, "c1.mp4"),
		{SceneNumber: 2, Status: models.SceneStatusFailed, FailureReason: "timeout"},
		completedScene(3, "c3.mp4"),
	}

	plan, err := BuildPlan(42, scenes)
	require.NoError(t, err)

	require.Len(t, plan.Clips, 2)
	assert.Equal(t, 1, plan.Clips[0].SceneNumber)
	assert.Equal(t, 3, plan.Clips[1].SceneNumber)
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "scene 2")
}

func TestBuildPlanFailsWithZeroUsableClips(t *testing.T) {
	scenes := []models.Scene{
		{SceneNumber: 1, Status: models.SceneStatusFailed},
		{SceneNumber: 2, Status: models.SceneStatusFailed},
	}

	_, err := BuildPlan(42, scenes)
	assert.Error(t, err)
}

func TestBuildPlanRejectsNonTerminalScenes(t *testing.T) {
	scenes := []models.Scene{
		completedScene(1, "c1.mp4"),
		{SceneNumber: 2, Status: models.SceneStatusGenerating},
	}

	_, err := BuildPlan(42, scenes)
	assert.Error(t, err)
}

func TestBuildPlanCarriesAudioMetadata(t *testing.T) {
	scene := completedScene(1, "c1.mp4")
	scene.Music = datatypes.NewJSONType(models.MusicDescriptor{Genre: "sci-fi", Mood: "mysterious", Duration: 30})
	scene.SoundEffects = datatypes.JSONSlice[models.SoundEffect]{
		{Name: "space_ambience", Keyword: "space", Confidence: 0.8, Duration: 3, Volume: 0.6, Position: "background"},
	}

	plan, err := BuildPlan(42, []models.Scene{scene})
	require.NoError(t, err)

	require.Len(t, plan.Clips, 1)
	clip := plan.Clips[0]
	assert.Equal(t, "audio.mp3", clip.AudioRef)
	assert.Equal(t, "mysterious", clip.Music.Mood)
	require.Len(t, clip.SoundEffects, 1)
	assert.Equal(t, "space_ambience", clip.SoundEffects[0].Name)
	assert.Equal(t, "background", clip.SoundEffects[0].Position)
}

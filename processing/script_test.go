package processing

import (
	"context"
	"errors"
	"testing"

	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	result *collab.ScriptResult
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, title, genre, description string) (*collab.ScriptResult, error) {
	return s.result, s.err
}

func assertSequentialNumbers(t *testing.T, scenes []models.SceneSpec) {
	t.Helper()
	for i, s := range scenes {
		assert.Equal(t, i+1, s.SceneNumber)
	}
}

func TestPlanFallsBackWhenGeneratorFails(t *testing.T) {
	gen := &stubGenerator{err: errors.New("unavailable")}

	scenes := Plan(context.Background(), gen, "Dawn", "sci-fi", "explorers land on a forest moon")

	require.GreaterOrEqual(t, len(scenes), 3)
	assertSequentialNumbers(t, scenes)
	assert.Contains(t, scenes[0].Description, "sci-fi")
}

func TestPlanFallsBackOnEmptyResult(t *testing.T) {
	gen := &stubGenerator{result: &collab.ScriptResult{}}

	scenes := Plan(context.Background(), gen, "Dawn", "horror", "")

	require.GreaterOrEqual(t, len(scenes), 3)
	assertSequentialNumbers(t, scenes)
}

func TestPlanRenumbersStructuredScenes(t *testing.T) {
	gen := &stubGenerator{result: &collab.ScriptResult{
		Scenes: []models.SceneSpec{
			{SceneNumber: 7, Title: "A"},
			{SceneNumber: 2, Title: "B"},
		},
	}}

	scenes := Plan(context.Background(), gen, "Dawn", "drama", "")

	require.Len(t, scenes, 2)
	assertSequentialNumbers(t, scenes)
	assert.Equal(t, "A", scenes[0].Title)
	assert.Equal(t, "B", scenes[1].Title)
}

func TestPlanCapsStructuredScenes(t *testing.T) {
	var many []models.SceneSpec
	for i := 0; i < 8; i++ {
		many = append(many, models.SceneSpec{Title: "scene"})
	}
	gen := &stubGenerator{result: &collab.ScriptResult{Scenes: many}}

	scenes := Plan(context.Background(), gen, "Dawn", "drama", "")

	assert.Len(t, scenes, MaxScenes)
	assertSequentialNumbers(t, scenes)
}

func TestPlanParsesFreeText(t *testing.T) {
	text := `Scene 1: The Landing
The ship descends through clouds.
Captain: We made it.
Navigator: Barely.

Scene 2: First Steps
The crew explores the surface.
Captain: Stay close.`

	gen := &stubGenerator{result: &collab.ScriptResult{Text: text}}

	scenes := Plan(context.Background(), gen, "Dawn", "sci-fi", "")

	require.Len(t, scenes, 2)
	assertSequentialNumbers(t, scenes)
	assert.Equal(t, "1: The Landing", scenes[0].Title)
	assert.Equal(t, "The ship descends through clouds.", scenes[0].Description)
	assert.Equal(t, []string{"Captain: We made it.", "Navigator: Barely."}, scenes[0].Dialogue)
	assert.Equal(t, []string{"Captain: Stay close."}, scenes[1].Dialogue)
}

func TestParseScriptAccumulatesDescription(t *testing.T) {
	scenes := ParseScript("Scene 1: Intro\nFirst line.\nSecond line.")

	require.Len(t, scenes, 1)
	assert.Equal(t, "First line. Second line.", scenes[0].Description)
}

func TestParseScriptCapsAtFiveScenes(t *testing.T) {
	text := ""
	for i := 1; i <= 7; i++ {
		text += "Scene " + string(rune('0'+i)) + ": part\nsome action here\n"
	}

	scenes := ParseScript(text)

	assert.Len(t, scenes, MaxScenes)
	assertSequentialNumbers(t, scenes)
}

func TestParseScriptIgnoresPreamble(t *testing.T) {
	scenes := ParseScript("Here is your script!\nScene 1: Only\nAction.")

	require.Len(t, scenes, 1)
	assert.Equal(t, "Action.", scenes[0].Description)
}

func TestParseScriptEmptyInput(t *testing.T) {
	assert.Empty(t, ParseScript("no headers at all"))
}

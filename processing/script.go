package processing

import (
	"context"
	"log"
	"strings"

	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/models"
)

// MaxScenes caps how many scenes a single movie gets, however many the
// generator produced.
const MaxScenes = 5

// Plan turns a movie idea into an ordered list of scene specs. It never
// fails: any generator error, empty result, or unparseable output falls
// back to the fixed template, which guarantees at least three scenes.
// Scene numbers are always assigned sequentially from 1, regardless of any
// numbering present in the generator's output.
func Plan(ctx context.Context, gen collab.ScriptGenerator, title, genre, description string) []models.SceneSpec {
	result, err := gen.Generate(ctx, title, genre, description)
	if err != nil {
		log.Printf("Script generation failed, using template: %v", err)
		return renumber(collab.TemplateScenes(genre))
	}

	var scenes []models.SceneSpec
	switch {
	case len(result.Scenes) > 0:
		scenes = result.Scenes
	case strings.TrimSpace(result.Text) != "":
		scenes = ParseScript(result.Text)
	}

	if len(scenes) == 0 {
		log.Println("Script generation produced no usable scenes, using template")
		scenes = collab.TemplateScenes(genre)
	}
	if len(scenes) > MaxScenes {
		scenes = scenes[:MaxScenes]
	}
	return renumber(scenes)
}

// ParseScript extracts structured scenes from free-form script text.
// Lines containing a scene-header pattern start a new scene; "Label: text"
// lines inside a scene become dialogue; remaining non-empty lines accumulate
// into the description. Capped at MaxScenes.
func ParseScript(text string) []models.SceneSpec {
	var scenes []models.SceneSpec
	var current *models.SceneSpec

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case isSceneHeader(line):
			if current != nil {
				scenes = append(scenes, *current)
			}
			current = &models.SceneSpec{
				SceneNumber: len(scenes) + 1,
				Title:       strings.Trim(strings.ReplaceAll(line, "Scene", ""), " :"),
			}
		case current != nil && strings.Contains(line, ":"):
			current.Dialogue = append(current.Dialogue, line)
		case current != nil:
			if current.Description != "" {
				current.Description += " "
			}
			current.Description += line
		}
	}
	if current != nil {
		scenes = append(scenes, *current)
	}

	if len(scenes) > MaxScenes {
		scenes = scenes[:MaxScenes]
	}
	return renumber(scenes)
}

func isSceneHeader(line string) bool {
	return strings.Contains(line, "Scene") && strings.Contains(line, ":")
}

func renumber(scenes []models.SceneSpec) []models.SceneSpec {
	for i := range scenes {
		scenes[i].SceneNumber = i + 1
	}
	return scenes
}

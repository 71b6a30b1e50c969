package collab

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/cineo-ai/cineo-api/models"
)

// Deterministic fallback collaborators. Used whenever the matching API key
// is absent, and by the planner as a safety net when the remote script
// generator fails. Same input always yields the same reference.

// TemplateScenes is the fixed three-scene script used when no generator is
// available.
func TemplateScenes(genre string) []models.SceneSpec {
	return []models.SceneSpec{
		{
			SceneNumber: 1,
			Title:       "Opening Scene",
			Description: fmt.Sprintf("The movie opens with a dramatic scene setting up the %s atmosphere.", genre),
			Dialogue: []string{
				"Character 1: This is the beginning of an amazing journey.",
				"Character 2: Indeed it is!",
			},
		},
		{
			SceneNumber: 2,
			Title:       "Middle Scene",
			Description: "The main conflict unfolds as characters face challenges.",
			Dialogue: []string{
				"Character 1: We must overcome this obstacle!",
				"Character 2: Together we can!",
			},
		},
		{
			SceneNumber: 3,
			Title:       "Climax",
			Description: "The story reaches its peak with intense action and emotion.",
			Dialogue: []string{
				"Character 1: This is our moment!",
				"Character 2: Let's do this!",
			},
		},
	}
}

// TemplateScriptGenerator always returns the fixed template. It never fails.
type TemplateScriptGenerator struct{}

func NewTemplateScriptGenerator() *TemplateScriptGenerator {
	return &TemplateScriptGenerator{}
}

func (g *TemplateScriptGenerator) Generate(ctx context.Context, title, genre, description string) (*ScriptResult, error) {
	return &ScriptResult{Scenes: TemplateScenes(genre)}, nil
}

// PlaceholderImageGenerator returns a picsum URL seeded by a hash of the
// prompt, so the same prompt resolves to the same placeholder.
type PlaceholderImageGenerator struct{}

func NewPlaceholderImageGenerator() *PlaceholderImageGenerator {
	return &PlaceholderImageGenerator{}
}

func (g *PlaceholderImageGenerator) Generate(ctx context.Context, prompt, style string) (string, error) {
	return fmt.Sprintf("https://picsum.photos/512/512?random=%d", hashString(prompt+style)), nil
}

// PlaceholderVideoAnimator returns a fixed sample clip reference.
type PlaceholderVideoAnimator struct{}

func NewPlaceholderVideoAnimator() *PlaceholderVideoAnimator {
	return &PlaceholderVideoAnimator{}
}

func (g *PlaceholderVideoAnimator) Animate(ctx context.Context, imageRef, prompt string, frameCount int) (string, error) {
	return "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_1mb.mp4", nil
}

// PlaceholderAudioSynthesizer returns soundjay URLs derived from the input.
type PlaceholderAudioSynthesizer struct{}

func NewPlaceholderAudioSynthesizer() *PlaceholderAudioSynthesizer {
	return &PlaceholderAudioSynthesizer{}
}

func (g *PlaceholderAudioSynthesizer) Speech(ctx context.Context, text string) (string, error) {
	return fmt.Sprintf("https://www.soundjay.com/misc/sounds/speech_%d.wav", hashString(text)), nil
}

func (g *PlaceholderAudioSynthesizer) Music(ctx context.Context, desc models.MusicDescriptor) (string, error) {
	return fmt.Sprintf("https://www.soundjay.com/misc/sounds/%s_%s_theme.wav",
		strings.ToLower(desc.Genre), strings.ToLower(desc.Mood)), nil
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

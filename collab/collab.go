package collab

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/cineo-ai/cineo-api/models"
)

// DefaultTimeout bounds every remote collaborator call. A timeout is
// treated identically to any other collaborator failure.
const DefaultTimeout = 90 * time.Second

// ScriptResult is what a script generator returns: structured scenes when
// the model honored the schema, or raw text for the planner to parse.
type ScriptResult struct {
	Scenes []models.SceneSpec
	Text   string
}

// ScriptGenerator produces a scene breakdown for a movie idea.
type ScriptGenerator interface {
	Generate(ctx context.Context, title, genre, description string) (*ScriptResult, error)
}

// ImageGenerator produces a still image reference from a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, style string) (string, error)
}

// VideoAnimator turns a still image into a short video clip.
type VideoAnimator interface {
	Animate(ctx context.Context, imageRef, prompt string, frameCount int) (string, error)
}

// AudioSynthesizer produces speech for dialogue and background music for a
// descriptor.
type AudioSynthesizer interface {
	Speech(ctx context.Context, text string) (string, error)
	Music(ctx context.Context, desc models.MusicDescriptor) (string, error)
}

// Set bundles one implementation of each collaborator. Constructed once at
// process start and passed into the pipeline by reference.
type Set struct {
	Script ScriptGenerator
	Image  ImageGenerator
	Video  VideoAnimator
	Audio  AudioSynthesizer
}

// NewSetFromEnv picks, per capability, the remote implementation when its
// API key is configured and the deterministic fallback otherwise. Pipeline
// code never inspects configuration itself.
func NewSetFromEnv() *Set {
	set := &Set{
		Script: NewTemplateScriptGenerator(),
		Image:  NewPlaceholderImageGenerator(),
		Video:  NewPlaceholderVideoAnimator(),
		Audio:  NewPlaceholderAudioSynthesizer(),
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		set.Script = NewOpenAIScriptGenerator(key)
	} else {
		log.Println("OPENAI_API_KEY not set, using template script generator")
	}

	if key := os.Getenv("STABILITY_API_KEY"); key != "" {
		set.Image = NewStabilityImageGenerator(key)
		set.Video = NewStabilityVideoAnimator(key)
	} else {
		log.Println("STABILITY_API_KEY not set, using placeholder image/video generators")
	}

	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		set.Audio = NewElevenLabsSynthesizer(key)
	} else {
		log.Println("ELEVENLABS_API_KEY not set, using placeholder audio synthesizer")
	}

	return set
}

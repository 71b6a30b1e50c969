package assembly

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/cineo-ai/cineo-api/models"
)

// Clip is one scene's contribution to the final cut. The clip keeps its own
// embedded audio; music and sound-effect descriptors ride along as metadata
// so a mixer can be substituted without changing this contract.
type Clip struct {
	SceneNumber  int
	VideoRef     string
	AudioRef     string
	Music        models.MusicDescriptor
	SoundEffects []models.SoundEffect
}

// Plan is the ordered set of clips to concatenate, plus warnings about
// scenes that had to be dropped.
type Plan struct {
	MovieID  uint
	Clips    []Clip
	Warnings []string
}

// Stitcher turns an assembly plan into one final video artifact. The
// optional backgroundRef is an audio track mixed under the whole cut;
// empty means no background track.
type Stitcher interface {
	Stitch(ctx context.Context, plan *Plan, backgroundRef string) (string, error)
}

// BuildPlan orders scenes by scene number and drops any without a usable
// video artifact, recording a warning per drop. All scenes must already be
// terminal; a plan with zero usable clips is an error.
func BuildPlan(movieID uint, scenes []models.Scene) (*Plan, error) {
	for _, s := range scenes {
		if !s.IsTerminal() {
			return nil, fmt.Errorf("scene %d is not terminal (status %s)", s.SceneNumber, s.Status)
		}
	}

	ordered := make([]models.Scene, len(scenes))
	copy(ordered, scenes)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SceneNumber < ordered[j].SceneNumber
	})

	plan := &Plan{MovieID: movieID}
	for _, s := range ordered {
		if s.Status != models.SceneStatusCompleted || s.VideoURL == "" {
			warning := fmt.Sprintf("scene %d dropped: no usable video artifact (status %s)", s.SceneNumber, s.Status)
			plan.Warnings = append(plan.Warnings, warning)
			log.Printf("Movie %d assembly: %s", movieID, warning)
			continue
		}
		plan.Clips = append(plan.Clips, Clip{
			SceneNumber:  s.SceneNumber,
			VideoRef:     s.VideoURL,
			AudioRef:     s.AudioURL,
			Music:        s.Music.Data(),
			SoundEffects: s.SoundEffects,
		})
	}

	if len(plan.Clips) == 0 {
		return nil, fmt.Errorf("no scenes with video artifacts to assemble")
	}
	return plan, nil
}

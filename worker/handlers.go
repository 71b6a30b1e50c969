package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cineo-ai/cineo-api/assembly"
	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/credits"
	"github.com/cineo-ai/cineo-api/internal/apperr"
	"github.com/cineo-ai/cineo-api/internal/platform"
	"github.com/cineo-ai/cineo-api/models"
	"github.com/cineo-ai/cineo-api/processing"
	"github.com/cineo-ai/cineo-api/progress"
	"github.com/cineo-ai/cineo-api/tasks"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// frameCount is passed to the video animator for every scene clip.
const frameCount = 24

// HandleSceneGeneration processes tasks from QueueSceneGeneration: it
// drives one scene through storyboard, video and audio generation. Each
// artifact is persisted as soon as it is produced, and one progress event
// is emitted per sub-step. A storyboard failure resolves to the
// deterministic placeholder and the pipeline continues; a video or audio
// failure marks the scene failed with a recorded reason, and later
// sub-steps are not attempted.
func (p *Processor) HandleSceneGeneration(ctx context.Context, payload string) error {
	var task tasks.SceneTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	log.Printf("Processing scene %d", task.SceneID)
	var scene models.Scene
	if err := p.DB.First(&scene, task.SceneID).Error; err != nil {
		return err
	}

	if scene.Status != models.SceneStatusPending {
		// Stale task: the scene was cancelled or already picked up.
		log.Printf("Scene %d is %s, skipping", scene.ID, scene.Status)
		return nil
	}

	var movie models.Movie
	if err := p.DB.First(&movie, scene.MovieID).Error; err != nil {
		return err
	}

	// Mood, sound effects and music duration are derived up front; they
	// only depend on the scene text and the movie genre.
	music := processing.MusicFor(scene.Description, movie.Genre)
	effects := processing.SoundEffects(scene.Description)

	// Claim the scene with a status-guarded update. Every later write is
	// guarded the same way, so a cancel or janitor sweep that fails the
	// scene mid-flight is never overwritten: failed is terminal.
	claim := p.DB.Model(&models.Scene{}).
		Where("id = ? AND status = ?", scene.ID, models.SceneStatusPending).
		Updates(map[string]interface{}{
			"status":        models.SceneStatusGenerating,
			"music":         datatypes.NewJSONType(music),
			"sound_effects": datatypes.JSONSlice[models.SoundEffect](effects),
		})
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		log.Printf("Scene %d was claimed elsewhere, skipping", scene.ID)
		return nil
	}
	scene.Status = models.SceneStatusGenerating

	// Sub-step 1: storyboard.
	p.publishScene(ctx, &movie, &scene, "storyboard", "generating")
	prompt := scene.Description
	if prompt == "" {
		prompt = scene.Title
	}
	storyboard, err := p.Collabs.Image.Generate(ctx, prompt, movie.Style)
	if err != nil {
		// Image failures resolve to the placeholder; the storyboard is not
		// the authoritative artifact, the video is.
		log.Printf("Storyboard generation failed for scene %d, using placeholder: %v", scene.ID, err)
		storyboard, _ = collab.NewPlaceholderImageGenerator().Generate(ctx, prompt, movie.Style)
	}
	ok, err := p.persistSceneStep(scene.ID, map[string]interface{}{"storyboard_url": storyboard})
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("Scene %d is no longer generating, discarding storyboard", scene.ID)
		return nil
	}
	scene.StoryboardURL = storyboard
	p.publishScene(ctx, &movie, &scene, "storyboard", "completed")

	// Sub-step 2: video.
	p.publishScene(ctx, &movie, &scene, "video", "generating")
	video, err := p.Collabs.Video.Animate(ctx, storyboard, prompt, frameCount)
	if err != nil {
		return p.failScene(ctx, &movie, &scene, "video", apperr.Collaboratorf(err, "animating storyboard"))
	}
	ok, err = p.persistSceneStep(scene.ID, map[string]interface{}{"video_url": video})
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("Scene %d is no longer generating, discarding video", scene.ID)
		return nil
	}
	scene.VideoURL = video
	p.publishScene(ctx, &movie, &scene, "video", "completed")

	// Sub-step 3: audio. Dialogue lines are spoken in order; scenes without
	// dialogue get a narration of the description.
	p.publishScene(ctx, &movie, &scene, "audio", "generating")
	speechText := strings.Join(scene.Dialogue, " ")
	if strings.TrimSpace(speechText) == "" {
		speechText = scene.Description
	}
	audio, err := p.Collabs.Audio.Speech(ctx, speechText)
	if err != nil {
		return p.failScene(ctx, &movie, &scene, "audio", apperr.Collaboratorf(err, "synthesizing dialogue"))
	}

	ok, err = p.persistSceneStep(scene.ID, map[string]interface{}{
		"audio_url": audio,
		"status":    models.SceneStatusCompleted,
	})
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("Scene %d is no longer generating, discarding audio", scene.ID)
		return nil
	}
	scene.AudioURL = audio
	scene.Status = models.SceneStatusCompleted

	log.Printf("Scene %d completed (movie %d)", scene.ID, movie.ID)
	return p.Broadcast.RecomputeMovieStatus(ctx, p.DB, movie.ID)
}

// persistSceneStep writes artifact updates only while the scene is still
// generating. A false return means another actor already moved the scene to
// a terminal state, and the worker must abandon its output.
func (p *Processor) persistSceneStep(sceneID uint, updates map[string]interface{}) (bool, error) {
	result := p.DB.Model(&models.Scene{}).
		Where("id = ? AND status = ?", sceneID, models.SceneStatusGenerating).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// failScene marks the scene failed with a human-readable reason, then
// recomputes the movie's aggregate status. Timeouts are recorded as
// "timeout", indistinguishable in effect from any other failure.
func (p *Processor) failScene(ctx context.Context, movie *models.Movie, scene *models.Scene, stage string, cause error) error {
	reason := failureReason(stage, cause)
	log.Printf("Scene %d failed at %s: %v", scene.ID, stage, cause)

	result := p.DB.Model(&models.Scene{}).
		Where("id = ? AND status = ?", scene.ID, models.SceneStatusGenerating).
		Updates(map[string]interface{}{
			"status":         models.SceneStatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Cancelled or swept while the collaborator call was in flight; the
		// recorded failure stands.
		log.Printf("Scene %d is no longer generating, keeping its recorded failure", scene.ID)
		return cause
	}
	scene.Status = models.SceneStatusFailed
	scene.FailureReason = reason

	p.Broadcast.Publish(ctx, progress.Event{
		MovieID: movie.ID,
		SceneID: scene.ID,
		Stage:   stage,
		Status:  models.SceneStatusFailed,
		Percent: progress.MoviePercent(p.DB, movie.ID),
		Message: reason,
	})
	if err := p.Broadcast.RecomputeMovieStatus(ctx, p.DB, movie.ID); err != nil {
		return err
	}
	return cause
}

func failureReason(stage string, cause error) string {
	if errors.Is(cause, context.DeadlineExceeded) {
		return "timeout"
	}
	if apperr.IsCollaborator(cause) {
		return fmt.Sprintf("%s failed: %s", stage, apperr.Reason(cause))
	}
	return fmt.Sprintf("%s failed: %v", stage, cause)
}

func (p *Processor) publishScene(ctx context.Context, movie *models.Movie, scene *models.Scene, stage, status string) {
	p.Broadcast.Publish(ctx, progress.Event{
		MovieID: movie.ID,
		SceneID: scene.ID,
		Stage:   stage,
		Status:  status,
		Percent: progress.MoviePercent(p.DB, movie.ID),
	})
}

// HandleMovieAssembly processes tasks from QueueMovieAssembly: it
// concatenates completed scene clips in scene-number order, regenerates the
// poster, and settles the credit debit atomically with the movie's
// transition to completed. Re-running on an already-completed movie is a
// no-op, so credits are debited exactly once.
func (p *Processor) HandleMovieAssembly(ctx context.Context, payload string) error {
	var task tasks.AssemblyTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	log.Printf("Assembling movie %d", task.MovieID)
	var movie models.Movie
	if err := p.DB.First(&movie, task.MovieID).Error; err != nil {
		return err
	}
	if movie.Status == models.MovieStatusCompleted {
		log.Printf("Movie %d already completed, skipping assembly", movie.ID)
		return nil
	}

	var scenes []models.Scene
	if err := p.DB.Where("movie_id = ?", movie.ID).
		Order("scene_number asc").Find(&scenes).Error; err != nil {
		return err
	}

	for _, s := range scenes {
		if !s.IsTerminal() {
			return fmt.Errorf("movie %d has non-terminal scene %d, assembly not ready", movie.ID, s.SceneNumber)
		}
	}

	plan, err := assembly.BuildPlan(movie.ID, scenes)
	if err != nil {
		return p.failMovie(ctx, &movie, "assembly", err)
	}

	total := credits.FinalizeTotal(scenes)

	p.Broadcast.Publish(ctx, progress.Event{
		MovieID: movie.ID,
		Stage:   "assembly",
		Status:  "generating",
		Percent: progress.MoviePercent(p.DB, movie.ID),
	})

	// Per-clip music and sound-effect metadata rides on the plan; the final
	// cut keeps each clip's own audio and mixes nothing extra in.
	finalVideo, err := p.Stitcher.Stitch(ctx, plan, "")
	if err != nil {
		return p.failMovie(ctx, &movie, "assembly", err)
	}

	poster := p.generatePoster(ctx, &movie)

	err = p.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.Movie
		if err := platform.LockForUpdate(tx).First(&locked, movie.ID).Error; err != nil {
			return err
		}
		if locked.Status == models.MovieStatusCompleted {
			// A concurrent finalize won the race; nothing to debit.
			return nil
		}

		if err := p.Ledger.Debit(tx, locked.UserID, total); err != nil {
			return err
		}

		return tx.Model(&locked).Updates(map[string]interface{}{
			"status":       models.MovieStatusCompleted,
			"video_url":    finalVideo,
			"poster_url":   poster,
			"credits_used": total,
		}).Error
	})
	if err != nil {
		return p.failMovie(ctx, &movie, "finalize", err)
	}

	log.Printf("Movie %d assembled: %s (%d credits)", movie.ID, finalVideo, total)
	p.Broadcast.Publish(ctx, progress.Event{
		MovieID: movie.ID,
		Stage:   "movie",
		Status:  models.MovieStatusCompleted,
		Percent: 100,
	})
	return nil
}

// generatePoster regenerates the poster from title and genre. Image
// generation failures resolve to the deterministic placeholder rather than
// failing the movie.
func (p *Processor) generatePoster(ctx context.Context, movie *models.Movie) string {
	prompt := fmt.Sprintf("Movie poster for \"%s\", a %s film", movie.Title, movie.Genre)
	poster, err := p.Collabs.Image.Generate(ctx, prompt, movie.Style)
	if err != nil {
		log.Printf("Poster generation failed for movie %d, using placeholder: %v", movie.ID, err)
		poster, _ = collab.NewPlaceholderImageGenerator().Generate(ctx, prompt, movie.Style)
	}
	return poster
}

func (p *Processor) failMovie(ctx context.Context, movie *models.Movie, stage string, cause error) error {
	reason := failureReason(stage, cause)
	log.Printf("Movie %d failed at %s: %v", movie.ID, stage, cause)

	if err := p.DB.Model(movie).Update("status", models.MovieStatusFailed).Error; err != nil {
		return err
	}
	p.Broadcast.Publish(ctx, progress.Event{
		MovieID: movie.ID,
		Stage:   stage,
		Status:  models.MovieStatusFailed,
		Percent: progress.MoviePercent(p.DB, movie.ID),
		Message: reason,
	})
	return cause
}

// HandleMoviePoster processes tasks from QueueMoviePoster.
func (p *Processor) HandleMoviePoster(ctx context.Context, payload string) error {
	var task tasks.PosterTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	var movie models.Movie
	if err := p.DB.First(&movie, task.MovieID).Error; err != nil {
		return err
	}

	poster := p.generatePoster(ctx, &movie)
	if err := p.DB.Model(&movie).Update("poster_url", poster).Error; err != nil {
		return err
	}

	log.Printf("Regenerated poster for movie %d: %s", movie.ID, poster)
	p.Broadcast.Publish(ctx, progress.Event{
		MovieID: movie.ID,
		Stage:   "poster",
		Status:  "completed",
		Percent: progress.MoviePercent(p.DB, movie.ID),
	})
	return nil
}

// trailerSceneCount is how many leading completed scenes make the trailer.
const trailerSceneCount = 3

// HandleMovieTrailer processes tasks from QueueMovieTrailer: the first
// completed scenes are cut together over an epic genre theme.
func (p *Processor) HandleMovieTrailer(ctx context.Context, payload string) error {
	var task tasks.TrailerTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	var movie models.Movie
	if err := p.DB.First(&movie, task.MovieID).Error; err != nil {
		return err
	}

	var scenes []models.Scene
	if err := p.DB.Where("movie_id = ? AND status = ?", movie.ID, models.SceneStatusCompleted).
		Order("scene_number asc").Limit(trailerSceneCount).Find(&scenes).Error; err != nil {
		return err
	}

	plan, err := assembly.BuildPlan(movie.ID, scenes)
	if err != nil {
		return fmt.Errorf("trailer for movie %d: %w", movie.ID, err)
	}

	theme, err := p.Collabs.Audio.Music(ctx, models.MusicDescriptor{
		Genre:    strings.ToLower(movie.Genre),
		Mood:     "epic",
		Duration: 60,
	})
	if err != nil {
		log.Printf("Trailer theme generation failed for movie %d, cutting without music: %v", movie.ID, err)
		theme = ""
	}

	trailer, err := p.Stitcher.Stitch(ctx, plan, theme)
	if err != nil {
		return fmt.Errorf("trailer stitch for movie %d: %w", movie.ID, err)
	}

	if err := p.DB.Model(&movie).Update("trailer_url", trailer).Error; err != nil {
		return err
	}

	log.Printf("Trailer ready for movie %d: %s", movie.ID, trailer)
	p.Broadcast.Publish(ctx, progress.Event{
		MovieID: movie.ID,
		Stage:   "trailer",
		Status:  "completed",
		Percent: progress.MoviePercent(p.DB, movie.ID),
	})
	return nil
}

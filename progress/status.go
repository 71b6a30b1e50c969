package progress

import (
	"context"

	"github.com/cineo-ai/cineo-api/internal/platform"
	"github.com/cineo-ai/cineo-api/models"
	"gorm.io/gorm"
)

// MoviePercent is floor(completed_scenes / total_scenes * 100).
func MoviePercent(db *gorm.DB, movieID uint) int {
	var total, completed int64
	db.Model(&models.Scene{}).Where("movie_id = ?", movieID).Count(&total)
	if total == 0 {
		return 0
	}
	db.Model(&models.Scene{}).
		Where("movie_id = ? AND status = ?", movieID, models.SceneStatusCompleted).
		Count(&completed)
	return int(completed * 100 / total)
}

// RecomputeMovieStatus derives the movie's aggregate status from its
// scenes, under a row lock so two concurrently-finishing scenes cannot race
// on "are all scenes done". Runs whenever a scene reaches a terminal state,
// from the worker or from an HTTP accept. Any failed scene fails the whole
// movie. When every scene completed, the movie stays in generating until
// assembly settles it, but a 100% progress event goes out immediately.
func (b *Broadcaster) RecomputeMovieStatus(ctx context.Context, db *gorm.DB, movieID uint) error {
	var allCompleted bool

	err := db.Transaction(func(tx *gorm.DB) error {
		var movie models.Movie
		if err := platform.LockForUpdate(tx).First(&movie, movieID).Error; err != nil {
			return err
		}
		if movie.IsTerminal() {
			return nil
		}

		var scenes []models.Scene
		if err := tx.Where("movie_id = ?", movieID).Find(&scenes).Error; err != nil {
			return err
		}

		completed := 0
		for _, s := range scenes {
			switch s.Status {
			case models.SceneStatusFailed:
				return tx.Model(&movie).Update("status", models.MovieStatusFailed).Error
			case models.SceneStatusCompleted:
				completed++
			}
		}
		allCompleted = len(scenes) > 0 && completed == len(scenes)
		return nil
	})
	if err != nil {
		return err
	}

	if allCompleted {
		b.Publish(ctx, Event{
			MovieID: movieID,
			Stage:   "scenes",
			Status:  models.SceneStatusCompleted,
			Percent: 100,
			Message: "all scenes generated",
		})
	} else {
		// Either still in flight, or a scene failure just failed the movie.
		var movie models.Movie
		if err := db.First(&movie, movieID).Error; err == nil && movie.Status == models.MovieStatusFailed {
			b.Publish(ctx, Event{
				MovieID: movieID,
				Stage:   "movie",
				Status:  models.MovieStatusFailed,
				Percent: MoviePercent(db, movieID),
				Message: "a scene failed",
			})
		}
	}
	return nil
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/cineo-ai/cineo-api/internal/platform"
	"github.com/cineo-ai/cineo-api/models"
	"github.com/cineo-ai/cineo-api/progress"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// stalledAfter is how long a movie may sit in generating before the janitor
// fails it. Covers lost tasks and workers that died mid-scene.
const stalledAfter = 2 * time.Hour

func main() {
	// Use the shared initializers
	db := platform.NewDBConnection()
	rdb := platform.NewRedisClient()
	ctx := context.Background()
	broadcast := progress.NewBroadcaster(rdb)

	// Create a new cron scheduler
	c := cron.New()

	if _, err := c.AddFunc("@every 10m", func() {
		purgeExpiredSessions(db)
	}); err != nil {
		log.Fatalf("Error scheduling session purge: %v", err)
	}

	if _, err := c.AddFunc("@every 5m", func() {
		failStalledMovies(ctx, db, broadcast)
	}); err != nil {
		log.Fatalf("Error scheduling stalled-movie check: %v", err)
	}

	c.Start()
	defer c.Stop()

	log.Println("Scheduler started")
	// Keep the main thread alive
	select {}
}

func purgeExpiredSessions(db *gorm.DB) {
	result := db.Where("expires_at < ?", time.Now()).Delete(&models.Session{})
	if result.Error != nil {
		log.Printf("Error purging expired sessions: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("Purged %d expired sessions", result.RowsAffected)
	}
}

// failStalledMovies fails movies stuck in generating past the deadline,
// along with their non-terminal scenes.
func failStalledMovies(ctx context.Context, db *gorm.DB, broadcast *progress.Broadcaster) {
	cutoff := time.Now().Add(-stalledAfter)

	var stalled []models.Movie
	if err := db.Where("status = ? AND updated_at < ?", models.MovieStatusGenerating, cutoff).
		Find(&stalled).Error; err != nil {
		log.Printf("Error querying stalled movies: %v", err)
		return
	}

	for _, movie := range stalled {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Scene{}).
				Where("movie_id = ? AND status IN ?", movie.ID,
					[]string{models.SceneStatusPending, models.SceneStatusGenerating}).
				Updates(map[string]interface{}{
					"status":         models.SceneStatusFailed,
					"failure_reason": "stalled",
				}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Movie{}).Where("id = ?", movie.ID).
				Update("status", models.MovieStatusFailed).Error
		})
		if err != nil {
			log.Printf("Error failing stalled movie %d: %v", movie.ID, err)
			continue
		}

		log.Printf("Failed stalled movie %d (last update %s)", movie.ID, movie.UpdatedAt)
		broadcast.Publish(ctx, progress.Event{
			MovieID: movie.ID,
			Stage:   "movie",
			Status:  models.MovieStatusFailed,
			Message: "stalled",
		})
	}
}

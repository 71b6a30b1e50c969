package tasks

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
)

// ---
// QUEUE DEFINITIONS
// ---
// All queue names are defined here as constants.
const (
	// QueueSceneGeneration drives one scene through storyboard, video and
	// audio generation.
	QueueSceneGeneration = "q_scene_generation"

	// QueueMovieAssembly concatenates completed scenes into the final
	// artifact and settles the credit debit.
	QueueMovieAssembly = "q_movie_assembly"

	// QueueMoviePoster regenerates the poster from title and genre.
	QueueMoviePoster = "q_movie_poster"

	// QueueMovieTrailer cuts a trailer from the first completed scenes.
	QueueMovieTrailer = "q_movie_trailer"
)

// ---
// TASK PAYLOADS
// ---
// These are the structs that will be JSON-marshalled and sent to Redis.

// SceneTaskPayload is the payload for QueueSceneGeneration
type SceneTaskPayload struct {
	SceneID uint `json:"scene_id"`
}

// AssemblyTaskPayload is the payload for QueueMovieAssembly
type AssemblyTaskPayload struct {
	MovieID uint `json:"movie_id"`
}

// PosterTaskPayload is the payload for QueueMoviePoster
type PosterTaskPayload struct {
	MovieID uint `json:"movie_id"`
}

// TrailerTaskPayload is the payload for QueueMovieTrailer
type TrailerTaskPayload struct {
	MovieID uint `json:"movie_id"`
}

// ---
// HELPER FUNCTIONS
// ---

// Marshal creates a JSON payload for a task.
func Marshal(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Enqueue pushes a task onto a queue.
func Enqueue(ctx context.Context, rdb *redis.Client, queueName string, payload interface{}) error {
	payloadStr, err := Marshal(payload)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queueName, payloadStr).Err()
}

package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/cineo-ai/cineo-api/assembly"
	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/internal/platform"
	"github.com/cineo-ai/cineo-api/progress"
	"github.com/cineo-ai/cineo-api/tasks"
	"github.com/cineo-ai/cineo-api/worker"
)

const defaultPoolSize = 8

func main() {
	// Use the shared initializers
	db := platform.NewDBConnection()
	rdb := platform.NewRedisClient()
	ctx := context.Background()

	poolSize := defaultPoolSize
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			poolSize = n
		}
	}

	collabs := collab.NewSetFromEnv()
	broadcast := progress.NewBroadcaster(rdb)
	stitcher := assembly.NewFFmpegStitcher("")

	processor, err := worker.NewProcessor(db, rdb, collabs, broadcast, stitcher, poolSize)
	if err != nil {
		log.Fatalf("Failed to create processor: %v", err)
	}

	processor.Register(tasks.QueueSceneGeneration, processor.HandleSceneGeneration)
	processor.Register(tasks.QueueMovieAssembly, processor.HandleMovieAssembly)
	processor.Register(tasks.QueueMoviePoster, processor.HandleMoviePoster)
	processor.Register(tasks.QueueMovieTrailer, processor.HandleMovieTrailer)

	log.Printf("Worker started with pool size %d, waiting for queue tasks...", poolSize)
	processor.Listen(ctx,
		tasks.QueueSceneGeneration,
		tasks.QueueMovieAssembly,
		tasks.QueueMoviePoster,
		tasks.QueueMovieTrailer,
	)
}

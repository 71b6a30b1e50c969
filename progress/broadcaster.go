package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

// Event is one progress update for a movie. Stage names the pipeline step
// that produced it (plan, storyboard, video, audio, scene, assembly, movie).
type Event struct {
	MovieID uint   `json:"movie_id"`
	SceneID uint   `json:"scene_id,omitempty"`
	Stage   string `json:"stage"`
	Status  string `json:"status"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// Broadcaster is a per-movie publish/subscribe channel over Redis.
// Delivery is best-effort and unbuffered: no history is retained, so a
// subscriber joining mid-generation must pull current state separately.
type Broadcaster struct {
	rdb *redis.Client
}

func NewBroadcaster(rdb *redis.Client) *Broadcaster {
	return &Broadcaster{rdb: rdb}
}

// ChannelFor returns the Redis channel name for a movie.
func ChannelFor(movieID uint) string {
	return fmt.Sprintf("movie:progress:%d", movieID)
}

// Publish sends an event to the movie's channel. Failures are logged, never
// propagated: progress delivery must not affect the pipeline.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshalling progress event: %v", err)
		return
	}
	if err := b.rdb.Publish(ctx, ChannelFor(ev.MovieID), payload).Err(); err != nil {
		log.Printf("Error publishing progress for movie %d: %v", ev.MovieID, err)
	}
}

// Subscribe returns a channel of events for the movie and a cancel func.
// Ownership of the movie must be verified by the caller before subscribing.
func (b *Broadcaster) Subscribe(ctx context.Context, movieID uint) (<-chan Event, func()) {
	pubsub := b.rdb.Subscribe(ctx, ChannelFor(movieID))
	out := make(chan Event)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("Error unmarshalling progress event: %v", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { pubsub.Close() }
}

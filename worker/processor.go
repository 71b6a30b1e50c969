package worker

import (
	"context"
	"log"

	"github.com/cineo-ai/cineo-api/assembly"
	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/credits"
	"github.com/cineo-ai/cineo-api/progress"
	"github.com/cineo-ai/cineo-api/tasks"
	"github.com/go-redis/redis/v8"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// TaskHandler is a function that processes a task payload.
type TaskHandler func(ctx context.Context, payload string) error

// Processor holds dependencies and registered task handlers. Popped tasks
// are dispatched into a bounded goroutine pool so scene workers never
// serialize on each other; concurrency is controlled by the pool size.
type Processor struct {
	DB        *gorm.DB
	RDB       *redis.Client
	Collabs   *collab.Set
	Broadcast *progress.Broadcaster
	Ledger    *credits.Ledger
	Stitcher  assembly.Stitcher

	pool     *ants.Pool
	handlers map[string]TaskHandler
}

// NewProcessor creates a new worker processor with a pool of poolSize
// concurrent task slots.
func NewProcessor(db *gorm.DB, rdb *redis.Client, collabs *collab.Set, broadcast *progress.Broadcaster, stitcher assembly.Stitcher, poolSize int) (*Processor, error) {
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(r interface{}) {
		log.Printf("Task panicked: %v", r)
	}))
	if err != nil {
		return nil, err
	}

	return &Processor{
		DB:        db,
		RDB:       rdb,
		Collabs:   collabs,
		Broadcast: broadcast,
		Ledger:    credits.NewLedger(db),
		Stitcher:  stitcher,
		pool:      pool,
		handlers:  make(map[string]TaskHandler),
	}, nil
}

// Register maps a queue name (task type) to a handler function.
func (p *Processor) Register(queueName string, handler TaskHandler) {
	p.handlers[queueName] = handler
	log.Printf("Registered handler for queue: %s", queueName)
}

// Enqueue is a helper to add a new task to a queue.
func (p *Processor) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	return tasks.Enqueue(ctx, p.RDB, queueName, payload)
}

// Listen starts the worker, listening on all registered queues. Each popped
// task runs on the pool; BRPop only blocks the dispatch loop.
func (p *Processor) Listen(ctx context.Context, queueNames ...string) {
	log.Printf("Worker listening on %d queues: %v", len(queueNames), queueNames)

	for {
		result, err := p.RDB.BRPop(ctx, 0, queueNames...).Result()
		if err != nil {
			if ctx.Err() != nil {
				p.pool.Release()
				return
			}
			log.Printf("Error popping from queue: %v", err)
			continue
		}

		// result[0] is the queue name, result[1] is the payload
		queueName := result[0]
		payload := result[1]

		handler, ok := p.handlers[queueName]
		if !ok {
			log.Printf("Error: No handler registered for queue %s", queueName)
			continue
		}

		log.Printf("Received task from queue %s", queueName)

		if err := p.pool.Submit(func() {
			if err := handler(ctx, payload); err != nil {
				log.Printf("Error processing task from %s: %v", queueName, err)
			}
		}); err != nil {
			log.Printf("Error submitting task from %s to pool: %v", queueName, err)
		}
	}
}

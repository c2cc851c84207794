package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"homely-scraper/models"
)

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("queue: redis address is required")

// connectionTimeout bounds the ping issued when the client is created.
const connectionTimeout = 5 * time.Second

// Config holds Redis connection and queue settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Key is the list the spider consumes, e.g. "homelyspider:start_urls".
	// The companion dedup set lives at Key + ":seen".
	Key string
}

// Queue is a deduplicating work queue backed by a Redis list. Enqueue is
// guarded by a set keyed on the normalized URL, so the queue behaves as
// a set: pushing an already-seen URL is a no-op. Delivery is
// at-least-once; consumers must be idempotent.
type Queue struct {
	client *redis.Client
	key    string
	seen   string
}

// New creates a Queue and verifies the Redis connection.
func New(cfg Config) (*Queue, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("queue: redis ping failed: %w", err)
	}

	return &Queue{client: client, key: cfg.Key, seen: cfg.Key + ":seen"}, nil
}

// Enqueue pushes a work item unless its URL has been seen before.
// It returns true when the item was newly queued.
func (q *Queue) Enqueue(ctx context.Context, item models.WorkItem) (bool, error) {
	if item.URL == "" {
		return false, errors.New("queue: work item has empty url")
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("queue: marshal item: %w", err)
	}

	added, err := q.client.SAdd(ctx, q.seen, item.URL).Result()
	if err != nil {
		return false, fmt.Errorf("queue: mark seen: %w", err)
	}
	if added == 0 {
		return false, nil
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		// Unmark the URL so a later Enqueue can deliver it; leaving the
		// mark would drop the URL for the rest of the run.
		q.client.SRem(ctx, q.seen, item.URL)
		return false, fmt.Errorf("queue: push: %w", err)
	}
	return true, nil
}

// Dequeue pops up to batchSize items, blocking up to timeout for the
// first one. A timeout with nothing available returns an empty slice.
func (q *Queue) Dequeue(ctx context.Context, batchSize int, timeout time.Duration) ([]models.WorkItem, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	items := make([]models.WorkItem, 0, batchSize)
	for len(items) < batchSize {
		var raw string
		if len(items) == 0 {
			// BRPop returns [key, value]. BRPOP timeouts round up to whole
			// seconds, so only the first pop may block; the rest of the
			// batch drains with non-blocking pops.
			res, err := q.client.BRPop(ctx, timeout, q.key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return items, fmt.Errorf("queue: pop: %w", err)
			}
			raw = res[1]
		} else {
			val, err := q.client.RPop(ctx, q.key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return items, fmt.Errorf("queue: pop: %w", err)
			}
			raw = val
		}

		var item models.WorkItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return items, fmt.Errorf("queue: decode item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// Len returns the number of items currently waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: len: %w", err)
	}
	return n, nil
}

// Close releases the underlying Redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}

package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Feed is a durable event stream for out-of-process observers (the
// retention worker). Same shape as Bus plus a consuming side.
type Feed interface {
	Bus
	Consume(ctx context.Context) (<-chan Event, error)
}

// InMemoryFeed is a channel-backed feed for dev and tests.
type InMemoryFeed struct {
	ch chan Event
}

// NewInMemoryFeed creates a bounded in-memory feed.
func NewInMemoryFeed(size int) *InMemoryFeed {
	return &InMemoryFeed{ch: make(chan Event, size)}
}

func (f *InMemoryFeed) Publish(ctx context.Context, evt Event) error {
	select {
	case f.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *InMemoryFeed) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-f.ch:
				out <- evt
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisFeed streams events through a Redis list using LPUSH/BRPOP.
type RedisFeed struct {
	client *redis.Client
	key    string
}

// NewRedisFeed builds a feed on the given list key.
func NewRedisFeed(client *redis.Client, key string) *RedisFeed {
	if key == "" {
		key = "attendance:audio-events"
	}
	return &RedisFeed{client: client, key: key}
}

func (f *RedisFeed) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return f.client.LPush(ctx, f.key, payload).Err()
}

// Consume streams events until the context is cancelled. Malformed
// payloads are skipped.
func (f *RedisFeed) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			res, err := f.client.BRPop(ctx, 5*time.Second, f.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var evt Event
				if err := json.Unmarshal([]byte(res[1]), &evt); err == nil {
					out <- evt
				}
			}
		}
	}()
	return out, nil
}

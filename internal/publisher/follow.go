package publisher

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// Entry is one stream message as relayed to websocket clients.
type Entry struct {
	ID        string
	Data      string
	Timestamp string
}

// Follow blocks reading new entries from the stream and hands each to fn
// until ctx is cancelled or fn returns an error. Only entries added after
// the call are delivered.
func (rp *RedisPublisher) Follow(ctx context.Context, fn func(Entry) error) error {
	lastID := "$"
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		streams, err := rp.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{rp.stream, lastID},
			Count:   50,
			Block:   5 * time.Second,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return nil
		case err != nil:
			rp.logger.Warn("xread failed", "stream", rp.stream, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				if err := fn(toEntry(msg)); err != nil {
					return err
				}
			}
		}
	}
}

func toEntry(msg redis.XMessage) Entry {
	e := Entry{ID: msg.ID}
	if v, ok := msg.Values["data"].(string); ok {
		e.Data = v
	}
	if v, ok := msg.Values["timestamp"].(string); ok {
		e.Timestamp = v
	}
	return e
}

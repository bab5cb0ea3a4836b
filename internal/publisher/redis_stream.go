package publisher

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/syncjob"
)

const (
	// SyncStream carries one entry per finished sync run.
	SyncStream = "cesta.syncs"

	EventSyncCompleted = "sync.completed"

	streamMaxLen = 1000
)

// SyncEvent is the JSON document stored in the "data" field of a stream
// entry.
type SyncEvent struct {
	Event  string         `json:"event"`
	Result syncjob.Result `json:"result"`
}

// RedisPublisher publishes sync events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	logger *logging.Logger
	now    func() time.Time
}

// NewRedisPublisher connects to redisURL and verifies the connection.
func NewRedisPublisher(ctx context.Context, redisURL string, logger *logging.Logger) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	return NewRedisStreamPublisher(client, logger), nil
}

// NewRedisStreamPublisher wraps an existing client.
func NewRedisStreamPublisher(client *redis.Client, logger *logging.Logger) *RedisPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisPublisher{
		client: client,
		stream: SyncStream,
		logger: logger.Named("publisher"),
		now:    time.Now,
	}
}

// Close closes the Redis connection
func (rp *RedisPublisher) Close() error {
	return rp.client.Close()
}

// PublishSyncResult appends a sync.completed entry to the stream.
func (rp *RedisPublisher) PublishSyncResult(ctx context.Context, result syncjob.Result) error {
	values, err := entryValues(result, rp.now())
	if err != nil {
		return err
	}

	id, err := rp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rp.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return errors.Wrapf(err, "xadd %s", rp.stream)
	}
	rp.logger.DebugContext(ctx, "sync event published", "stream", rp.stream, "id", id, "status", string(result.Status))
	return nil
}

func entryValues(result syncjob.Result, now time.Time) (map[string]interface{}, error) {
	data, err := sonic.Marshal(SyncEvent{Event: EventSyncCompleted, Result: result})
	if err != nil {
		return nil, errors.Wrap(err, "encode sync event")
	}
	return map[string]interface{}{
		"data":      string(data),
		"timestamp": now.Unix(),
	}, nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"genpool/internal/config"
	"genpool/internal/domain"
	"genpool/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ ports.TaskQueue = (*Redis)(nil)

// Redis is a list-backed task queue keyed per batch, so multiple processes
// can drain the same batch. Join accounting uses a pending counter
// incremented on push and decremented on Done.
type Redis struct {
	rdb        *redis.Client
	listKey    string
	pendingKey string
}

// NewRedis connects to Redis and namespaces the queue under batch. An empty
// batch gets a fresh uuid, which makes the queue private to this run.
func NewRedis(cfg config.Redis, batch string) *Redis {
	if batch == "" {
		batch = uuid.NewString()
	}
	log.Info().Msgf("connecting to redis at %s, batch %s", cfg.Addr, batch)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{
		rdb:        rdb,
		listKey:    "genpool:batch:" + batch + ":tasks",
		pendingKey: "genpool:batch:" + batch + ":pending",
	}
}

// Ping verifies the connection before the batch starts.
func (q *Redis) Ping(ctx context.Context) error {
	if err := q.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (q *Redis) Push(ctx context.Context, t *domain.Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	// The pending counter and the list must move together: a counter bump
	// without a queued task would wedge Join forever, so both commands go
	// in one MULTI/EXEC.
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if t != nil {
			pipe.Incr(ctx, q.pendingKey)
		}
		pipe.LPush(ctx, q.listKey, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push task: %w", err)
	}
	return nil
}

func (q *Redis) Pop(ctx context.Context) (*domain.Task, error) {
	for {
		res, err := q.rdb.BRPop(ctx, time.Second, q.listKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, err
		}
		// res is [key, value].
		var t *domain.Task
		if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		return t, nil
	}
}

func (q *Redis) Done(ctx context.Context) {
	if err := q.rdb.Decr(ctx, q.pendingKey).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to decrement pending counter")
	}
}

// Join polls until the list is empty and every popped item was acknowledged.
func (q *Redis) Join(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		pending, err := q.rdb.Get(ctx, q.pendingKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read pending: %w", err)
		}
		if pending <= 0 {
			if depth, err := q.rdb.LLen(ctx, q.listKey).Result(); err == nil && depth == 0 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Redis) Len(ctx context.Context) int {
	n, err := q.rdb.LLen(ctx, q.listKey).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Cleanup removes the batch keys once a run has fully drained.
func (q *Redis) Cleanup(ctx context.Context) error {
	return q.rdb.Del(ctx, q.listKey, q.pendingKey).Err()
}

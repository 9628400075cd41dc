// Package queue provides the shared FIFO work queue. The memory
// implementation is the default; the Redis one lets several processes share
// a batch.
package queue

import (
	"context"
	"sync"

	"genpool/internal/domain"
	"genpool/internal/ports"
)

var _ ports.TaskQueue = (*Memory)(nil)

// Memory is an unbounded in-process FIFO with blocking pop and join/drain
// tracking, in the spirit of asyncio.Queue.
type Memory struct {
	mu         sync.Mutex
	popCond    *sync.Cond
	joinCond   *sync.Cond
	items      []*domain.Task
	unfinished int
}

func NewMemory() *Memory {
	q := &Memory{items: make([]*domain.Task, 0, 128)}
	q.popCond = sync.NewCond(&q.mu)
	q.joinCond = sync.NewCond(&q.mu)
	return q
}

// Push appends t to the tail. A nil task is the shutdown sentinel and is
// excluded from Join accounting.
func (q *Memory) Push(_ context.Context, t *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	if t != nil {
		q.unfinished++
	}
	q.popCond.Signal()
	return nil
}

// Pop removes and returns the head, blocking until an item is available or
// ctx is cancelled.
func (q *Memory) Pop(ctx context.Context) (*domain.Task, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.popCond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.popCond.Wait()
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, nil
}

// Done acknowledges one previously popped non-sentinel item.
func (q *Memory) Done(_ context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	if q.unfinished == 0 {
		q.joinCond.Broadcast()
	}
}

// Join blocks until every tracked push has been acknowledged with Done.
func (q *Memory) Join(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.joinCond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.joinCond.Wait()
	}
	return nil
}

// Len reports the current queue depth.
func (q *Memory) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

package ports

import (
	"context"

	"genpool/internal/domain"
)

// TaskQueue is the FIFO work queue shared by all workers. Pop blocks until
// an item is available or ctx is cancelled. A nil task is the shutdown
// sentinel: it is not tracked by Join and must not be acknowledged with
// Done. Every non-sentinel Pop must be paired with exactly one Done call
// (requeues count as fresh pushes); Join completes once all tracked pushes
// have been acknowledged.
type TaskQueue interface {
	Push(ctx context.Context, t *domain.Task) error
	Pop(ctx context.Context) (*domain.Task, error)
	Done(ctx context.Context)
	Join(ctx context.Context) error
	Len(ctx context.Context) int
}

// Generator performs one remote generation call with the given credential.
type Generator interface {
	Generate(ctx context.Context, credential, prompt string, params domain.GenParams) (string, error)
}

package pool

import (
	"context"
	"time"

	"genpool/internal/caller"
	"genpool/internal/domain"
	"genpool/internal/ports"
	"genpool/internal/sink"
	"genpool/internal/slot"

	"github.com/rs/zerolog"
)

// skipPause keeps a cooling or exhausted slot from immediately re-claiming
// the task it just requeued.
const skipPause = 10 * time.Millisecond

// worker is one sequential loop bound to exactly one slot. It never holds
// more than one in-flight call.
type worker struct {
	slot       *slot.Slot
	caller     *caller.Caller
	queue      ports.TaskQueue
	sink       *sink.Sink
	stats      *domain.Stats
	maxRetries int
	idKey      string
	promptKey  string
	total      int
	log        zerolog.Logger
}

func (w *worker) run(ctx context.Context) {
	for {
		t, err := w.queue.Pop(ctx)
		if err != nil {
			return
		}
		if t == nil {
			// Shutdown sentinel.
			return
		}

		out := w.caller.Call(ctx, w.slot, t.Prompt)
		switch out.Kind {
		case domain.OutcomeSuccess:
			w.stats.SuccessfulRequests.Add(1)
			w.stats.TotalRequests.Add(1)
			w.append(domain.Result{Task: *t, Output: out.Payload, Success: true})
			w.queue.Done(ctx)

		case domain.OutcomeSkip:
			w.requeue(ctx, t)
			w.queue.Done(ctx)
			select {
			case <-ctx.Done():
				return
			case <-time.After(skipPause):
			}

		case domain.OutcomeKeyIssue:
			// Credential-attributed: retry without bound, never counted
			// against the task.
			w.requeue(ctx, t)
			w.stats.RetriedTasks.Add(1)
			w.queue.Done(ctx)

		case domain.OutcomeTaskIssue:
			if t.ErrorCount < w.maxRetries {
				t.ErrorCount++
				w.requeue(ctx, t)
				w.stats.RetriedTasks.Add(1)
				w.log.Info().Msgf("task error for %v, retry %d/%d", t.ID, t.ErrorCount, w.maxRetries)
				w.queue.Done(ctx)
			} else {
				w.stats.FailedRequests.Add(1)
				w.stats.TotalRequests.Add(1)
				w.append(domain.Result{Task: *t, Success: false, FailureReason: "task_error"})
				w.log.Warn().Msgf("task %v failed after %d task error attempts", t.ID, w.maxRetries+1)
				w.queue.Done(ctx)
			}
		}
	}
}

func (w *worker) requeue(ctx context.Context, t *domain.Task) {
	if err := w.queue.Push(ctx, t); err != nil {
		w.log.Error().Err(err).Msgf("failed to requeue task %v", t.ID)
	}
}

func (w *worker) append(res domain.Result) {
	if err := w.sink.Append(res.Record(w.idKey, w.promptKey), res.Task.ID); err != nil {
		w.log.Error().Err(err).Msgf("failed to persist result for task %v", res.Task.ID)
	}
	w.log.Info().Msgf("completed %d/%d", w.sink.Count(), w.total)
}

// Package pool orchestrates a batch: it builds one slot per credential
// lane, seeds the shared queue with un-completed tasks, runs the workers
// and the monitor, and returns the accumulated results once the queue
// drains.
package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"genpool/internal/caller"
	"genpool/internal/domain"
	"genpool/internal/monitor"
	"genpool/internal/ports"
	"genpool/internal/queue"
	"genpool/internal/sink"
	"genpool/internal/slot"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNoCredentials is returned when a pool is built without any usable key.
var ErrNoCredentials = errors.New("no api keys provided: pass Options.APIKeys or set GENPOOL_API_KEYS / GENPOOL_API_KEY")

type Options struct {
	Model     string
	APIKeys   []string
	Generator ports.Generator

	// WorkersPerKey is the number of slots per credential (default 4).
	WorkersPerKey int
	// RateLimitPerSlot spaces consecutive calls on one slot (default 12s).
	RateLimitPerSlot time.Duration
	// MaxRetriesPerTask bounds task-attributed failures (default 5).
	// Key-attributed failures retry without bound.
	MaxRetriesPerTask int

	Temperature       float64
	SystemInstruction string
	ParseJSON         bool

	// IDKey and PromptKey name the task fields carrying the id and prompt
	// (defaults "id" and "prompt").
	IDKey     string
	PromptKey string

	// CheckpointPath enables resume: completed ids found there are skipped
	// and every append rewrites the artifact. Empty disables persistence.
	CheckpointPath string

	// ErrorLogPath receives one line per failed call (default errors.log).
	ErrorLogPath string

	// Queue overrides the default in-memory queue, e.g. with the Redis one.
	Queue ports.TaskQueue

	MonitorInterval time.Duration
	DisableMonitor  bool

	Logger *zerolog.Logger
}

type Pool struct {
	opts   Options
	slots  []*slot.Slot
	caller *caller.Caller
	queue  ports.TaskQueue
	stats  *domain.Stats
	log    zerolog.Logger

	errFile *os.File

	// runMu serializes batches: the queue, stats, and slots are shared.
	runMu sync.Mutex
}

// New validates options and builds the slot pool: len(APIKeys) ×
// WorkersPerKey slots, each bound to exactly one worker for its lifetime.
func New(opts Options) (*Pool, error) {
	if len(opts.APIKeys) == 0 {
		return nil, ErrNoCredentials
	}
	if opts.Generator == nil {
		return nil, errors.New("no generator provided")
	}
	if opts.Model == "" {
		return nil, errors.New("no model name provided")
	}
	if opts.WorkersPerKey <= 0 {
		opts.WorkersPerKey = 4
	}
	if opts.RateLimitPerSlot == 0 {
		opts.RateLimitPerSlot = 12 * time.Second
	}
	if opts.MaxRetriesPerTask == 0 {
		opts.MaxRetriesPerTask = 5
	}
	if opts.IDKey == "" {
		opts.IDKey = "id"
	}
	if opts.PromptKey == "" {
		opts.PromptKey = "prompt"
	}
	if opts.ErrorLogPath == "" {
		opts.ErrorLogPath = "errors.log"
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	var slots []*slot.Slot
	for _, key := range opts.APIKeys {
		for i := 0; i < opts.WorkersPerKey; i++ {
			slots = append(slots, slot.New(len(slots), key))
		}
	}

	q := opts.Queue
	if q == nil {
		q = queue.NewMemory()
	}

	errLog, errFile := newErrorLogger(opts.ErrorLogPath, logger)
	stats := &domain.Stats{}
	params := domain.GenParams{
		Model:             opts.Model,
		Temperature:       opts.Temperature,
		SystemInstruction: opts.SystemInstruction,
	}

	p := &Pool{
		opts:    opts,
		slots:   slots,
		caller:  caller.New(opts.Generator, params, opts.RateLimitPerSlot, opts.ParseJSON, stats, errLog),
		queue:   q,
		stats:   stats,
		log:     logger,
		errFile: errFile,
	}

	logger.Info().
		Int("keys", len(opts.APIKeys)).
		Int("workers_per_key", opts.WorkersPerKey).
		Int("slots", len(slots)).
		Dur("rate_limit_per_slot", opts.RateLimitPerSlot).
		Msg("initialized generation pool")
	return p, nil
}

// newErrorLogger opens the dedicated per-call error log. When the file
// cannot be opened, errors go to the main logger instead; logging must
// never abort a call.
func newErrorLogger(path string, fallback zerolog.Logger) (zerolog.Logger, *os.File) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fallback.Warn().Err(err).Msgf("could not open error log %s, using main logger", path)
		return fallback, nil
	}
	return zerolog.New(f).With().Timestamp().Logger(), f
}

// Close releases the error-log file handle.
func (p *Pool) Close() error {
	if p.errFile != nil {
		return p.errFile.Close()
	}
	return nil
}

// GenerateBatch processes tasks and returns the full accumulated result
// collection: prior checkpoint records plus everything completed in this
// run. Each element of tasks is either a bare prompt string or a
// map[string]any holding the prompt (and optionally the id) under the
// configured field names.
func (p *Pool) GenerateBatch(ctx context.Context, tasks []any) ([]map[string]any, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	snk := sink.Load(p.opts.CheckpointPath, p.opts.IDKey, p.log)

	pending, err := p.prepare(tasks, snk)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		p.log.Info().Msg("all tasks already completed")
		return snk.Records(), nil
	}
	p.log.Info().Msgf("remaining tasks: %d/%d", len(pending), len(tasks))

	for _, t := range pending {
		if err := p.queue.Push(ctx, t); err != nil {
			return nil, fmt.Errorf("seed queue: %w", err)
		}
	}

	total := snk.Count() + len(pending)

	var wg sync.WaitGroup
	for _, s := range p.slots {
		w := &worker{
			slot:       s,
			caller:     p.caller,
			queue:      p.queue,
			sink:       snk,
			stats:      p.stats,
			maxRetries: p.opts.MaxRetriesPerTask,
			idKey:      p.opts.IDKey,
			promptKey:  p.opts.PromptKey,
			total:      total,
			log:        p.log.With().Int("slot", s.Index).Logger(),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	if !p.opts.DisableMonitor {
		m := &monitor.Monitor{
			Interval: p.opts.MonitorInterval,
			Slots:    p.slots,
			Stats:    p.stats,
			Depth:    p.queue.Len,
			Log:      p.log,
		}
		go m.Run(monCtx)
	}

	joinErr := p.queue.Join(ctx)
	stopMonitor()

	// Stop workers. On a clean drain each worker consumes one sentinel; on
	// cancellation they exit through the queue's context error instead.
	for range p.slots {
		_ = p.queue.Push(context.WithoutCancel(ctx), nil)
	}
	wg.Wait()

	if joinErr != nil {
		return snk.Records(), joinErr
	}
	return snk.Records(), nil
}

// GenerateSingle runs one prompt through the first available slot.
func (p *Pool) GenerateSingle(ctx context.Context, prompt string) (any, error) {
	for _, s := range p.slots {
		if !s.Available() {
			continue
		}
		out := p.caller.Call(ctx, s, prompt)
		switch out.Kind {
		case domain.OutcomeSuccess:
			return out.Payload, nil
		case domain.OutcomeSkip:
			continue
		default:
			return nil, fmt.Errorf("generation failed: %s", out.Kind)
		}
	}
	return nil, errors.New("no available slot")
}

// prepare normalizes the submitted tasks and drops those whose ids are
// already present in the loaded checkpoint. Duplicate ids within the input
// are kept; only checkpointed ids are skipped.
func (p *Pool) prepare(tasks []any, snk *sink.Sink) ([]*domain.Task, error) {
	out := make([]*domain.Task, 0, len(tasks))
	for i, raw := range tasks {
		var t *domain.Task
		switch v := raw.(type) {
		case string:
			t = &domain.Task{ID: i, Prompt: v}
		case map[string]any:
			t = &domain.Task{ID: i, Meta: make(map[string]any, len(v))}
			for k, val := range v {
				switch k {
				case p.opts.IDKey:
					t.ID = val
				case p.opts.PromptKey:
					prompt, ok := val.(string)
					if !ok {
						return nil, fmt.Errorf("task %d: field %q is not a string", i, p.opts.PromptKey)
					}
					t.Prompt = prompt
				default:
					t.Meta[k] = val
				}
			}
		default:
			return nil, fmt.Errorf("task %d: unsupported type %T", i, raw)
		}

		if snk.IsDone(t.ID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Snapshot reads the batch counters plus current slot-state counts.
func (p *Pool) Snapshot() domain.StatsSnapshot {
	snap := p.stats.Snapshot()
	snap.TotalSlots = len(p.slots)
	for _, s := range p.slots {
		switch {
		case s.Exhausted():
			snap.ExhaustedSlots++
		case s.OnCooldown():
			snap.CooldownSlots++
		default:
			snap.AvailableSlots++
		}
	}
	return snap
}

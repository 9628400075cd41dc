// Package monitor periodically samples aggregate batch state. It only
// reads; slot state observed here may be momentarily stale, which is fine
// for reporting.
package monitor

import (
	"context"
	"time"

	"genpool/internal/domain"
	"genpool/internal/slot"

	"github.com/rs/zerolog"
)

type Monitor struct {
	Interval time.Duration
	Slots    []*slot.Slot
	Stats    *domain.Stats
	Depth    func(ctx context.Context) int
	Log      zerolog.Logger
}

// Run samples until ctx is cancelled. A failure to read any one metric is
// logged and skipped, never fatal to the sampling loop.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.Log.Warn().Msgf("monitor sample failed: %v", r)
		}
	}()

	var exhausted, cooling int
	for _, s := range m.Slots {
		switch {
		case s.Exhausted():
			exhausted++
		case s.OnCooldown():
			cooling++
		}
	}

	depth := 0
	if m.Depth != nil {
		depth = m.Depth(ctx)
	}

	snap := m.Stats.Snapshot()
	ev := m.Log.Info().
		Int64("active", snap.ActiveCalls).
		Int("slots", len(m.Slots)).
		Int("cooldown", cooling).
		Int("queued", depth).
		Int64("success", snap.Successful).
		Int64("requests", snap.TotalRequests).
		Int64("retried", snap.Retried)
	if exhausted > 0 {
		ev = ev.Int("exhausted", exhausted)
	}
	ev.Msgf("progress %.1f%% success rate", snap.SuccessRate)

	if exhausted == len(m.Slots) && len(m.Slots) > 0 && depth > 0 {
		m.Log.Warn().Msg("all slots exhausted with tasks still queued; batch is stalled")
	}
}

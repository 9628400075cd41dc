// Package caller wraps the remote generation call with the per-slot
// availability policy and classifies every attempt into one of four
// outcomes: success, key issue, task issue, or skip.
package caller

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"genpool/internal/domain"
	"genpool/internal/ports"
	"genpool/internal/slot"
	"genpool/pkg/jsonx"
	"genpool/pkg/retryhint"

	"github.com/rs/zerolog"
)

const (
	// defaultCooldown applies to rate-limit errors without a server hint.
	defaultCooldown = 60 * time.Second
	// maxHintCooldown caps any server-suggested retry delay.
	maxHintCooldown = 120 * time.Second
)

// Signatures of errors that permanently invalidate a credential.
var exhaustedSignatures = []string{
	"consumer_suspended",
	"permission denied",
	"permission_denied",
	"api key not valid",
	"api key expired",
	"invalid api key",
}

// Signatures of temporary rate/quota errors.
var rateLimitSignatures = []string{
	"429",
	"rate limit",
	"quota",
	"resource exhausted",
	"resource_exhausted",
}

type Caller struct {
	gen       ports.Generator
	params    domain.GenParams
	rateLimit time.Duration
	parseJSON bool
	stats     *domain.Stats
	errLog    zerolog.Logger
}

// New builds a caller. errLog receives one line per failed attempt and is
// best effort; its failures never abort a call.
func New(gen ports.Generator, params domain.GenParams, rateLimit time.Duration, parseJSON bool, stats *domain.Stats, errLog zerolog.Logger) *Caller {
	return &Caller{
		gen:       gen,
		params:    params,
		rateLimit: rateLimit,
		parseJSON: parseJSON,
		stats:     stats,
		errLog:    errLog,
	}
}

// Call issues one generation attempt through s. It skips without touching
// the slot when the slot is unavailable, enforces the per-slot spacing, and
// applies cooldown or exhaustion side effects according to the error class.
// The slot is held for the whole attempt, so calls on one slot stay
// strictly sequential even when a single-shot caller borrows it.
func (c *Caller) Call(ctx context.Context, s *slot.Slot, prompt string) domain.Outcome {
	s.Lock()
	defer s.Unlock()

	if !s.Available() {
		return domain.Outcome{Kind: domain.OutcomeSkip}
	}

	// Per-slot spacing is the sole rate-limiting mechanism.
	if wait := c.rateLimit - time.Since(s.LastCall()); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Outcome{Kind: domain.OutcomeSkip}
		case <-timer.C:
		}
	}

	c.stats.ActiveCalls.Add(1)
	defer c.stats.ActiveCalls.Add(-1)
	c.stats.TotalAPICalls.Add(1)

	text, err := c.gen.Generate(ctx, s.Credential, prompt, c.params)
	// A failed call still consumes the rate-limit window.
	s.TouchLastCall()

	if err != nil {
		return c.classify(s, err)
	}

	if c.parseJSON {
		parsed, ok := jsonx.Parse(text)
		if !ok {
			c.errLog.Error().Int("slot", s.Index).Str("text", truncate(text, 200)).Msg("json parse failed")
			return domain.Outcome{Kind: domain.OutcomeTaskIssue}
		}
		return domain.Outcome{Kind: domain.OutcomeSuccess, Payload: parsed}
	}
	return domain.Outcome{Kind: domain.OutcomeSuccess, Payload: text}
}

// classify attributes a transport error either to the credential (with the
// matching slot side effect) or to the task.
func (c *Caller) classify(s *slot.Slot, err error) domain.Outcome {
	hint, hinted := retryhint.Extract(err)
	msg := strings.ToLower(err.Error())

	ev := c.errLog.Error().Int("slot", s.Index).Err(err)
	if hinted {
		ev = ev.Dur("retry_hint", hint)
	}
	ev.Msg("call failed")

	for _, sig := range exhaustedSignatures {
		if strings.Contains(msg, sig) {
			s.Exhaust()
			return domain.Outcome{Kind: domain.OutcomeKeyIssue}
		}
	}

	if hinted || containsAny(msg, rateLimitSignatures) {
		s.ApplyCooldown(cooldownFor(hint, hinted))
		return domain.Outcome{Kind: domain.OutcomeKeyIssue}
	}

	return domain.Outcome{Kind: domain.OutcomeTaskIssue}
}

// cooldownFor sizes a cooldown from an optional server hint: hints are
// clamped to maxHintCooldown, absence (or a zero hint) selects the default.
func cooldownFor(hint time.Duration, hinted bool) time.Duration {
	if !hinted || hint <= 0 {
		return defaultCooldown
	}
	if hint > maxHintCooldown {
		return maxHintCooldown
	}
	return hint
}

func containsAny(msg string, sigs []string) bool {
	for _, sig := range sigs {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package retryhint

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type hintedErr struct {
	delay time.Duration
}

func (e *hintedErr) Error() string                     { return "quota exceeded" }
func (e *hintedErr) RetryDelay() (time.Duration, bool) { return e.delay, true }

func TestExtractStructuredHint(t *testing.T) {
	d, ok := Extract(&hintedErr{delay: 40 * time.Second})
	if !ok || d != 40*time.Second {
		t.Fatalf("Extract = %v, %v; want 40s, true", d, ok)
	}
}

func TestExtractWrappedStructuredHint(t *testing.T) {
	err := fmt.Errorf("call failed: %w", &hintedErr{delay: 7 * time.Second})
	d, ok := Extract(err)
	if !ok || d != 7*time.Second {
		t.Fatalf("Extract = %v, %v; want 7s, true", d, ok)
	}
}

func TestExtractFromMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want time.Duration
		ok   bool
	}{
		{"retryDelay token", `429 RESOURCE_EXHAUSTED: {"error": {"details": [{"retryDelay": "14s"}]}}`, 14 * time.Second, true},
		{"retry in seconds", "rate limited, please retry in 14.8 seconds", 14800 * time.Millisecond, true},
		{"retry in s suffix", "Please retry in 9s", 9 * time.Second, true},
		{"wait phrase", "quota exceeded, wait 30 seconds before retrying", 30 * time.Second, true},
		{"no hint", "permission denied", 0, false},
		{"unrelated number", "error code 503", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Extract(errors.New(tt.msg))
			if ok != tt.ok || d != tt.want {
				t.Fatalf("Extract(%q) = %v, %v; want %v, %v", tt.msg, d, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractNil(t *testing.T) {
	if _, ok := Extract(nil); ok {
		t.Fatal("Extract(nil) should find nothing")
	}
}

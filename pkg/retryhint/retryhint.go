// Package retryhint extracts a server-suggested retry delay from a failed
// generation call. Extraction is best effort and ordered: a structured hint
// on the error itself wins, then a retryDelay token embedded in the message
// body, then a plain-English "retry in N seconds" phrase.
package retryhint

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Hinter is implemented by errors that carry a machine-readable retry
// delay, such as an API error parsed from a structured RetryInfo detail.
type Hinter interface {
	RetryDelay() (time.Duration, bool)
}

var (
	// "retryDelay": "14s" as it appears in a JSON error body that was
	// stringified into the message.
	tokenRe = regexp.MustCompile(`(?i)"?retryDelay"?\s*[:=]\s*"?([0-9]+\.?[0-9]*)s?"?`)

	// "Please retry in 14.8s" / "wait 14 seconds".
	phraseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)retry in\s*([0-9]+\.?[0-9]*)\s*s(?:econds?)?`),
		regexp.MustCompile(`(?i)wait\s*([0-9]+\.?[0-9]*)\s*s(?:econds?)?`),
	}
)

// Extract returns the retry delay hinted by err, if any.
func Extract(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	var h Hinter
	if errors.As(err, &h) {
		if d, ok := h.RetryDelay(); ok {
			return d, true
		}
	}

	msg := err.Error()
	if m := tokenRe.FindStringSubmatch(msg); m != nil {
		if d, ok := seconds(m[1]); ok {
			return d, true
		}
	}
	for _, re := range phraseRes {
		if m := re.FindStringSubmatch(msg); m != nil {
			if d, ok := seconds(m[1]); ok {
				return d, true
			}
		}
	}
	return 0, false
}

func seconds(s string) (time.Duration, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}

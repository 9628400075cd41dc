package gemini

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the generation API. When the error
// body carries a RetryInfo detail, RetryDelay exposes it so the caller can
// size its cooldown.
type APIError struct {
	StatusCode int
	Status     string // e.g. RESOURCE_EXHAUSTED
	Message    string

	retryDelay time.Duration
	hasRetry   bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Status, e.Message)
}

// RetryDelay returns the structured retry hint, if the server sent one.
func (e *APIError) RetryDelay() (time.Duration, bool) {
	return e.retryDelay, e.hasRetry
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		} `json:"details"`
	} `json:"error"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	if eb.Error.Message != "" {
		apiErr.Message = eb.Error.Message
	}
	apiErr.Status = eb.Error.Status

	for _, d := range eb.Error.Details {
		if !strings.HasSuffix(d.Type, "RetryInfo") {
			continue
		}
		s := strings.TrimSuffix(strings.TrimSpace(d.RetryDelay), "s")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			apiErr.retryDelay = time.Duration(f * float64(time.Second))
			apiErr.hasRetry = true
		}
	}
	return apiErr
}

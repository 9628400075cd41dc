package gemini

import (
	"testing"
	"time"
)

func TestParseAPIErrorWithRetryInfo(t *testing.T) {
	body := `{
		"error": {
			"code": 429,
			"message": "Resource has been exhausted (e.g. check quota).",
			"status": "RESOURCE_EXHAUSTED",
			"details": [
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "41s"}
			]
		}
	}`
	apiErr := parseAPIError(429, []byte(body))
	if apiErr.StatusCode != 429 || apiErr.Status != "RESOURCE_EXHAUSTED" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	d, ok := apiErr.RetryDelay()
	if !ok || d != 41*time.Second {
		t.Fatalf("RetryDelay = %v, %v; want 41s, true", d, ok)
	}
}

func TestParseAPIErrorFractionalDelay(t *testing.T) {
	body := `{"error": {"code": 429, "message": "slow down", "status": "RESOURCE_EXHAUSTED",
		"details": [{"@type": ".../RetryInfo", "retryDelay": "0.5s"}]}}`
	apiErr := parseAPIError(429, []byte(body))
	d, ok := apiErr.RetryDelay()
	if !ok || d != 500*time.Millisecond {
		t.Fatalf("RetryDelay = %v, %v; want 500ms, true", d, ok)
	}
}

func TestParseAPIErrorWithoutDetails(t *testing.T) {
	body := `{"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}}`
	apiErr := parseAPIError(403, []byte(body))
	if _, ok := apiErr.RetryDelay(); ok {
		t.Fatal("no retry hint expected")
	}
	want := "403 PERMISSION_DENIED: API key not valid"
	if apiErr.Error() != want {
		t.Fatalf("Error() = %q, want %q", apiErr.Error(), want)
	}
}

func TestParseAPIErrorNonJSONBody(t *testing.T) {
	apiErr := parseAPIError(502, []byte("bad gateway"))
	if apiErr.Message != "bad gateway" || apiErr.StatusCode != 502 {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if _, ok := apiErr.RetryDelay(); ok {
		t.Fatal("no retry hint expected")
	}
}

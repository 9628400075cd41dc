package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"genpool/internal/domain"
	"genpool/internal/pool"

	"github.com/rs/zerolog"
)

type echoGen struct{}

func (echoGen) Generate(_ context.Context, _, prompt string, _ domain.GenParams) (string, error) {
	return "echo: " + prompt, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	nop := zerolog.Nop()
	p, err := pool.New(pool.Options{
		Model:            "test-model",
		APIKeys:          []string{"key-a"},
		Generator:        echoGen{},
		WorkersPerKey:    1,
		RateLimitPerSlot: time.Millisecond,
		ErrorLogPath:     t.TempDir() + "/errors.log",
		DisableMonitor:   true,
		Logger:           &nop,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return NewServer(p)
}

func TestGenerateEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/generate", strings.NewReader(`{"prompt": "hi"}`))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["result"] != "echo: hi" {
		t.Fatalf("result = %v", resp["result"])
	}
}

func TestBatchEndpoints(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/batch", strings.NewReader(`{"tasks": ["a", "b"]}`))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != 202 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var submit map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &submit); err != nil {
		t.Fatal(err)
	}
	id, _ := submit["id"].(string)
	if id == "" {
		t.Fatalf("no batch id in %v", submit)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		req := httptest.NewRequest("GET", "/batch/"+id, nil)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Fatalf("status = %d, body %s", w.Code, w.Body)
		}
		var status map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatal(err)
		}
		if status["status"] == "done" {
			results, _ := status["results"].([]any)
			if len(results) != 2 {
				t.Fatalf("got %d results, want 2", len(results))
			}
			return
		}
		if status["status"] == "failed" {
			t.Fatalf("batch failed: %v", status["error"])
		}
		if time.Now().After(deadline) {
			t.Fatal("batch did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBatchStatusUnknownID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/batch/nope", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var snap map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap["total_slots"] != float64(1) {
		t.Fatalf("total_slots = %v, want 1", snap["total_slots"])
	}
}

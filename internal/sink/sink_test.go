package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s := Load(path, "id", zerolog.Nop())
	if s.Count() != 0 {
		t.Fatalf("Count = %d, want 0", s.Count())
	}
	if s.IsDone(1) {
		t.Fatal("nothing should be done in a fresh sink")
	}
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Load(path, "id", zerolog.Nop())
	if s.Count() != 0 {
		t.Fatalf("Count = %d, want 0 for corrupt checkpoint", s.Count())
	}
}

func TestLoadExistingCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	prior := `[
		{"id": 1, "prompt": "a", "result": "x", "success": true},
		{"id": 2, "prompt": "b", "result": "y", "success": true},
		{"prompt": "no id field", "result": "z", "success": true}
	]`
	if err := os.WriteFile(path, []byte(prior), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Load(path, "id", zerolog.Nop())
	if s.Count() != 3 {
		t.Fatalf("Count = %d, want 3", s.Count())
	}
	// Numeric ids match whether checked as int or as JSON float64.
	if !s.IsDone(1) || !s.IsDone(float64(2)) {
		t.Fatal("checkpointed ids should be done")
	}
	if s.IsDone(3) {
		t.Fatal("id 3 was never completed")
	}
}

func TestAppendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s := Load(path, "id", zerolog.Nop())

	rec := map[string]any{"id": "t-1", "prompt": "p", "result": "r", "success": true}
	if err := s.Append(rec, "t-1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if !s.IsDone("t-1") {
		t.Fatal("appended id should be done")
	}

	// The artifact on disk is the full record set.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read checkpoint: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("checkpoint is not valid JSON: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "t-1" {
		t.Fatalf("unexpected checkpoint contents: %+v", got)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the checkpoint file, found %d entries", len(entries))
	}
}

func TestAppendWithoutPath(t *testing.T) {
	s := Load("", "id", zerolog.Nop())
	if err := s.Append(map[string]any{"id": 7, "success": true}, 7); err != nil {
		t.Fatalf("append: %v", err)
	}
	if s.Count() != 1 || !s.IsDone(7) {
		t.Fatal("in-memory accumulation should work without a checkpoint path")
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	s := Load("", "id", zerolog.Nop())
	_ = s.Append(map[string]any{"id": 1}, 1)

	recs := s.Records()
	recs[0] = nil
	if s.Records()[0] == nil {
		t.Fatal("Records must not expose internal storage")
	}
}

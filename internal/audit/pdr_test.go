package audit

import (
	"path/filepath"
	"testing"

	"github.com/fentz26/studyplan/internal/store"
)

func TestRecord_HashesInputs(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	w := NewPDRWriter(s)
	a, err := w.Record("task.status", map[string]string{"task_id": "t1", "status": "missed"}, "success", "t1", "")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	b, _ := w.Record("task.status", map[string]string{"task_id": "t1", "status": "missed"}, "success", "t1", "")
	c, _ := w.Record("task.status", map[string]string{"task_id": "t1", "status": "completed"}, "success", "t1", "")

	if a.InputsHash != b.InputsHash {
		t.Error("Expected identical inputs to hash identically")
	}
	if a.InputsHash == c.InputsHash {
		t.Error("Expected different inputs to hash differently")
	}
	if len(a.InputsHash) != 64 {
		t.Errorf("Expected hex sha256, got %q", a.InputsHash)
	}

	entries, _ := s.ListPDR(10)
	if len(entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(entries))
	}
}

func TestHashInputs_Unmarshalable(t *testing.T) {
	if got := hashInputs(make(chan int)); got != "hash_error" {
		t.Errorf("Expected hash_error, got %q", got)
	}
}

package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("STUDYPLAN_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STUDYPLAN_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL failed: %v", err)
	}
	// A unique prefix keeps parallel runs apart.
	s := New(redis.NewClient(opts), "studyplan-test:"+uuid.New().String()+":")
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	t.Cleanup(func() {
		s.Delete(context.Background(), "a", "b", "pdr")
		s.Close()
	})
	return s
}

func TestRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Write(ctx, map[string]string{"a": "1", "b": `{"x":2}`}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := s.Read(ctx, "a", "b", "missing")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 2 || got["b"] != `{"x":2}` {
		t.Errorf("unexpected records: %v", got)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ = s.Read(ctx, "a")
	if len(got) != 0 {
		t.Errorf("Expected a to be deleted, got %v", got)
	}
}

func TestWritePDR_IsCapped(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.WritePDR("task.status", "hash", "success", "t1", ""); err != nil {
			t.Fatalf("WritePDR failed: %v", err)
		}
	}
	n, err := s.client.LLen(context.Background(), s.key("pdr")).Result()
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 entries, got %d", n)
	}
}

func TestListPDR_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	s.WritePDR("plan.generate", "hash", "success", "", "")
	last, err := s.WritePDR("task.delete", "hash", "success", "t9", "")
	if err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}

	entries, err := s.ListPDR(1)
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != last.ID || entries[0].TaskID != "t9" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if entries, _ := s.ListPDR(0); len(entries) != 0 {
		t.Errorf("Expected no entries for limit 0, got %d", len(entries))
	}
}

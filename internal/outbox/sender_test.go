package outbox

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/orderbot/internal/order"
	"github.com/matheus3301/orderbot/internal/store"
	"go.uber.org/zap"
)

// mockMirror records calls and returns a configurable error.
type mockMirror struct {
	calls []string
	err   error
}

func (m *mockMirror) AppendOrder(_ context.Context, a *order.Accepted) error {
	m.calls = append(m.calls, a.ID)
	return m.err
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sample(id string) *order.Accepted {
	return &order.Accepted{
		ID:        id,
		Date:      "06/03/24 04:30",
		ChatTitle: "Bake Sale",
		Sender:    "bob",
		Orders:    []order.Parsed{{CustomerName: "Alice", Items: []order.Item{{Name: "tea", Quantity: 2}}}},
	}
}

func TestSenderRetriesQueuedOrders(t *testing.T) {
	db := testDB(t)
	mirror := &mockMirror{}
	s := NewSender(db, mirror, zap.NewNop())
	ctx := context.Background()

	if err := s.Enqueue(ctx, sample("o1")); err != nil {
		t.Fatal(err)
	}
	s.ProcessPending(ctx)

	if len(mirror.calls) != 1 || mirror.calls[0] != "o1" {
		t.Fatalf("mirror calls = %v, want [o1]", mirror.calls)
	}
	pending, err := db.PendingMirror(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 after successful retry", len(pending))
	}
}

func TestSenderGivesUpAfterMaxAttempts(t *testing.T) {
	db := testDB(t)
	mirror := &mockMirror{err: fmt.Errorf("sheets unavailable")}
	s := NewSender(db, mirror, zap.NewNop())
	s.MaxAttempts = 2
	ctx := context.Background()

	if err := s.Enqueue(ctx, sample("o1")); err != nil {
		t.Fatal(err)
	}

	s.ProcessPending(ctx)
	pending, _ := db.PendingMirror(ctx, 10)
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("after first failure pending = %+v", pending)
	}

	s.ProcessPending(ctx)
	s.ProcessPending(ctx)
	if len(mirror.calls) != 2 {
		t.Errorf("mirror calls = %d, want 2", len(mirror.calls))
	}
	pending, _ = db.PendingMirror(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 once attempts are exhausted", len(pending))
	}
}

func TestSenderLoop(t *testing.T) {
	db := testDB(t)
	mirror := &mockMirror{}
	s := NewSender(db, mirror, zap.NewNop())
	s.Interval = 20 * time.Millisecond
	ctx := context.Background()

	if err := s.Enqueue(ctx, sample("o1")); err != nil {
		t.Fatal(err)
	}

	s.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pending, err := db.PendingMirror(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if len(mirror.calls) != 1 {
		t.Errorf("mirror calls = %d, want 1", len(mirror.calls))
	}
}

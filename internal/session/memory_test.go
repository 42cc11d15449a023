package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryEnsureIsIdempotent(t *testing.T) {
	m := NewMemoryStore()

	if err := m.Ensure("s1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := m.AddTurn("s1", ConversationTurn{Prompt: "p", Response: "r"}); err != nil {
		t.Fatalf("add turn: %v", err)
	}
	if err := m.Ensure("s1"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	s, err := m.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s == nil {
		t.Fatalf("expected session")
	}
	if len(s.Turns) != 1 {
		t.Fatalf("ensure must not clear turns, got %d", len(s.Turns))
	}
}

func TestMemoryGetUnknownReturnsNil(t *testing.T) {
	m := NewMemoryStore()
	s, err := m.Get("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil for unknown id, got %+v", s)
	}
}

func TestMemoryAddTurnPreservesOrder(t *testing.T) {
	m := NewMemoryStore()
	for i := 0; i < 10; i++ {
		err := m.AddTurn("s1", ConversationTurn{
			Prompt:   fmt.Sprintf("prompt-%d", i),
			Response: fmt.Sprintf("response-%d", i),
		})
		if err != nil {
			t.Fatalf("add turn %d: %v", i, err)
		}
	}

	s, err := m.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(s.Turns) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(s.Turns))
	}
	for i, turn := range s.Turns {
		if turn.Prompt != fmt.Sprintf("prompt-%d", i) {
			t.Fatalf("turn %d out of order: %q", i, turn.Prompt)
		}
	}
}

func TestMemoryResetClearsTurnsAndHandle(t *testing.T) {
	m := NewMemoryStore()
	if err := m.AddTurn("s1", ConversationTurn{Prompt: "p", Response: "r"}); err != nil {
		t.Fatalf("add turn: %v", err)
	}
	if err := m.SetNativeID("s1", "native-123"); err != nil {
		t.Fatalf("set native id: %v", err)
	}

	before, _ := m.Get("s1")

	if err := m.Reset("s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	s, err := m.Get("s1")
	if err != nil {
		t.Fatalf("get after reset: %v", err)
	}
	if len(s.Turns) != 0 {
		t.Fatalf("expected zero turns after reset, got %d", len(s.Turns))
	}
	if s.NativeID != "" {
		t.Fatalf("expected cleared native id, got %q", s.NativeID)
	}
	if s.ID != "s1" || !s.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("reset must preserve id and creation time")
	}

	handle, err := m.NativeID("s1")
	if err != nil {
		t.Fatalf("native id: %v", err)
	}
	if handle != "" {
		t.Fatalf("expected empty handle after reset, got %q", handle)
	}
}

func TestMemoryResetUnknownIsNoOp(t *testing.T) {
	m := NewMemoryStore()
	if err := m.Reset("ghost"); err != nil {
		t.Fatalf("reset unknown: %v", err)
	}
	sums, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sums) != 0 {
		t.Fatalf("reset must not create sessions, got %d", len(sums))
	}
}

func TestMemoryCreateGeneratesUniqueIDs(t *testing.T) {
	m := NewMemoryStore()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := m.Create()
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if id == "" || seen[id] {
			t.Fatalf("expected unique non-empty id, got %q", id)
		}
		seen[id] = true
	}
}

func TestMemoryListInsertionOrder(t *testing.T) {
	m := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		if err := m.Ensure(id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}
	m.AddTurn("a", ConversationTurn{Prompt: "p", Response: "r"})

	sums, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sums) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sums))
	}
	if sums[0].ID != "c" || sums[1].ID != "a" || sums[2].ID != "b" {
		t.Fatalf("unexpected order: %v", sums)
	}
	if sums[1].TurnCount != 1 {
		t.Fatalf("expected turn count 1 for a, got %d", sums[1].TurnCount)
	}
}

func TestMemoryAccessRefreshesLastAccessed(t *testing.T) {
	m := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	m.now = func() time.Time { return current }

	m.Ensure("s1")
	current = base.Add(time.Hour)
	s, _ := m.Get("s1")
	if !s.LastAccessedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("get must refresh last access, got %v", s.LastAccessedAt)
	}
	if !s.CreatedAt.Equal(base) {
		t.Fatalf("created at must not move, got %v", s.CreatedAt)
	}
}

func TestMemoryConcurrentAddTurnLosesNothing(t *testing.T) {
	m := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.AddTurn("shared", ConversationTurn{
					Prompt:   fmt.Sprintf("w%d-%d", n, j),
					Response: "ok",
				})
			}
		}(i)
	}
	wg.Wait()

	s, err := m.Get("shared")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(s.Turns) != 200 {
		t.Fatalf("expected 200 turns, got %d", len(s.Turns))
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	m.AddTurn("s1", ConversationTurn{Prompt: "p", Response: "r"})

	s, _ := m.Get("s1")
	s.Turns[0].Prompt = "mutated"
	s.NativeID = "mutated"

	again, _ := m.Get("s1")
	if again.Turns[0].Prompt != "p" || again.NativeID != "" {
		t.Fatalf("store state leaked through returned session")
	}
}

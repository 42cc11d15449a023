package session

import (
	"fmt"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := newTestSQLite(t)

	id, err := s.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		err := s.AddTurn(id, ConversationTurn{
			Prompt:   fmt.Sprintf("prompt-%d", i),
			Response: fmt.Sprintf("response-%d", i),
		})
		if err != nil {
			t.Fatalf("add turn %d: %v", i, err)
		}
	}
	if err := s.SetNativeID(id, "native-abc"); err != nil {
		t.Fatalf("set native id: %v", err)
	}

	sess, err := s.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess == nil {
		t.Fatalf("expected session %s", id)
	}
	if len(sess.Turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(sess.Turns))
	}
	for i, turn := range sess.Turns {
		if turn.Prompt != fmt.Sprintf("prompt-%d", i) {
			t.Fatalf("turn %d out of order: %q", i, turn.Prompt)
		}
	}
	if sess.NativeID != "native-abc" {
		t.Fatalf("expected native id to persist, got %q", sess.NativeID)
	}
}

func TestSQLiteResetClearsState(t *testing.T) {
	s := newTestSQLite(t)

	if err := s.AddTurn("s1", ConversationTurn{Prompt: "p", Response: "r"}); err != nil {
		t.Fatalf("add turn: %v", err)
	}
	if err := s.SetNativeID("s1", "h1"); err != nil {
		t.Fatalf("set native id: %v", err)
	}
	if err := s.Reset("s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	sess, err := s.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.Turns) != 0 || sess.NativeID != "" {
		t.Fatalf("reset left state behind: %d turns, handle %q", len(sess.Turns), sess.NativeID)
	}
}

func TestSQLiteUnknownIDsAreLenient(t *testing.T) {
	s := newTestSQLite(t)

	sess, err := s.Get("ghost")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session, got %+v", sess)
	}
	if err := s.Reset("ghost"); err != nil {
		t.Fatalf("reset unknown: %v", err)
	}
	handle, err := s.NativeID("ghost")
	if err != nil {
		t.Fatalf("native id unknown: %v", err)
	}
	if handle != "" {
		t.Fatalf("expected empty handle, got %q", handle)
	}
}

func TestSQLiteListCountsTurns(t *testing.T) {
	s := newTestSQLite(t)

	s.Ensure("first")
	s.AddTurn("second", ConversationTurn{Prompt: "p", Response: "r"})
	s.AddTurn("second", ConversationTurn{Prompt: "p2", Response: "r2"})

	sums, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sums))
	}
	if sums[0].ID != "first" || sums[0].TurnCount != 0 {
		t.Fatalf("unexpected first summary: %+v", sums[0])
	}
	if sums[1].ID != "second" || sums[1].TurnCount != 2 {
		t.Fatalf("unexpected second summary: %+v", sums[1])
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSQLite(Config{DataDir: dir})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.AddTurn("s1", ConversationTurn{Prompt: "p", Response: "r"}); err != nil {
		t.Fatalf("add turn: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLite(Config{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	sess, err := reopened.Get("s1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if sess == nil || len(sess.Turns) != 1 {
		t.Fatalf("expected persisted turn after reopen")
	}
}

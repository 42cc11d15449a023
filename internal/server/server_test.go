package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
)

func newTestServer(t *testing.T) (*Server, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	return New(store, 0), store
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			// list endpoints return arrays; callers decode those themselves
			decoded = nil
		}
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["service"] != "claude-mcp-server" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestCreateSessionGeneratesID(t *testing.T) {
	srv, store := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodPost, "/sessions", "{}")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("expected generated id, got %v", body)
	}
	sess, _ := store.Get(id)
	if sess == nil {
		t.Fatalf("created session missing from store")
	}
}

func TestCreateSessionWithExplicitID(t *testing.T) {
	srv, store := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodPost, "/sessions", `{"id":"mine"}`)
	if rec.Code != http.StatusCreated || body["id"] != "mine" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if sess, _ := store.Get("mine"); sess == nil {
		t.Fatalf("explicit session missing from store")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodGet, "/sessions/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetSessionReturnsTurns(t *testing.T) {
	srv, store := newTestServer(t)
	store.AddTurn("s1", session.ConversationTurn{Prompt: "p", Response: "r"})

	rec, _ := doJSON(t, srv, http.MethodGet, "/sessions/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sess session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.ID != "s1" || len(sess.Turns) != 1 {
		t.Fatalf("unexpected session payload: %+v", sess)
	}
}

func TestResetSession(t *testing.T) {
	srv, store := newTestServer(t)
	store.AddTurn("s1", session.ConversationTurn{Prompt: "p", Response: "r"})
	store.SetNativeID("s1", "h")

	rec, body := doJSON(t, srv, http.MethodPost, "/sessions/s1/reset", "")
	if rec.Code != http.StatusOK || body["status"] != "reset" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}

	sess, _ := store.Get("s1")
	if len(sess.Turns) != 0 || sess.NativeID != "" {
		t.Fatalf("reset did not clear session state")
	}
}

func TestListSessionsWithLimit(t *testing.T) {
	srv, store := newTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		store.Ensure(id)
	}

	rec, _ := doJSON(t, srv, http.MethodGet, "/sessions?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sums []session.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sums); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(sums) != 2 || sums[0].ID != "b" || sums[1].ID != "c" {
		t.Fatalf("unexpected limited list: %+v", sums)
	}
}

func TestStats(t *testing.T) {
	srv, store := newTestServer(t)
	store.AddTurn("s1", session.ConversationTurn{Prompt: "p", Response: "r"})
	store.AddTurn("s1", session.ConversationTurn{Prompt: "p2", Response: "r2"})
	store.Ensure("s2")

	rec, body := doJSON(t, srv, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["total_sessions"] != float64(2) || body["total_turns"] != float64(2) {
		t.Fatalf("unexpected stats: %v", body)
	}
}

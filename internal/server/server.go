// Package server provides the localhost HTTP API for claude-mcp-server.
//
// MCP stdio is the primary transport; this is the read/admin plane — editor
// plugins and scripts can inspect or reset sessions without speaking MCP.
// Simple JSON REST API.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
)

type Server struct {
	store  session.Store
	mux    *http.ServeMux
	port   int
	listen func(network, address string) (net.Listener, error)
	serve  func(net.Listener, http.Handler) error
}

func New(s session.Store, port int) *Server {
	srv := &Server{store: s, port: port, listen: net.Listen, serve: http.Serve}
	srv.mux = http.NewServeMux()
	srv.routes()
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listenFn := s.listen
	if listenFn == nil {
		listenFn = net.Listen
	}
	serveFn := s.serve
	if serveFn == nil {
		serveFn = http.Serve
	}

	ln, err := listenFn("tcp", addr)
	if err != nil {
		return fmt.Errorf("claude-mcp server: listen %s: %w", addr, err)
	}
	log.Printf("[claude-mcp] HTTP server listening on %s", addr)
	return serveFn(ln, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Sessions
	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /sessions/{id}/reset", s.handleResetSession)

	// Stats
	s.mux.HandleFunc("GET /stats", s.handleStats)
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "claude-mcp-server",
		"version": "0.1.0",
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sums, err := s.store.List()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	limit := queryInt(r, "limit", 0)
	if limit > 0 && len(sums) > limit {
		sums = sums[len(sums)-limit:]
	}
	if sums == nil {
		sums = []session.Summary{}
	}
	jsonResponse(w, http.StatusOK, sums)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	// An empty body means "generate an id for me".
	json.NewDecoder(r.Body).Decode(&body)

	id := body.ID
	if id == "" {
		created, err := s.store.Create()
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		id = created
	} else if err := s.store.Ensure(id); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{"id": id, "status": "created"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.store.Get(id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		jsonError(w, http.StatusNotFound, "session not found")
		return
	}

	jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.Reset(id); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"id": id, "status": "reset"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sums, err := s.store.List()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	totalTurns := 0
	for _, sm := range sums {
		totalTurns += sm.TurnCount
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"total_sessions": len(sums),
		"total_turns":    totalTurns,
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// Package session tracks multi-turn conversations with the Claude CLI.
//
// A Session is keyed by an opaque identifier chosen by the caller (or
// generated). Each completed invocation appends one ConversationTurn, and a
// session may carry a native conversation id — the handle the claude binary
// itself hands back so a later call can resume its internal state instead of
// reconstructing context manually.
//
// Two Store implementations exist: an in-memory store for a single server
// process, and a sqlite-backed store when transcripts should survive
// restarts (and feed the TUI / sync tooling).
package session

import "time"

// ConversationTurn is one prompt/response pair. Immutable once appended.
type ConversationTurn struct {
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversation state for one identifier.
type Session struct {
	ID             string             `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	Turns          []ConversationTurn `json:"turns"`

	// NativeID is the resumable conversation handle issued by the claude
	// binary. Empty until the first successful fresh invocation returns one.
	NativeID string `json:"native_id,omitempty"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	TurnCount      int       `json:"turn_count"`
}

// Store is the session registry. Operations on unknown ids are lenient:
// Ensure and AddTurn auto-create, Reset is a no-op, Get returns nil. The
// in-memory store never returns an error; the sqlite store surfaces I/O
// failures.
//
// Store implementations must be safe for concurrent use. Individual
// mutations are serialized, but no ordering is imposed between two in-flight
// calls targeting the same id — turns may interleave, none are lost.
type Store interface {
	// Create inserts an empty session under a fresh generated id.
	Create() (string, error)

	// Ensure inserts an empty session for id if absent, otherwise only
	// refreshes LastAccessedAt.
	Ensure(id string) error

	// Get returns a copy of the session, or nil if absent. A hit refreshes
	// LastAccessedAt.
	Get(id string) (*Session, error)

	// Reset clears turns and the native handle, preserving the id and
	// CreatedAt. A reset session never silently resumes stale assistant-side
	// state.
	Reset(id string) error

	// AddTurn appends a turn, creating the session first if missing.
	AddTurn(id string, turn ConversationTurn) error

	// SetNativeID records the resumable handle for a session.
	SetNativeID(id, handle string) error

	// NativeID returns the stored handle, or "" when absent.
	NativeID(id string) (string, error)

	// List returns summaries in insertion order.
	List() ([]Summary, error)

	Close() error
}

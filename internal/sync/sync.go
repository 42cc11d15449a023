// Package sync implements git-friendly transcript sharing for claude-mcp-server.
//
// Session transcripts are exported as compressed JSON chunks with a manifest
// index, so a team can commit .claude-mcp/ to a repo and pool conversation
// history. Each export creates a NEW chunk, never modifies old ones, which
// keeps merges conflict-free; imported chunk ids are tracked locally so
// nothing is replayed twice.
//
// Directory structure:
//
//	.claude-mcp/
//	├── manifest.json          ← index of all chunks (small, mergeable)
//	└── chunks/
//	    ├── a3f8c1d2.json.gz   ← chunk 1 (compressed)
//	    └── ...
//
// Native conversation handles are never exported: another machine cannot
// resume this machine's assistant-side state.
package sync

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
)

// ─── Manifest ────────────────────────────────────────────────────────────────

// Manifest is the index file that lists all chunks. It is the only file git
// needs to diff/merge — small and append-only.
type Manifest struct {
	Version int          `json:"version"`
	Chunks  []ChunkEntry `json:"chunks"`
}

// ChunkEntry describes a single chunk in the manifest.
type ChunkEntry struct {
	ID        string `json:"id"`         // SHA-256 hash prefix (8 chars) of content
	CreatedBy string `json:"created_by"` // Username or machine identifier
	CreatedAt string `json:"created_at"` // RFC3339 timestamp
	Sessions  int    `json:"sessions"`
	Turns     int    `json:"turns"`
}

// ChunkData is the content of a single chunk file.
type ChunkData struct {
	Sessions []session.Session `json:"sessions"`
}

// ExportResult is returned after an export.
type ExportResult struct {
	ChunkID          string `json:"chunk_id,omitempty"`
	SessionsExported int    `json:"sessions_exported"`
	TurnsExported    int    `json:"turns_exported"`
	IsEmpty          bool   `json:"is_empty"`
}

// ImportResult is returned after importing chunks.
type ImportResult struct {
	ChunksImported   int `json:"chunks_imported"`
	ChunksSkipped    int `json:"chunks_skipped"`
	SessionsImported int `json:"sessions_imported"`
	TurnsImported    int `json:"turns_imported"`
}

// ─── Syncer ──────────────────────────────────────────────────────────────────

// Syncer exports and imports transcript chunks. syncDir is the shared
// .claude-mcp/ directory in the project repo; stateDir holds the local
// record of which chunk ids this machine has already absorbed.
type Syncer struct {
	store    session.Store
	syncDir  string
	stateDir string
}

func New(s session.Store, syncDir, stateDir string) *Syncer {
	return &Syncer{store: s, syncDir: syncDir, stateDir: stateDir}
}

// ─── Export (store → chunks) ─────────────────────────────────────────────────

// Export creates a new chunk with turns not yet covered by any chunk.
func (sy *Syncer) Export(createdBy string) (*ExportResult, error) {
	chunksDir := filepath.Join(sy.syncDir, "chunks")
	if err := os.MkdirAll(chunksDir, 0755); err != nil {
		return nil, fmt.Errorf("create chunks dir: %w", err)
	}

	manifest, err := sy.readManifest()
	if err != nil {
		return nil, err
	}

	known, err := sy.loadState()
	if err != nil {
		return nil, err
	}
	for _, c := range manifest.Chunks {
		known[c.ID] = true
	}

	snapshot, err := sy.snapshot()
	if err != nil {
		return nil, err
	}

	chunk := filterNewData(snapshot, lastChunkTime(manifest))
	turns := countTurns(chunk)
	if len(chunk.Sessions) == 0 {
		return &ExportResult{IsEmpty: true}, nil
	}

	chunkJSON, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("marshal chunk: %w", err)
	}

	hash := sha256.Sum256(chunkJSON)
	chunkID := hex.EncodeToString(hash[:])[:8]
	if known[chunkID] {
		return &ExportResult{IsEmpty: true}, nil
	}

	chunkPath := filepath.Join(chunksDir, chunkID+".json.gz")
	if err := writeGzip(chunkPath, chunkJSON); err != nil {
		return nil, fmt.Errorf("write chunk: %w", err)
	}

	manifest.Chunks = append(manifest.Chunks, ChunkEntry{
		ID:        chunkID,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Sessions:  len(chunk.Sessions),
		Turns:     turns,
	})
	if err := sy.writeManifest(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := sy.recordChunk(chunkID); err != nil {
		return nil, fmt.Errorf("record chunk: %w", err)
	}

	return &ExportResult{
		ChunkID:          chunkID,
		SessionsExported: len(chunk.Sessions),
		TurnsExported:    turns,
	}, nil
}

// snapshot reads every session with its turns, dropping native handles.
func (sy *Syncer) snapshot() ([]session.Session, error) {
	sums, err := sy.store.List()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var out []session.Session
	for _, sm := range sums {
		sess, err := sy.store.Get(sm.ID)
		if err != nil {
			return nil, fmt.Errorf("get session %s: %w", sm.ID, err)
		}
		if sess == nil {
			continue
		}
		sess.NativeID = ""
		out = append(out, *sess)
	}
	return out, nil
}

// ─── Import (chunks → store) ─────────────────────────────────────────────────

// Import reads the manifest and replays any chunks not yet absorbed locally.
func (sy *Syncer) Import() (*ImportResult, error) {
	manifest, err := sy.readManifest()
	if err != nil {
		return nil, err
	}
	if len(manifest.Chunks) == 0 {
		return &ImportResult{}, nil
	}

	known, err := sy.loadState()
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	chunksDir := filepath.Join(sy.syncDir, "chunks")

	for _, entry := range manifest.Chunks {
		if known[entry.ID] {
			result.ChunksSkipped++
			continue
		}

		chunkJSON, err := readGzip(filepath.Join(chunksDir, entry.ID+".json.gz"))
		if err != nil {
			// Chunk file missing — maybe deleted or not yet pulled.
			result.ChunksSkipped++
			continue
		}

		var chunk ChunkData
		if err := json.Unmarshal(chunkJSON, &chunk); err != nil {
			return nil, fmt.Errorf("parse chunk %s: %w", entry.ID, err)
		}

		for _, sess := range chunk.Sessions {
			if err := sy.store.Ensure(sess.ID); err != nil {
				return nil, fmt.Errorf("import session %s: %w", sess.ID, err)
			}
			for _, turn := range sess.Turns {
				if err := sy.store.AddTurn(sess.ID, turn); err != nil {
					return nil, fmt.Errorf("import turn for %s: %w", sess.ID, err)
				}
				result.TurnsImported++
			}
			result.SessionsImported++
		}

		if err := sy.recordChunk(entry.ID); err != nil {
			return nil, fmt.Errorf("record chunk %s: %w", entry.ID, err)
		}
		result.ChunksImported++
	}

	return result, nil
}

// Status reports what a sync would do.
func (sy *Syncer) Status() (localChunks, remoteChunks, pendingImport int, err error) {
	manifest, err := sy.readManifest()
	if err != nil {
		return 0, 0, 0, err
	}
	known, err := sy.loadState()
	if err != nil {
		return 0, 0, 0, err
	}

	remoteChunks = len(manifest.Chunks)
	localChunks = len(known)
	for _, entry := range manifest.Chunks {
		if !known[entry.ID] {
			pendingImport++
		}
	}
	return localChunks, remoteChunks, pendingImport, nil
}

// ─── Manifest I/O ────────────────────────────────────────────────────────────

func (sy *Syncer) readManifest() (*Manifest, error) {
	path := filepath.Join(sy.syncDir, "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{Version: 1}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func (sy *Syncer) writeManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(sy.syncDir, "manifest.json"), data, 0644)
}

func lastChunkTime(m *Manifest) time.Time {
	var latest time.Time
	for _, c := range m.Chunks {
		if t, err := time.Parse(time.RFC3339, c.CreatedAt); err == nil && t.After(latest) {
			latest = t
		}
	}
	return latest
}

// ─── Local state ─────────────────────────────────────────────────────────────

func (sy *Syncer) statePath() string {
	return filepath.Join(sy.stateDir, "synced-chunks.json")
}

func (sy *Syncer) loadState() (map[string]bool, error) {
	data, err := os.ReadFile(sy.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

func (sy *Syncer) recordChunk(id string) error {
	known, err := sy.loadState()
	if err != nil {
		return err
	}
	known[id] = true

	ids := make([]string, 0, len(known))
	for k := range known {
		ids = append(ids, k)
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(sy.stateDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(sy.statePath(), data, 0644)
}

// ─── Filtering ───────────────────────────────────────────────────────────────

// filterNewData keeps sessions with turns after the cutoff, trimmed to just
// those turns. A zero cutoff (first sync) takes everything.
func filterNewData(sessions []session.Session, cutoff time.Time) *ChunkData {
	chunk := &ChunkData{}
	for _, sess := range sessions {
		if cutoff.IsZero() {
			if len(sess.Turns) > 0 {
				chunk.Sessions = append(chunk.Sessions, sess)
			}
			continue
		}
		var fresh []session.ConversationTurn
		for _, t := range sess.Turns {
			if t.Timestamp.After(cutoff) {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) > 0 {
			sess.Turns = fresh
			chunk.Sessions = append(chunk.Sessions, sess)
		}
	}
	return chunk
}

func countTurns(chunk *ChunkData) int {
	n := 0
	for _, sess := range chunk.Sessions {
		n += len(sess.Turns)
	}
	return n
}

// ─── Gzip I/O ────────────────────────────────────────────────────────────────

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		return err
	}
	return gz.Close()
}

func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// GetUsername returns the current username for chunk attribution.
func GetUsername() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	hostname, _ := os.Hostname()
	if hostname != "" {
		return hostname
	}
	return "unknown"
}

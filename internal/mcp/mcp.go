// Package mcp implements the Model Context Protocol server for claude-mcp-server.
//
// This exposes the Claude Code CLI as MCP tools over stdio transport so any
// editor or agent integration (Cursor, Windsurf, OpenCode, another Claude
// instance) can invoke the assistant programmatically, with multi-turn
// session continuity handled server-side.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/claude"
	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
	mcppkg "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const maxSessionIDLen = 128

// NewServer assembles the MCP server over an explicitly injected store,
// runner, and config — no ambient singletons, so tests compose their own.
func NewServer(s session.Store, r *claude.Runner, cfg claude.Config) *server.MCPServer {
	srv := server.NewMCPServer(
		"claude-mcp-server",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	registerTools(srv, s, r, cfg)
	return srv
}

func registerTools(srv *server.MCPServer, s session.Store, r *claude.Runner, cfg claude.Config) {
	// ─── claude_execute ──────────────────────────────────────────────
	srv.AddTool(
		mcppkg.NewTool("claude_execute",
			mcppkg.WithDescription("Execute a coding task with the Claude Code CLI. Supply a session_id to get multi-turn continuity: the server resumes Claude's own conversation when it can, and otherwise folds recent turns into the prompt."),
			mcppkg.WithString("task",
				mcppkg.Required(),
				mcppkg.Description("The task or question for Claude"),
			),
			mcppkg.WithString("session_id",
				mcppkg.Description("Conversation identifier. Reuse it across calls for continuity; omit for a one-shot call."),
			),
			mcppkg.WithBoolean("reset",
				mcppkg.Description("Discard the session's history and resumable state before this call"),
			),
			mcppkg.WithString("model",
				mcppkg.Description("Model override (e.g. sonnet, opus, haiku)"),
			),
			mcppkg.WithString("working_directory",
				mcppkg.Description("Directory Claude may read and run in"),
			),
			mcppkg.WithString("allowed_tools",
				mcppkg.Description("Comma-separated Claude tool allowlist (fresh sessions only)"),
			),
			mcppkg.WithBoolean("skip_permissions",
				mcppkg.Description("Bypass Claude's permission prompts (fresh sessions only)"),
			),
			mcppkg.WithString("output_format",
				mcppkg.Description("Claude CLI output format (default: json)"),
			),
			mcppkg.WithNumber("max_turns",
				mcppkg.Description("Cap on Claude's internal agent turns (fresh sessions only)"),
			),
			mcppkg.WithString("base_url",
				mcppkg.Description("Alternate API endpoint for this call only"),
			),
			mcppkg.WithArray("fallbacks",
				mcppkg.Description("Ordered endpoint/model pairs to try on failure (reserved; not yet applied)"),
			),
		),
		handleExecute(s, r, cfg),
	)

	// ─── claude_review ───────────────────────────────────────────────
	srv.AddTool(
		mcppkg.NewTool("claude_review",
			mcppkg.WithDescription("Run a code review with Claude. Reviews uncommitted changes, a commit, or a branch diff. Stateless — review calls never join a session."),
			mcppkg.WithString("prompt",
				mcppkg.Description("Free-text review instructions. Mutually exclusive with uncommitted."),
			),
			mcppkg.WithBoolean("uncommitted",
				mcppkg.Description("Review the uncommitted changes in the working tree"),
			),
			mcppkg.WithString("base_branch",
				mcppkg.Description("Review changes relative to this branch"),
			),
			mcppkg.WithString("commit",
				mcppkg.Description("Review this commit"),
			),
			mcppkg.WithString("title",
				mcppkg.Description("Title of the change under review"),
			),
			mcppkg.WithString("model",
				mcppkg.Description("Model override"),
			),
			mcppkg.WithString("working_directory",
				mcppkg.Description("Repository directory"),
			),
		),
		handleReview(r, cfg),
	)

	// ─── claude_list_sessions ────────────────────────────────────────
	srv.AddTool(
		mcppkg.NewTool("claude_list_sessions",
			mcppkg.WithDescription("List tracked conversation sessions with turn counts and timestamps."),
		),
		handleListSessions(s),
	)

	// ─── claude_ping ─────────────────────────────────────────────────
	srv.AddTool(
		mcppkg.NewTool("claude_ping",
			mcppkg.WithDescription("Liveness check. Echoes the message back without touching the Claude CLI."),
			mcppkg.WithString("message",
				mcppkg.Description("Text to echo (default: pong)"),
			),
		),
		handlePing(),
	)

	// ─── claude_help ─────────────────────────────────────────────────
	srv.AddTool(
		mcppkg.NewTool("claude_help",
			mcppkg.WithDescription("Show the Claude CLI's own --help output."),
		),
		handleHelp(r),
	)
}

// ─── Tool Handlers ───────────────────────────────────────────────────────────

func handleExecute(s session.Store, r *claude.Runner, cfg claude.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error) {
		inv, err := parseExecuteRequest(req)
		if err != nil {
			return toolFailure("claude_execute", err), nil
		}

		// Session lifecycle happens before mode selection: the native handle
		// is looked up after any reset, so a reset call never resumes stale
		// assistant-side state.
		var nativeID string
		if inv.SessionID != "" {
			if err := s.Ensure(inv.SessionID); err != nil {
				return toolFailure("claude_execute", err), nil
			}
			if inv.Reset {
				if err := s.Reset(inv.SessionID); err != nil {
					return toolFailure("claude_execute", err), nil
				}
			}
			nativeID, err = s.NativeID(inv.SessionID)
			if err != nil {
				return toolFailure("claude_execute", err), nil
			}
		}

		task := inv.Task
		if inv.SessionID != "" && nativeID == "" {
			sess, err := s.Get(inv.SessionID)
			if err != nil {
				return toolFailure("claude_execute", err), nil
			}
			if sess != nil && len(sess.Turns) > 0 {
				task = claude.Synthesize(sess.Turns, inv.Task)
			}
		}

		model := cfg.ResolveModel(inv.Model)
		args := claude.BuildArgs(task, inv, model, nativeID)

		opts := claude.RunOptions{Dir: inv.WorkDir}
		if inv.BaseURL != "" {
			opts.Env = map[string]string{claude.EnvBaseURL: inv.BaseURL}
		}
		if token := progressToken(req); token != nil {
			opts.OnChunk = progressSink(ctx, token)
		}

		res, err := r.Run(ctx, args, opts)
		if err != nil {
			return toolFailure("claude_execute", err), nil
		}

		if inv.SessionID != "" {
			if err := s.AddTurn(inv.SessionID, session.ConversationTurn{
				Prompt:   inv.Task,
				Response: res.Text,
			}); err != nil {
				return toolFailure("claude_execute", err), nil
			}
			// Resume mode keeps the existing handle; only a fresh call may
			// install one.
			if nativeID == "" && res.NativeID != "" {
				if err := s.SetNativeID(inv.SessionID, res.NativeID); err != nil {
					return toolFailure("claude_execute", err), nil
				}
			}
		}

		return executeResult(res.Text, model, inv.SessionID, cfg), nil
	}
}

func handleReview(r *claude.Runner, cfg claude.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error) {
		args := req.GetArguments()
		prompt, _ := args["prompt"].(string)
		uncommitted, _ := args["uncommitted"].(bool)
		baseBranch, _ := args["base_branch"].(string)
		commit, _ := args["commit"].(string)
		title, _ := args["title"].(string)
		model, _ := args["model"].(string)
		workDir, _ := args["working_directory"].(string)

		task, err := buildReviewPrompt(prompt, uncommitted, baseBranch, commit, title)
		if err != nil {
			return toolFailure("claude_review", err), nil
		}

		resolved := cfg.ResolveModel(model)
		cliArgs := claude.BuildArgs(task, claude.Request{WorkDir: workDir}, resolved, "")

		res, err := r.Run(ctx, cliArgs, claude.RunOptions{Dir: workDir})
		if err != nil {
			return toolFailure("claude_review", err), nil
		}

		return executeResult(res.Text, resolved, "", cfg), nil
	}
}

func handleListSessions(s session.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error) {
		sums, err := s.List()
		if err != nil {
			return toolFailure("claude_list_sessions", err), nil
		}
		if len(sums) == 0 {
			return mcppkg.NewToolResultText("No sessions tracked."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d sessions:\n\n", len(sums))
		for i, sm := range sums {
			fmt.Fprintf(&b, "[%d] %s — %d turns\n    created %s, last used %s\n",
				i+1, sm.ID, sm.TurnCount,
				sm.CreatedAt.Format("2006-01-02 15:04:05"),
				sm.LastAccessedAt.Format("2006-01-02 15:04:05"))
		}
		return mcppkg.NewToolResultText(b.String()), nil
	}
}

func handlePing() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error) {
		msg, _ := req.GetArguments()["message"].(string)
		if msg == "" {
			msg = "pong"
		}
		return mcppkg.NewToolResultText(msg), nil
	}
}

func handleHelp(r *claude.Runner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error) {
		res, err := r.Run(ctx, []string{"--help"}, claude.RunOptions{})
		if err != nil {
			return toolFailure("claude_help", err), nil
		}
		return mcppkg.NewToolResultText(res.Text), nil
	}
}

// ─── Request parsing ─────────────────────────────────────────────────────────

func parseExecuteRequest(req mcppkg.CallToolRequest) (claude.Request, error) {
	args := req.GetArguments()

	inv := claude.Request{}
	inv.Task, _ = args["task"].(string)
	if strings.TrimSpace(inv.Task) == "" {
		return inv, claude.Validationf("task is required")
	}

	inv.SessionID, _ = args["session_id"].(string)
	if err := validateSessionID(inv.SessionID); err != nil {
		return inv, err
	}
	inv.Reset, _ = args["reset"].(bool)
	inv.Model, _ = args["model"].(string)
	inv.WorkDir, _ = args["working_directory"].(string)
	inv.AllowedTools, _ = args["allowed_tools"].(string)
	inv.SkipPermissions, _ = args["skip_permissions"].(bool)
	inv.OutputFormat, _ = args["output_format"].(string)
	inv.MaxTurns = intArg(req, "max_turns", 0)
	inv.BaseURL, _ = args["base_url"].(string)
	inv.Fallbacks = fallbacksArg(args["fallbacks"])

	return inv, nil
}

func validateSessionID(id string) error {
	if id == "" {
		return nil
	}
	if len(id) > maxSessionIDLen {
		return claude.Validationf("session_id exceeds %d characters", maxSessionIDLen)
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return claude.Validationf("session_id contains invalid character %q", c)
		}
	}
	return nil
}

func buildReviewPrompt(prompt string, uncommitted bool, baseBranch, commit, title string) (string, error) {
	if prompt != "" && uncommitted {
		return "", claude.Validationf("prompt and uncommitted are mutually exclusive: free-text instructions only apply to commit or branch reviews")
	}

	var parts []string
	switch {
	case uncommitted:
		parts = append(parts, "Review the uncommitted changes in the working tree.")
	case commit != "":
		parts = append(parts, fmt.Sprintf("Review commit %s.", commit))
	case baseBranch != "":
		parts = append(parts, fmt.Sprintf("Review the changes relative to branch %s.", baseBranch))
	default:
		parts = append(parts, "Review the current changes.")
	}
	if title != "" {
		parts = append(parts, fmt.Sprintf("The change is titled %q.", title))
	}
	if prompt != "" {
		parts = append(parts, prompt)
	}
	return strings.Join(parts, " "), nil
}

// ─── Responses ───────────────────────────────────────────────────────────────

// executeResult emits the dual-channel envelope: the human-readable text,
// a metadata content item, and — gated by config — the same metadata as
// structured content. Different clients read metadata from different places.
func executeResult(text, model, sessionID string, cfg claude.Config) *mcppkg.CallToolResult {
	meta := map[string]any{"model": model}
	if sessionID != "" {
		meta["session_id"] = sessionID
	}
	metaJSON, _ := json.Marshal(meta)

	res := &mcppkg.CallToolResult{
		Content: []mcppkg.Content{
			mcppkg.NewTextContent(text),
			mcppkg.NewTextContent(string(metaJSON)),
		},
	}
	if cfg.StructuredMetadata {
		res.StructuredContent = meta
	}
	return res
}

// toolFailure converts an error into the tool result taxonomy: validation
// failures pass through verbatim, execution failures carry the operation
// name plus the underlying cause.
func toolFailure(tool string, err error) *mcppkg.CallToolResult {
	var ve *claude.ValidationError
	if errors.As(err, &ve) {
		return mcppkg.NewToolResultError(ve.Message)
	}
	var te *claude.ToolExecutionError
	if errors.As(err, &te) {
		return mcppkg.NewToolResultError(te.Error())
	}
	return mcppkg.NewToolResultError(claude.Execution(tool, err).Error())
}

// ─── Progress ────────────────────────────────────────────────────────────────

func progressToken(req mcppkg.CallToolRequest) any {
	if req.Params.Meta == nil {
		return nil
	}
	return req.Params.Meta.ProgressToken
}

// progressSink forwards each output chunk upstream as a progress
// notification. Delivery failures are ignored; progress is advisory.
func progressSink(ctx context.Context, token any) func(string) {
	srv := server.ServerFromContext(ctx)
	n := 0
	return func(chunk string) {
		n++
		if srv == nil {
			return
		}
		_ = srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      n,
			"message":       chunk,
		})
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func intArg(req mcppkg.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func fallbacksArg(raw any) []claude.Fallback {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []claude.Fallback
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fb := claude.Fallback{}
		fb.BaseURL, _ = m["base_url"].(string)
		fb.Model, _ = m["model"].(string)
		if fb.BaseURL != "" || fb.Model != "" {
			out = append(out, fb)
		}
	}
	return out
}

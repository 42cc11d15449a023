package claude

import "strconv"

// DefaultOutputFormat is assumed when a request does not pick one.
// Downstream result extraction expects structured output when possible.
const DefaultOutputFormat = "json"

// Fallback is an alternate endpoint/model pair. Declared in the tool schema
// for forward compatibility; no retry control flow consumes it.
type Fallback struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// Request holds the validated parameters of a single invocation. Transient;
// never persisted.
type Request struct {
	Task            string
	SessionID       string
	Reset           bool
	Model           string
	WorkDir         string
	AllowedTools    string
	SkipPermissions bool
	OutputFormat    string
	MaxTurns        int
	BaseURL         string
	Fallbacks       []Fallback
}

// BuildArgs maps a request onto the claude CLI argument list. task is the
// final prompt text (possibly synthesized), model the already-resolved model,
// and nativeID the resumable handle looked up after any reset — non-empty
// selects resume mode.
//
// Resume mode never emits max-turns, permission-bypass, or allowlist flags:
// those only apply when a conversation is initialized. Changing that is a
// behavioral decision, not a cleanup.
func BuildArgs(task string, req Request, model, nativeID string) []string {
	format := req.OutputFormat
	if format == "" {
		format = DefaultOutputFormat
	}

	args := []string{task}
	if nativeID != "" {
		args = append(args, "--resume", nativeID)
		args = append(args, "--model", model)
		args = append(args, "--output-format", format)
		if req.WorkDir != "" {
			args = append(args, "--add-dir", req.WorkDir)
		}
		return args
	}

	args = append(args, "--model", model)
	args = append(args, "--output-format", format)
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}
	if req.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if req.AllowedTools != "" {
		args = append(args, "--allowedTools", req.AllowedTools)
	}
	if req.WorkDir != "" {
		args = append(args, "--add-dir", req.WorkDir)
	}
	return args
}

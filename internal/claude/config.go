// Package claude turns validated tool requests into invocations of the
// Claude Code CLI: it decides resume-vs-fresh mode, builds the exact
// argument list, synthesizes bounded context when no resumable handle
// exists, and runs the binary buffered or streaming.
package claude

import (
	"os"
	"strconv"
)

const (
	// DefaultCLIName is the binary looked up on PATH when no override is set.
	DefaultCLIName = "claude"

	// FallbackModel is the hardcoded last resort of the model precedence
	// chain: request model > CLAUDE_MCP_DEFAULT_MODEL > this.
	FallbackModel = "sonnet"

	EnvCLIPath            = "CLAUDE_CLI_PATH"
	EnvDefaultModel       = "CLAUDE_MCP_DEFAULT_MODEL"
	EnvStructuredMetadata = "CLAUDE_MCP_STRUCTURED_METADATA"

	// EnvBaseURL is the variable the claude binary reads for an alternate
	// API endpoint. Set per call via the runner's env overrides, never on
	// this process.
	EnvBaseURL = "ANTHROPIC_BASE_URL"
)

// Config is resolved once at composition time so handlers never read the
// environment ad hoc and tests can set fields directly.
type Config struct {
	// CLIPath is the claude binary (name or absolute path).
	CLIPath string

	// DefaultModel is used when a request carries no model. Empty means
	// FallbackModel.
	DefaultModel string

	// StructuredMetadata gates duplicating response metadata into the tool
	// result's structured-content field. Some MCP clients read metadata only
	// from there; one known client mishandles it, hence the toggle.
	StructuredMetadata bool
}

// FromEnv builds a Config from the process environment.
func FromEnv() Config {
	cfg := Config{
		CLIPath:      DefaultCLIName,
		DefaultModel: os.Getenv(EnvDefaultModel),
	}
	if p := os.Getenv(EnvCLIPath); p != "" {
		cfg.CLIPath = p
	}
	if v := os.Getenv(EnvStructuredMetadata); v != "" {
		b, err := strconv.ParseBool(v)
		cfg.StructuredMetadata = err == nil && b
	}
	return cfg
}

// ResolveModel applies the model precedence chain.
func (c Config) ResolveModel(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.DefaultModel != "" {
		return c.DefaultModel
	}
	return FallbackModel
}

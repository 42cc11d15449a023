// Package setup registers claude-mcp-server with MCP clients.
//
// - Claude Code: runs `claude mcp add` so the client launches us over stdio
// - OpenCode: writes an mcp entry into ~/.config/opencode/opencode.json
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const serverName = "claude-mcp"

// Agent represents a supported MCP client.
type Agent struct {
	Name        string
	Description string
	InstallDir  string // resolved at runtime (display only for claude-code)
}

// Result holds the outcome of a registration.
type Result struct {
	Agent       string
	Destination string
	Files       int
}

// Stubbed in tests.
var (
	lookPath   = exec.LookPath
	runCommand = func(bin string, args ...string) (string, error) {
		out, err := exec.Command(bin, args...).CombinedOutput()
		return strings.TrimSpace(string(out)), err
	}
)

// SupportedAgents returns the list of clients this server can register with.
func SupportedAgents() []Agent {
	return []Agent{
		{
			Name:        "claude-code",
			Description: "Claude Code — registered via `claude mcp add` (stdio transport)",
			InstallDir:  "managed by claude mcp system",
		},
		{
			Name:        "opencode",
			Description: "OpenCode — mcp entry written to the opencode config file",
			InstallDir:  openCodeConfigDir(),
		},
	}
}

// Install registers this server with the given client. binPath is the
// claude-mcp-server executable the client should launch.
func Install(agentName, binPath string) (*Result, error) {
	switch agentName {
	case "claude-code":
		return installClaudeCode(binPath)
	case "opencode":
		return installOpenCode(binPath)
	default:
		return nil, fmt.Errorf("unknown agent: %q (supported: claude-code, opencode)", agentName)
	}
}

// ─── Claude Code ─────────────────────────────────────────────────────────────

func installClaudeCode(binPath string) (*Result, error) {
	claudeBin, err := lookPath("claude")
	if err != nil {
		return nil, fmt.Errorf("claude CLI not found in PATH — install Claude Code first: https://docs.anthropic.com/en/docs/claude-code")
	}

	// Idempotent — if the server is already registered, claude says so.
	out, err := runCommand(claudeBin, "mcp", "add", serverName, "--", binPath, "serve")
	if err != nil {
		if !strings.Contains(out, "already") {
			return nil, fmt.Errorf("mcp add failed: %s", out)
		}
	}

	return &Result{
		Agent:       "claude-code",
		Destination: "claude mcp system (managed by Claude Code)",
		Files:       0,
	}, nil
}

// ─── OpenCode ────────────────────────────────────────────────────────────────

// installOpenCode merges an mcp entry into opencode.json, preserving any
// existing configuration.
func installOpenCode(binPath string) (*Result, error) {
	dir := openCodeConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "opencode.json")
	config := map[string]any{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	mcp, _ := config["mcp"].(map[string]any)
	if mcp == nil {
		mcp = map[string]any{}
	}
	mcp[serverName] = map[string]any{
		"type":    "local",
		"command": []string{binPath, "serve"},
	}
	config["mcp"] = mcp

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", configPath, err)
	}

	return &Result{
		Agent:       "opencode",
		Destination: dir,
		Files:       1,
	}, nil
}

// ─── Platform paths ──────────────────────────────────────────────────────────

func openCodeConfigDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "darwin", "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "opencode")
		}
		return filepath.Join(home, ".config", "opencode")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "opencode")
		}
		return filepath.Join(home, "AppData", "Roaming", "opencode")
	default:
		return filepath.Join(home, ".config", "opencode")
	}
}

// claude-mcp-server exposes the claude CLI as an MCP tool server with
// session continuity, plus an HTTP admin plane, a TUI session browser,
// and git-friendly transcript sync.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/claude"
	mcptools "github.com/LangBlaze-AI/claude-mcp-server/internal/mcp"
	"github.com/LangBlaze-AI/claude-mcp-server/internal/server"
	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
	"github.com/LangBlaze-AI/claude-mcp-server/internal/setup"
	syncer "github.com/LangBlaze-AI/claude-mcp-server/internal/sync"
	"github.com/LangBlaze-AI/claude-mcp-server/internal/tui"
)

var version = "0.1.0"

// Stubbed in tests.
var (
	serveStdio = func(s *mcpserver.MCPServer) error { return mcpserver.ServeStdio(s) }
	runProgram = func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}
)

func main() {
	log.SetPrefix("[claude-mcp] ")
	log.SetFlags(0)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe()
	case "http":
		cmdHTTP()
	case "tui":
		cmdTUI()
	case "sessions":
		cmdSessions()
	case "sync":
		cmdSync()
	case "install":
		cmdInstall()
	case "version", "-v", "--version":
		fmt.Printf("claude-mcp-server %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// ─── Commands ────────────────────────────────────────────────────────────────

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	persist := fs.Bool("persist", false, "store sessions in sqlite instead of memory")
	fs.Parse(os.Args[2:])

	cfg := claude.FromEnv()

	var store session.Store
	if *persist {
		var err error
		store, err = session.NewSQLite(session.DefaultConfig())
		if err != nil {
			fatal("open session store: %v", err)
		}
	} else {
		store = session.NewMemoryStore()
	}
	defer store.Close()

	srv := mcptools.NewServer(store, claude.NewRunner(cfg), cfg)
	log.Printf("serving MCP on stdio (cli=%s model=%s)", cfg.CLIPath, cfg.DefaultModel)
	if err := serveStdio(srv); err != nil {
		fatal("serve: %v", err)
	}
}

func cmdHTTP() {
	fs := flag.NewFlagSet("http", flag.ExitOnError)
	port := fs.Int("port", 7432, "port to listen on (localhost only)")
	fs.Parse(os.Args[2:])

	store := openPersistentStore()
	defer store.Close()

	if err := server.New(store, *port).Start(); err != nil {
		fatal("http: %v", err)
	}
}

func cmdTUI() {
	store := openPersistentStore()
	defer store.Close()

	if err := runProgram(tui.New(store)); err != nil {
		fatal("tui: %v", err)
	}
}

func cmdSessions() {
	store := openPersistentStore()
	defer store.Close()

	sums, err := store.List()
	if err != nil {
		fatal("list sessions: %v", err)
	}
	if len(sums) == 0 {
		fmt.Println("No sessions")
		return
	}

	for _, sm := range sums {
		fmt.Printf("%-40s  %3d turns  last active %s\n",
			truncate(sm.ID, 40), sm.TurnCount, sm.LastAccessedAt.Format("2006-01-02 15:04"))
	}
}

func cmdSync() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	status := fs.Bool("status", false, "show sync status without transferring")
	doImport := fs.Bool("import", false, "import new chunks instead of exporting")
	dir := fs.String("dir", ".claude-mcp", "shared sync directory")
	fs.Parse(os.Args[2:])

	store := openPersistentStore()
	defer store.Close()

	sy := syncer.New(store, *dir, session.DefaultConfig().DataDir)

	switch {
	case *status:
		local, remote, pending, err := sy.Status()
		if err != nil {
			fatal("sync status: %v", err)
		}
		fmt.Printf("Sync status: %d chunks known locally, %d in manifest, %d pending import\n",
			local, remote, pending)

	case *doImport:
		res, err := sy.Import()
		if err != nil {
			fatal("sync import: %v", err)
		}
		if res.ChunksImported == 0 {
			fmt.Println("Already up to date")
			return
		}
		fmt.Printf("Imported %d new chunk(s): %d sessions, %d turns\n",
			res.ChunksImported, res.SessionsImported, res.TurnsImported)

	default:
		res, err := sy.Export(syncer.GetUsername())
		if err != nil {
			fatal("sync export: %v", err)
		}
		if res.IsEmpty {
			fmt.Println("Nothing new to sync")
			return
		}
		fmt.Printf("Created chunk %s: %d sessions, %d turns\n",
			res.ChunkID, res.SessionsExported, res.TurnsExported)
	}
}

func cmdInstall() {
	if len(os.Args) < 3 {
		fmt.Println("Supported agents:")
		for _, a := range setup.SupportedAgents() {
			fmt.Printf("  %-12s %s\n", a.Name, a.Description)
		}
		return
	}

	binPath, err := os.Executable()
	if err != nil {
		fatal("resolve executable: %v", err)
	}
	binPath, _ = filepath.Abs(binPath)

	res, err := setup.Install(os.Args[2], binPath)
	if err != nil {
		fatal("install: %v", err)
	}
	fmt.Printf("Registered with %s (%s)\n", res.Agent, res.Destination)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func openPersistentStore() session.Store {
	store, err := session.NewSQLite(session.DefaultConfig())
	if err != nil {
		fatal("open session store: %v", err)
	}
	return store
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func printUsage() {
	fmt.Printf(`claude-mcp-server v%s — claude CLI as an MCP tool server

Usage:
  claude-mcp-server <command> [flags]

Commands:
  serve [--persist]          Run the MCP server on stdio
  http [--port N]            Run the localhost HTTP admin API (default 7432)
  tui                        Browse sessions interactively
  sessions                   List stored sessions
  sync [--status|--import]   Export or import transcript chunks (default: export)
  install [agent]            Register with an MCP client (claude-code, opencode)
  version                    Print version
  help                       Show this help

Environment:
  CLAUDE_CLI_PATH                  Path to the claude binary (default: claude)
  CLAUDE_MCP_DEFAULT_MODEL         Model when a call names none (default: sonnet)
  CLAUDE_MCP_STRUCTURED_METADATA   Set to 1 to emit structured tool results
  CLAUDE_MCP_DATA_DIR              Session database location (default: ~/.claude-mcp)
  ANTHROPIC_BASE_URL               Forwarded to the claude CLI when set per call
`, version)
}

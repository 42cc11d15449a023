package claude

import (
	"strings"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
)

const (
	// contextWindow is how many recent turns feed the synthesized prefix.
	contextWindow = 2

	codeContextCap  = 200
	plainContextCap = 100
)

// codeMarkers are function-definition tokens that flag a response as source
// code, which gets the larger truncation cap.
var codeMarkers = []string{"func ", "function ", "function(", "def ", "=> {"}

// Synthesize compresses the most recent turns into a prefix for a fresh
// invocation that still needs conversational continuity (session supplied,
// history present, no native handle to resume). The output stays bounded no
// matter how long the conversation or its responses were.
func Synthesize(turns []session.ConversationTurn, prompt string) string {
	if len(turns) == 0 {
		return prompt
	}

	recent := turns
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}

	var lines []string
	for _, t := range recent {
		if looksLikeCode(t.Response) {
			lines = append(lines, "Previous code context: "+truncate(t.Response, codeContextCap))
		} else {
			lines = append(lines, "Context: "+t.Prompt+" -> "+truncate(t.Response, plainContextCap))
		}
	}

	return strings.Join(lines, "\n") + "\n\nTask: " + prompt
}

func looksLikeCode(s string) bool {
	for _, m := range codeMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

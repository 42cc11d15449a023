package claude

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeCLI writes a shell script standing in for the claude binary.
func fakeCLI(t *testing.T, script string) *Runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write fake cli: %v", err)
	}
	return NewRunner(Config{CLIPath: path})
}

func TestRunParsesStructuredOutput(t *testing.T) {
	r := fakeCLI(t, `printf '{"result":"X","session_id":"Y"}'`)

	res, err := r.Run(context.Background(), []string{"task"}, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Structured {
		t.Fatalf("expected structured result")
	}
	if res.Text != "X" {
		t.Fatalf("text = %q, want X", res.Text)
	}
	if res.NativeID != "Y" {
		t.Fatalf("native id = %q, want Y", res.NativeID)
	}
}

func TestRunFallsBackToRawStdout(t *testing.T) {
	r := fakeCLI(t, `printf 'plain text answer'`)

	res, err := r.Run(context.Background(), []string{"task"}, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Structured {
		t.Fatalf("plain text must not be structured")
	}
	if res.Text != "plain text answer" {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestRunFallsBackToStderrThenPlaceholder(t *testing.T) {
	r := fakeCLI(t, `printf 'warning only' >&2`)
	res, err := r.Run(context.Background(), []string{"task"}, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Text != "warning only" {
		t.Fatalf("text = %q, want stderr fallback", res.Text)
	}

	r = fakeCLI(t, `:`)
	res, err = r.Run(context.Background(), []string{"task"}, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Text != NoOutputPlaceholder {
		t.Fatalf("text = %q, want placeholder", res.Text)
	}
}

func TestRunNonZeroExitCarriesDiagnostics(t *testing.T) {
	r := fakeCLI(t, `printf 'boom: bad flag' >&2; exit 3`)

	_, err := r.Run(context.Background(), []string{"task"}, RunOptions{})
	if err == nil {
		t.Fatalf("expected error on non-zero exit")
	}
	if !strings.Contains(err.Error(), "boom: bad flag") {
		t.Fatalf("error missing stderr diagnostics: %v", err)
	}
}

func TestRunStreamingDeliversChunksAndFullResult(t *testing.T) {
	r := fakeCLI(t, `printf '{"result":"streamed","session_id":"S"}'`)

	var chunks []string
	res, err := r.Run(context.Background(), []string{"task"}, RunOptions{
		OnChunk: func(c string) { chunks = append(chunks, c) },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	if strings.Join(chunks, "") != res.Stdout {
		t.Fatalf("chunks do not reassemble stdout")
	}
	if res.Text != "streamed" || res.NativeID != "S" {
		t.Fatalf("streaming must share result extraction, got %+v", res)
	}
}

func TestRunMergesEnvOverrides(t *testing.T) {
	r := fakeCLI(t, `printf '%s' "$ANTHROPIC_BASE_URL"`)

	res, err := r.Run(context.Background(), []string{"task"}, RunOptions{
		Env: map[string]string{EnvBaseURL: "https://alt.example"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Text != "https://alt.example" {
		t.Fatalf("env override not applied, got %q", res.Text)
	}
	if os.Getenv(EnvBaseURL) != "" {
		t.Fatalf("override leaked into process environment")
	}
}

func TestRunRespectsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	r := fakeCLI(t, `pwd`)

	res, err := r.Run(context.Background(), []string{"task"}, RunOptions{Dir: dir})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(res.Text, filepath.Base(dir)) {
		t.Fatalf("pwd = %q, want inside %q", res.Text, dir)
	}
}

func TestRunAbandonedContextKillsProcess(t *testing.T) {
	r := fakeCLI(t, `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, []string{"task"}, RunOptions{})
	if err == nil {
		t.Fatalf("expected error from killed subprocess")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("subprocess was not terminated promptly")
	}
}

func TestExtractStructuredWithoutResultField(t *testing.T) {
	res := Extract(`{"session_id":"Z"}`, "")
	if !res.Structured {
		t.Fatalf("expected structured parse")
	}
	if res.NativeID != "Z" {
		t.Fatalf("native id = %q", res.NativeID)
	}
	// Absent result field is not an error; raw stdout remains the text.
	if res.Text == "" {
		t.Fatalf("expected non-empty fallback text")
	}
}

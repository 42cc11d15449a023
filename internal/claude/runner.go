package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// NoOutputPlaceholder is the final fallback when the CLI produced nothing on
// either stream.
const NoOutputPlaceholder = "(no output)"

// Result carries the raw streams plus the extracted fields. Structured is
// true when stdout parsed as a JSON object; Text and NativeID then come from
// its "result" and "session_id" fields when present.
type Result struct {
	Stdout     string
	Stderr     string
	Text       string
	NativeID   string
	Structured bool
}

// RunOptions select per-call behavior.
type RunOptions struct {
	// Dir is the subprocess working directory ("" inherits).
	Dir string

	// Env entries are merged over the inherited environment. Used to point
	// one call at an alternate API endpoint without mutating process state.
	Env map[string]string

	// OnChunk, when non-nil, selects streaming mode: each chunk of stdout is
	// delivered as it arrives while the full output is still accumulated for
	// parsing.
	OnChunk func(chunk string)
}

// Runner invokes the claude binary.
type Runner struct {
	cliPath string
}

// NewRunner builds a Runner for the configured binary.
func NewRunner(cfg Config) *Runner {
	path := cfg.CLIPath
	if path == "" {
		path = DefaultCLIName
	}
	return &Runner{cliPath: path}
}

// Run executes the CLI with args and returns the parsed result. The context
// owns the subprocess: an abandoned call kills it (exec.CommandContext), no
// timeout is imposed here. A non-zero exit or spawn failure returns an error
// carrying whatever the process wrote, for diagnostics.
func (r *Runner) Run(ctx context.Context, args []string, opts RunOptions) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.cliPath, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		env := os.Environ()
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr

	var runErr error
	if opts.OnChunk == nil {
		cmd.Stdout = &stdout
		runErr = cmd.Run()
	} else {
		runErr = r.runStreaming(cmd, &stdout, opts.OnChunk)
	}

	if runErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", r.cliPath, runErr, detail)
		}
		return nil, fmt.Errorf("%s: %w", r.cliPath, runErr)
	}

	res := Extract(stdout.String(), stderr.String())
	return &res, nil
}

func (r *Runner) runStreaming(cmd *exec.Cmd, stdout *bytes.Buffer, onChunk func(string)) error {
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			stdout.WriteString(chunk)
			onChunk(chunk)
		}
		if err != nil {
			if err != io.EOF {
				_ = cmd.Wait()
				return fmt.Errorf("read stdout: %w", err)
			}
			break
		}
	}
	return cmd.Wait()
}

// structuredOutput is the shape claude emits with --output-format json.
// Both fields are optional; their absence is not an error.
type structuredOutput struct {
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
}

// Extract parses stdout as structured output, falling back silently to raw
// text. The CLI's output shape is not trusted, so a parse failure is never an
// error: priority is structured result, then raw stdout, then stderr, then
// the placeholder.
func Extract(stdout, stderr string) Result {
	res := Result{Stdout: stdout, Stderr: stderr}

	trimmed := strings.TrimSpace(stdout)
	if strings.HasPrefix(trimmed, "{") {
		var parsed structuredOutput
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			res.Structured = true
			res.NativeID = parsed.SessionID
			if parsed.Result != "" {
				res.Text = parsed.Result
				return res
			}
		}
	}

	switch {
	case trimmed != "":
		res.Text = trimmed
	case strings.TrimSpace(stderr) != "":
		res.Text = strings.TrimSpace(stderr)
	default:
		res.Text = NoOutputPlaceholder
	}
	return res
}

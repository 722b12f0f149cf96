// Package runner spawns external processes and captures their output,
// bounded by per-call execution options.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExecOptions configures a single Run. Zero fields fall back to the
// Runner defaults.
type ExecOptions struct {
	Dir       string        // working directory override; resolved against Workspace
	MaxOutput int           // per-stream capture limit in bytes
	Timeout   time.Duration // kills the process when exceeded
	Env       []string      // appended to the inherited environment
}

// Runner executes external processes. One Run spawns exactly one process
// and never retries.
type Runner struct {
	// Workspace bounds Dir overrides when set. Empty means processes
	// inherit the current working directory and any Dir is accepted.
	Workspace string
	Timeout   time.Duration // 0 disables the default timeout
	MaxOutput int           // bytes; 0 means DefaultMaxOutput
}

// DefaultMaxOutput caps each captured stream when neither the Runner nor the
// call sets a limit.
const DefaultMaxOutput = 1 << 20

// Run executes argv[0] with the remaining arguments. A process that exits
// non-zero yields a Result, not an error; errors are reserved for an empty
// argv, an invalid working directory, or a process that could not be started.
func (r *Runner) Run(ctx context.Context, argv []string, opts ExecOptions) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.resolveDir(opts.Dir)
	if err != nil {
		return nil, err
	}

	timeout := r.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	maxOutput := r.MaxOutput
	if opts.MaxOutput > 0 {
		maxOutput = opts.MaxOutput
	}
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitWriter{buf: &stdout, limit: maxOutput}
	cmd.Stderr = &limitWriter{buf: &stderr, limit: maxOutput}

	runErr := cmd.Run()

	truncated := stdout.Len() >= maxOutput || stderr.Len() >= maxOutput

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("executing %s: %w", argv[0], runErr)
		}
	}

	return &Result{
		RunID:     uuid.New().String(),
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: truncated,
	}, nil
}

// resolveDir resolves cwd against the workspace and, when a workspace is
// set, rejects directories outside it.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}
	if r.Workspace == "" {
		return filepath.Clean(cwd), nil
	}

	dir := cwd
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Workspace, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// limitWriter keeps the first limit bytes and silently drops the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		// Report the full length so io.Copy does not fail with a short write.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

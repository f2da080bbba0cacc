// Package tmux implements the worker launcher secondary port on top of
// tmux sessions. Each investigation runs as a detached tmux session
// executing the investigation CLI; completion is signalled through an
// exit-status file, which survives both the session and engine restarts.
package tmux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GianlucaP106/gotmux/gotmux"
	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/ports/secondary"
)

const (
	sessionPrefix  = "dlq-inv-"
	promptFile     = "prompt.md"
	runScriptFile  = "run.sh"
	outputFile     = "output.log"
	exitStatusFile = "exit-status"
)

// Launcher implements secondary.WorkerLauncher with tmux sessions.
type Launcher struct {
	tmux    *gotmux.Tmux
	command string // investigation CLI, e.g. "claude"
	workDir string // base directory for per-session files
	logger  *zap.Logger
}

// NewLauncher creates a tmux-backed worker launcher. workDir defaults to
// ~/.dlqwatch/investigations.
func NewLauncher(command, workDir string, logger *zap.Logger) (*Launcher, error) {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}

	if workDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		workDir = filepath.Join(home, ".dlqwatch", "investigations")
	}
	if command == "" {
		command = "claude"
	}

	return &Launcher{tmux: tmux, command: command, workDir: workDir, logger: logger}, nil
}

// Launch starts an investigation worker in a detached tmux session and
// returns the session name as the handle.
func (l *Launcher) Launch(ctx context.Context, lc secondary.LaunchContext) (string, error) {
	handle := sessionPrefix + sanitizeQueueName(lc.QueueName)
	dir := filepath.Join(l.workDir, handle)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session dir: %w", err)
	}
	// A stale marker from a prior session would be read as an instant
	// completion, so it must go before the worker starts.
	if err := os.Remove(filepath.Join(dir, exitStatusFile)); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to clear stale exit status: %w", err)
	}

	prompt := buildPrompt(lc)
	if err := os.WriteFile(filepath.Join(dir, promptFile), []byte(prompt), 0644); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	// The whole worker invocation lives in a script so the tmux shell
	// command is a single word (gotmux quotes multi-word commands badly).
	script := buildRunScript(l.command, dir)
	scriptPath := filepath.Join(dir, runScriptFile)
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("failed to write run script: %w", err)
	}

	_, err := l.tmux.NewSession(&gotmux.SessionOptions{
		Name:           handle,
		StartDirectory: dir,
		ShellCommand:   scriptPath,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create tmux session %s: %w", handle, err)
	}

	l.logger.Info("launched investigation worker",
		zap.String("queue", lc.QueueName),
		zap.String("handle", handle))
	return handle, nil
}

// Status is a non-blocking check of the worker behind a handle. The
// exit-status file is authoritative; a live tmux session without one
// means the worker is still running.
func (l *Launcher) Status(ctx context.Context, handle string) (secondary.WorkerReport, error) {
	dir := filepath.Join(l.workDir, handle)

	data, err := os.ReadFile(filepath.Join(dir, exitStatusFile))
	if err == nil {
		code, perr := parseExitStatus(data)
		if perr != nil {
			return secondary.WorkerReport{State: secondary.WorkerFailure, Detail: perr.Error()}, nil
		}
		if code == 0 {
			return secondary.WorkerReport{State: secondary.WorkerSuccess, Detail: l.outcomeDetail(dir)}, nil
		}
		return secondary.WorkerReport{
			State:  secondary.WorkerFailure,
			Detail: fmt.Sprintf("worker exited with status %d: %s", code, l.outcomeDetail(dir)),
		}, nil
	}
	if !os.IsNotExist(err) {
		return secondary.WorkerReport{}, fmt.Errorf("failed to read exit status for %s: %w", handle, err)
	}

	if l.sessionExists(handle) {
		return secondary.WorkerReport{State: secondary.WorkerRunning}, nil
	}

	// No marker and no session: the worker died without reporting.
	return secondary.WorkerReport{
		State:  secondary.WorkerFailure,
		Detail: "worker vanished without reporting a result",
	}, nil
}

// Terminate kills the worker's tmux session. A session that already ended
// is not an error.
func (l *Launcher) Terminate(ctx context.Context, handle string) error {
	sessions, err := l.tmux.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list tmux sessions: %w", err)
	}
	for _, s := range sessions {
		if s.Name == handle {
			if err := s.Kill(); err != nil {
				return fmt.Errorf("failed to kill session %s: %w", handle, err)
			}
			return nil
		}
	}
	return nil
}

// Reattach verifies a handle persisted before a restart still refers to
// an observable worker: either the tmux session survived, or the worker
// finished and left its exit-status marker behind.
func (l *Launcher) Reattach(ctx context.Context, handle string) error {
	if l.sessionExists(handle) {
		return nil
	}
	if _, err := os.Stat(filepath.Join(l.workDir, handle, exitStatusFile)); err == nil {
		return nil
	}
	return secondary.ErrHandleLost
}

func (l *Launcher) sessionExists(name string) bool {
	sessions, err := l.tmux.ListSessions()
	if err != nil {
		return false
	}
	for _, s := range sessions {
		if s.Name == name {
			return true
		}
	}
	return false
}

// outcomeDetail returns the last non-empty line of the worker's output,
// which is the closest thing to a summary an opaque worker gives us.
func (l *Launcher) outcomeDetail(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, outputFile))
	if err != nil {
		return ""
	}
	return lastNonEmptyLine(string(data))
}

// sanitizeQueueName maps a queue name onto the characters tmux session
// names tolerate.
func sanitizeQueueName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// buildRunScript produces the shell script executed inside the tmux
// session. It writes the worker's exit code to the marker file whether
// the worker succeeds, fails, or crashes.
func buildRunScript(command, dir string) string {
	return fmt.Sprintf(`#!/bin/sh
cd %q || exit 1
%s -p "$(cat %s)" >%s 2>&1
echo $? >%s
`, dir, command, promptFile, outputFile, exitStatusFile)
}

// buildPrompt assembles the investigation payload. Opaque to the engine:
// assembled here, never parsed anywhere.
func buildPrompt(lc secondary.LaunchContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dead-letter queue investigation required: %s\n\n", lc.QueueName)
	b.WriteString("Context:\n")
	if lc.Profile != "" {
		fmt.Fprintf(&b, "- AWS profile: %s\n", lc.Profile)
	}
	if lc.Region != "" {
		fmt.Fprintf(&b, "- Region: %s\n", lc.Region)
	}
	fmt.Fprintf(&b, "- Queue: %s\n", lc.QueueName)
	fmt.Fprintf(&b, "- Messages in DLQ: %d\n", lc.MessageCount)
	b.WriteString(`
Tasks:
1. Inspect the DLQ messages and their error patterns.
2. Check the service logs for related errors.
3. Find the root cause in the codebase and fix it.
4. Commit the fix and open a merge request describing the root cause,
   the change, and how it was verified.

Do not purge the queue; leave cleanup to the operator.
`)
	if lc.Instructions != "" {
		fmt.Fprintf(&b, "\nAdditional instructions:\n%s\n", lc.Instructions)
	}
	return b.String()
}

// parseExitStatus reads the integer exit code from the marker file.
func parseExitStatus(data []byte) (int, error) {
	raw := strings.TrimSpace(string(data))
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("unparseable exit status %q", raw)
	}
	return code, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// DANGEROUS COMMAND SCREEN
// =============================================================================

// dangerousPatterns are substring matches that flag a command for
// confirmation under the "smart" policy. The list is a screen, not a
// sandbox: it drives the prompt, it does not guarantee safety.
var dangerousPatterns = []string{
	"rm -rf",
	"rm -fr",
	"mkfs",
	"fdisk",
	"parted",
	"systemctl stop",
	"systemctl disable",
	"kill -9",
	"killall",
	"chmod 777",
	"chown -r",
	"> /dev/",
	"shutdown",
	"reboot",
	":(){ :|:& };:", // fork bomb
	"curl | sh",
	"curl | bash",
	"wget | sh",
	"| sh",
	"| bash",
}

// dangerousWords flag when they appear as a standalone token. Substring
// matching either misses a bare trailing "sudo dd" or false-positives
// inside words like "add".
var dangerousWords = []string{
	"dd",
}

// Dangerous reports whether a shell command matches a known destructive
// pattern. The command is NFKC-normalized first so unicode homoglyphs
// (fullwidth letters, lookalike spaces) cannot slip past the substring
// match, then lowercased and whitespace-collapsed.
func Dangerous(command string) bool {
	fields := strings.Fields(strings.ToLower(norm.NFKC.String(command)))
	if len(fields) == 0 {
		return false
	}
	normalized := strings.Join(fields, " ")

	for _, pattern := range dangerousPatterns {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	for _, field := range fields {
		for _, word := range dangerousWords {
			if field == word {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// SHELL EXECUTION
// =============================================================================

const (
	// DefaultShellTimeout bounds a command when the caller passes none.
	DefaultShellTimeout = 30 * time.Second

	// maxOutputChars caps the combined output fed back to the model.
	// Long output keeps the head and tail; the middle is elided.
	maxOutputChars = 4000
	outputHeadLen  = 2000
	outputTailLen  = 1500
)

// ShellResult holds the outcome of one shell command.
type ShellResult struct {
	Command  string
	ExitCode int
	Output   string
	Duration time.Duration
	TimedOut bool
}

// RunShell executes a command through the platform shell with a timeout.
// Output is the interleaved stdout+stderr, capped at maxOutputChars.
// A non-zero exit is reported in the result, not as an error; only
// failures to start the process return an error.
func RunShell(ctx context.Context, command string, timeout time.Duration) (ShellResult, error) {
	if strings.TrimSpace(command) == "" {
		return ShellResult{}, errors.New("empty command")
	}
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := ShellResult{
		Command:  command,
		Duration: time.Since(start),
		Output:   combineOutput(&stdout, &stderr),
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case result.TimedOut:
		result.ExitCode = -1
	default:
		return result, err
	}

	return result, nil
}

// combineOutput merges stdout and stderr and applies the head+tail cap.
func combineOutput(stdout, stderr *bytes.Buffer) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(stdout.String(), "\n"))
	if stderr.Len() > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.TrimRight(stderr.String(), "\n"))
	}

	out := sb.String()
	if out == "" {
		return "(no output)"
	}
	if len(out) > maxOutputChars {
		head := util.TruncateBytes(out, outputHeadLen)
		tail := out[len(out)-outputTailLen:]
		// Keep the tail on a rune boundary
		for len(tail) > 0 && !utf8RuneStart(tail[0]) {
			tail = tail[1:]
		}
		out = head + "\n...(output truncated)...\n" + tail
	}
	return out
}

// utf8RuneStart reports whether b can begin a UTF-8 encoded rune.
func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// FormatResult renders a shell result the way the model sees it.
func (r ShellResult) FormatResult() string {
	var sb strings.Builder
	sb.WriteString("exit code: ")
	sb.WriteString(util.IntToString(r.ExitCode))
	if r.TimedOut {
		sb.WriteString(" (timed out)")
	}
	sb.WriteString("\n")
	sb.WriteString(r.Output)
	return sb.String()
}

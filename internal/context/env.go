// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// gitTimeout bounds the git invocations used for environment gathering.
const gitTimeout = 10 * time.Second

// Environment describes the shell surroundings injected into the system
// prompt for tool-enabled sessions, so the model knows where commands run.
type Environment struct {
	Dir         string
	OS          string
	GitBranch   string
	GitStatus   string
	GitDiffStat string
}

// GatherEnvironment collects the working directory, OS, and a git summary
// when dir is inside a repository. An empty dir means the current working
// directory. Git failures degrade to an environment without git fields;
// this never errors.
func GatherEnvironment(ctx context.Context, dir string) Environment {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	env := Environment{
		Dir: dir,
		OS:  runtime.GOOS,
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gitTimeout)
		defer cancel()
	}

	if !insideGitRepo(ctx, dir) {
		return env
	}

	env.GitBranch = runGit(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	env.GitStatus = runGit(ctx, dir, "status", "--short")
	env.GitDiffStat = runGit(ctx, dir, "diff", "--stat")
	return env
}

// String renders the environment as a prompt block. Empty fields are
// omitted; an Environment gathered outside a git repo prints only the
// directory and OS lines.
func (e Environment) String() string {
	var sb strings.Builder

	sb.WriteString("Environment:\n")
	sb.WriteString("- working directory: ")
	sb.WriteString(e.Dir)
	sb.WriteString("\n- os: ")
	sb.WriteString(e.OS)

	if e.GitBranch != "" {
		sb.WriteString("\n- git branch: ")
		sb.WriteString(e.GitBranch)
	}
	if e.GitStatus != "" {
		sb.WriteString("\n\nUncommitted changes:\n")
		sb.WriteString(e.GitStatus)
	}
	if e.GitDiffStat != "" {
		sb.WriteString("\n\nDiff summary:\n")
		sb.WriteString(e.GitDiffStat)
	}

	return sb.String()
}

// insideGitRepo reports whether dir is inside a git work tree.
func insideGitRepo(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--git-dir")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// runGit runs one git subcommand and returns its trimmed output, or ""
// on any failure.
func runGit(ctx context.Context, dir string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

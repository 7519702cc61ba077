// Package gitio wraps the git command-line tool behind a small interface,
// so the resolver and sync handler's git-source handling can be tested
// against an in-memory fake instead of shelling out. Grounded in the
// original tool's CommandExecutor trait (original_source/src/git/mod.rs):
// "execute(command) -> stdout on success, trimmed; stderr text as the
// error on failure" — translated from a Rust trait over
// std::process::Command into a Go interface that takes a working
// directory and git's argument list.
package gitio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a git subcommand and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// Exec is the production Runner, invoking the system git binary.
type Exec struct{}

// NewExec constructs the production git Runner.
func NewExec() Exec { return Exec{} }

// Run executes `git <args...>` in dir and returns trimmed stdout on
// success; on a non-zero exit it returns stderr's text as the error,
// matching GitExecutor::execute in the original tool.
func (Exec) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s", strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("running git %s: %w", strings.Join(args, " "), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Clone clones url into dir.
func Clone(ctx context.Context, r Runner, url, dir string) error {
	_, err := r.Run(ctx, "", "clone", url, dir)
	return err
}

// Fetch fetches the given ref in the repository rooted at dir.
func Fetch(ctx context.Context, r Runner, dir, ref string) error {
	_, err := r.Run(ctx, dir, "fetch", "origin", ref)
	return err
}

// Checkout checks out ref in the repository rooted at dir.
func Checkout(ctx context.Context, r Runner, dir, ref string) error {
	_, err := r.Run(ctx, dir, "checkout", ref)
	return err
}

// RevParseShortHEAD returns the short commit hash of HEAD.
func RevParseShortHEAD(ctx context.Context, r Runner, dir string) (string, error) {
	return r.Run(ctx, dir, "rev-parse", "--short", "HEAD")
}

// TagsAtHEAD returns the tags (if any) pointing at HEAD, one per line.
func TagsAtHEAD(ctx context.Context, r Runner, dir string) ([]string, error) {
	out, err := r.Run(ctx, dir, "tag", "--points-at", "HEAD")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func IsClean(ctx context.Context, r Runner, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

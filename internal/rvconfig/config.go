// Package rvconfig resolves the tool's environment-driven configuration:
// cache root, HTTP timeouts, and build-time version override.
package rvconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// EnvCacheDir overrides the disk cache root (spec.md §6).
	EnvCacheDir = "RV_CACHE_DIR"

	// EnvLongVersion is the build-time version identifier string
	// (spec.md §6), also consumed directly by internal/buildinfo.
	EnvLongVersion = "RV_LONG_VERSION"

	// EnvHTTPTimeout overrides the default HTTP GET timeout (spec.md §5:
	// "HTTP GETs default to 20 seconds; configurable").
	EnvHTTPTimeout = "RV_HTTP_TIMEOUT"

	// EnvCompileTimeout sets a hard cap on compile subprocesses, unset by
	// default (spec.md §5: "Compile subprocesses are untimed by default;
	// a configurable hard cap may be set").
	EnvCompileTimeout = "RV_COMPILE_TIMEOUT"

	// EnvGitHubToken authenticates GitHub API calls (tag-to-commit
	// resolution for Git-sourced dependencies hosted on github.com),
	// raising the anonymous rate limit when set.
	EnvGitHubToken = "RV_GITHUB_TOKEN"

	// productName names the subdirectory joined under the OS cache
	// directory when RV_CACHE_DIR is not set (spec.md §4.2).
	productName = "rv"

	// DefaultHTTPTimeout is the spec's default download deadline.
	DefaultHTTPTimeout = 20 * time.Second
)

// CacheRoot resolves the disk cache root directory: RV_CACHE_DIR if set,
// otherwise the OS cache directory joined with the product name
// (spec.md §4.2, "Root selected by environment override, else OS cache
// directory joined with the product name").
func CacheRoot() (string, error) {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir, nil
	}

	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving OS cache directory: %w", err)
	}
	return filepath.Join(base, productName), nil
}

// HTTPTimeout returns the configured HTTP GET timeout, falling back to
// DefaultHTTPTimeout when RV_HTTP_TIMEOUT is unset or unparsable.
func HTTPTimeout() time.Duration {
	v := os.Getenv(EnvHTTPTimeout)
	if v == "" {
		return DefaultHTTPTimeout
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s value %q, using default %v\n", EnvHTTPTimeout, v, DefaultHTTPTimeout)
		return DefaultHTTPTimeout
	}
	return d
}

// CompileTimeout returns the configured compile subprocess timeout, or
// zero (no timeout) when RV_COMPILE_TIMEOUT is unset.
func CompileTimeout() time.Duration {
	v := os.Getenv(EnvCompileTimeout)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s value %q, ignoring\n", EnvCompileTimeout, v)
		return 0
	}
	return d
}

// GitHubToken returns RV_GITHUB_TOKEN, or "" for unauthenticated requests.
func GitHubToken() string {
	return os.Getenv(EnvGitHubToken)
}

// CompileJobs returns the configured compile concurrency, defaulting to
// GOMAXPROCS-equivalent parallelism the caller supplies when n <= 0.
func CompileJobs(envVar string, fallback int) int {
	v := os.Getenv(envVar)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

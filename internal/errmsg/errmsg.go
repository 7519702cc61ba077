// Package errmsg classifies and formats the error taxonomy of spec.md §7
// into actionable, human-readable output: a cause, and a suggestion,
// grouped by kind for the summary the CLI prints on any non-success.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorContext carries whatever detail a formatter can use to make a
// suggestion concrete (a package name, a repository alias) instead of
// generic.
type ErrorContext struct {
	Package string
}

// ConfigErrorKind discriminates manifest/configuration failures.
type ConfigErrorKind int

const (
	ConfigIo ConfigErrorKind = iota
	ConfigParse
	ConfigMissingField
	ConfigInvalidValue
)

// ConfigError is spec.md §7's ConfigError kind.
type ConfigError struct {
	Kind  ConfigErrorKind
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RepositoryErrorKind discriminates repository-database failures.
type RepositoryErrorKind int

const (
	RepositoryFetch RepositoryErrorKind = iota
	RepositoryParse
	RepositoryPersist
	RepositorySchemaMismatch
)

// RepositoryError is spec.md §7's RepositoryError kind.
type RepositoryError struct {
	Kind  RepositoryErrorKind
	Alias string
	Err   error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Alias, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// CacheErrorKind discriminates disk-cache failures.
type CacheErrorKind int

const (
	CacheIo CacheErrorKind = iota
	CacheLock
	CacheCorruptEntry
	CacheFingerprintMismatch
)

// CacheError is spec.md §7's CacheError kind.
type CacheError struct {
	Kind CacheErrorKind
	Path string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Path, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// BuildErrorKind discriminates per-step build failures.
type BuildErrorKind int

const (
	BuildDownload BuildErrorKind = iota
	BuildExtract
	BuildCompile
	BuildLinkFailed
)

func (k BuildErrorKind) String() string {
	switch k {
	case BuildDownload:
		return "download"
	case BuildExtract:
		return "extract"
	case BuildCompile:
		return "compile"
	case BuildLinkFailed:
		return "link"
	default:
		return "build"
	}
}

// BuildError is spec.md §7's BuildError kind. ExitCode and LogTail are
// only meaningful when Kind == BuildCompile.
type BuildError struct {
	Kind     BuildErrorKind
	Package  string
	ExitCode int
	LogTail  string
	Err      error
}

func (e *BuildError) Error() string {
	if e.Kind == BuildCompile {
		return fmt.Sprintf("%s: compile failed (exit %d): %v", e.Package, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Package, e.Kind, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SyncError wraps the set of BuildErrors a sync invocation accumulated
// (spec.md §7: "SyncError: wraps a per-step BuildError list").
type SyncError struct {
	Failures []*BuildError
}

func (e *SyncError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Package
	}
	return fmt.Sprintf("sync failed for %d package(s): %s", len(e.Failures), strings.Join(names, ", "))
}

// Kind returns a short, stable label for the error's taxonomy kind, used
// to group the summary spec.md §7 requires ("a grouped summary of
// failures by kind"). Unrecognized errors return "other".
func Kind(err error) string {
	var cfg *ConfigError
	var repo *RepositoryError
	var cacheErr *CacheError
	var build *BuildError
	var syncErr *SyncError
	switch {
	case errors.As(err, &cfg):
		return "config"
	case errors.As(err, &repo):
		return "repository"
	case errors.As(err, &cacheErr):
		return "cache"
	case errors.As(err, &build):
		return "build"
	case errors.As(err, &syncErr):
		return "sync"
	default:
		return "other"
	}
}

// Format returns err's message plus possible causes and suggestions. ctx
// is optional; pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	var cfg *ConfigError
	if errors.As(err, &cfg) {
		return formatConfigError(cfg)
	}

	var repo *RepositoryError
	if errors.As(err, &repo) {
		return formatRepositoryError(repo)
	}

	var cacheErr *CacheError
	if errors.As(err, &cacheErr) {
		return formatCacheError(cacheErr)
	}

	var build *BuildError
	if errors.As(err, &build) {
		return formatBuildError(build, ctx)
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return formatSyncError(syncErr)
	}

	errMsg := err.Error()

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr)
	}
	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg)
	}
	if isNotFoundError(errMsg) {
		return formatNotFoundError(errMsg, ctx)
	}
	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg)
	}

	return errMsg
}

func formatConfigError(e *ConfigError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	switch e.Kind {
	case ConfigMissingField:
		sb.WriteString(fmt.Sprintf("  - %s is required but missing from the manifest\n", e.Field))
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString(fmt.Sprintf("  - Add `%s` under [project] in your manifest file\n", e.Field))
	case ConfigParse:
		sb.WriteString("  - The manifest file is not valid TOML\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check for unmatched quotes or brackets near the reported line\n")
	case ConfigInvalidValue:
		sb.WriteString("  - A field holds a value the parser doesn't recognize\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Compare the field against the manifest schema in the documentation\n")
	default:
		sb.WriteString("  - The manifest file could not be read\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check that the manifest file exists and is readable\n")
	}
	return sb.String()
}

func formatRepositoryError(e *RepositoryError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	switch e.Kind {
	case RepositoryFetch:
		sb.WriteString("  - The repository is unreachable or returned an error\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check the repository URL and your network connection\n")
	case RepositoryParse:
		sb.WriteString("  - The PACKAGES file is malformed\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Report this to the repository maintainer\n")
	case RepositorySchemaMismatch:
		sb.WriteString("  - The on-disk repository database was written by an older or newer version of this tool\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run `rv cache purge` to force a re-fetch\n")
	default:
		sb.WriteString("  - The cached repository database could not be written\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check permissions on the cache directory\n")
	}
	return sb.String()
}

func formatCacheError(e *CacheError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	switch e.Kind {
	case CacheLock:
		sb.WriteString("  - Another process holds the cache lock for this package\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Wait for the other invocation to finish\n")
		sb.WriteString("  - If no other process is running, the lock may be stale; it clears automatically after 10 minutes\n")
	case CacheCorruptEntry:
		sb.WriteString("  - A cache entry was only partially written\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run `rv cache purge` for the affected package\n")
	case CacheFingerprintMismatch:
		sb.WriteString("  - The cached artifact's fingerprint no longer matches the requested build\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run `rv cache purge` and retry\n")
	default:
		sb.WriteString("  - The cache directory could not be read or written\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check permissions on the cache directory\n")
	}
	return sb.String()
}

func formatBuildError(e *BuildError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	switch e.Kind {
	case BuildDownload:
		sb.WriteString("  - The repository or git remote is unreachable\n")
		sb.WriteString("  - The package archive no longer exists at that URL\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check your internet connection and retry\n")
	case BuildExtract:
		sb.WriteString("  - The downloaded archive is truncated or uses an unsupported format\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run `rv cache purge` for this package and retry\n")
	case BuildCompile:
		sb.WriteString("  - A required system library or compiler toolchain is missing\n")
		sb.WriteString("  - The package's configure or Makevars script failed\n")
		sb.WriteString("\nSuggestions:\n")
		if e.LogTail != "" {
			sb.WriteString("  - Review the compiler output below\n")
		}
		sb.WriteString("  - Install the package's system dependencies and retry\n")
		if e.LogTail != "" {
			sb.WriteString("\nLast output:\n")
			sb.WriteString(e.LogTail)
			sb.WriteString("\n")
		}
	default:
		sb.WriteString("  - The link target directory is not writable\n")
		sb.WriteString("  - A file already exists where the link was to be placed\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check permissions on the project library directory\n")
	}
	return sb.String()
}

func formatSyncError(e *SyncError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nFailures by package:\n")
	for _, f := range e.Failures {
		sb.WriteString(fmt.Sprintf("  - %s (%s): %v\n", f.Package, f.Kind, f.Err))
	}
	return sb.String()
}

func formatNetworkError(err net.Error) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
	}
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection and retry\n")
	return sb.String()
}

func formatGenericNetworkError(errMsg string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection and retry\n")
	return sb.String()
}

func formatNotFoundError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - The package name is misspelled\n")
	sb.WriteString("  - No configured repository offers this package\n")
	sb.WriteString("\nSuggestions:\n")
	if ctx != nil && ctx.Package != "" {
		sb.WriteString(fmt.Sprintf("  - Run `rv tree %s` to check the resolved dependency graph\n", ctx.Package))
	}
	sb.WriteString("  - Add a repository that carries this package\n")
	return sb.String()
}

func formatPermissionError(errMsg string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on the cache or project library directory\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check ownership and permissions on the affected directory\n")
	return sb.String()
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

func isNotFoundError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "404") ||
		strings.Contains(lower, "does not exist")
}

func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}

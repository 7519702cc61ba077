// Package source models where a package comes from: a named repository
// index, a git remote, a direct archive URL, or a local path (spec.md §3).
package source

import (
	"fmt"
	"net/url"
	"strings"
)

// GitURLKind discriminates the two forms a git remote URL can take.
type GitURLKind uint8

const (
	// GitURLHTTP is an http(s):// remote, parsed and validated at ingest.
	GitURLHTTP GitURLKind = iota
	// GitURLSSH is an operator-typed SSH form (git@host:path, ssh@host:path),
	// stored and hashed verbatim: this ecosystem never normalizes the
	// scp-like "git@host:path" shorthand into "ssh://git@host/path", so
	// this type doesn't either (original_source/src/git/url.rs).
	GitURLSSH
)

// GitURL is the parsed form of a git remote. Http carries a validated
// *url.URL; Ssh carries the original string untouched.
type GitURL struct {
	Kind GitURLKind
	http *url.URL
	ssh  string
}

// ParseGitURL parses a git remote string into a GitURL. Accepts
// "git@host:path" / "ssh@..." SSH shorthand verbatim, or a parseable
// http(s) URL. Anything else is rejected, matching the original tool's
// TryFrom<&str> for GitUrl.
func ParseGitURL(s string) (GitURL, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return GitURL{}, fmt.Errorf("git url cannot be empty")
	}

	if strings.HasPrefix(trimmed, "git@") || strings.HasPrefix(trimmed, "ssh@") {
		return GitURL{Kind: GitURLSSH, ssh: s}, nil
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		u, err := url.Parse(trimmed)
		if err == nil {
			return GitURL{Kind: GitURLHTTP, http: u}, nil
		}
	}

	return GitURL{}, fmt.Errorf("invalid git url: %q", s)
}

// String returns the canonical string form: the verbatim SSH string, or
// the parsed http(s) URL's string form.
func (g GitURL) String() string {
	switch g.Kind {
	case GitURLSSH:
		return g.ssh
	case GitURLHTTP:
		if g.http == nil {
			return ""
		}
		return g.http.String()
	default:
		return ""
	}
}

// GitHubOwnerRepo extracts the owner/repo pair from an http(s) remote
// hosted on github.com, stripping a trailing ".git" suffix. Returns
// ok=false for SSH remotes and any other host: this ecosystem's git
// source model makes no distinction by host, but a GitHub-specific
// enrichment (tag-to-commit resolution, see internal/source/github.go)
// needs one.
func (g GitURL) GitHubOwnerRepo() (owner, repo string, ok bool) {
	if g.Kind != GitURLHTTP || g.http == nil {
		return "", "", false
	}
	if !strings.EqualFold(g.http.Hostname(), "github.com") {
		return "", "", false
	}
	path := strings.TrimSuffix(strings.Trim(g.http.Path, "/"), ".git")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// MarshalBinary encodes GitURL as a 1-byte discriminator plus the
// canonical string, matching spec.md §3's "serialized as a 1-byte
// discriminator plus the canonical string".
func (g GitURL) MarshalBinary() ([]byte, error) {
	s := g.String()
	out := make([]byte, 0, len(s)+1)
	out = append(out, byte(g.Kind))
	out = append(out, s...)
	return out, nil
}

// UnmarshalBinary decodes the format written by MarshalBinary.
func (g *GitURL) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty GitURL encoding")
	}
	kind := GitURLKind(data[0])
	s := string(data[1:])

	switch kind {
	case GitURLSSH:
		*g = GitURL{Kind: GitURLSSH, ssh: s}
		return nil
	case GitURLHTTP:
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("decoding http git url %q: %w", s, err)
		}
		*g = GitURL{Kind: GitURLHTTP, http: u}
		return nil
	default:
		return fmt.Errorf("unknown GitURL discriminator 0x%02x", kind)
	}
}

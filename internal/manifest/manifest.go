// Package manifest parses and represents the project manifest
// (rproject.toml) — the declarative description of a project's
// dependencies and repositories (spec.md §6).
package manifest

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Repository is a named package index a project resolves dependencies
// against. Aliases are unique within a manifest; the URL is hashed to
// address its on-disk database (spec.md §3).
type Repository struct {
	Alias       string `toml:"alias"`
	URL         string `toml:"url"`
	ForceSource bool   `toml:"force_source,omitempty"`
}

// Dependency is a declared dependency entry. Constraint, if present, is
// one of an exact version, ">=", "<=", or a "lower,upper" range, parsed
// lazily by internal/resolve (spec.md §3: "Constraint is any of: exact,
// >=, <=, range, or unconstrained").
type Dependency struct {
	Name    string
	Version string // raw constraint text, interpreted by internal/resolve

	// Source override fields; at most one group should be set.
	Repository string
	Git        string
	Tag        string
	Branch     string
	Commit     string
	URL        string
	Sha        string // optional sha256 checksum, verified when present (Url source only)
	Path       string

	// Optional detached-PGP-signature verification for a Url source,
	// supplementing the plain sha256 check: SigURL points at the
	// signature file, SigKeyURL at the armored public key, and
	// SigKeyFingerprint pins the expected key (all three required
	// together, or none).
	SigURL            string
	SigKeyURL         string
	SigKeyFingerprint string

	InstallSuggestions bool
	ForceSource        bool
}

// UnmarshalTOML implements custom decoding for the dependencies array,
// whose entries are either a bare package name string or an inline table
// (spec.md §6: "dependencies: seq<string | {name, repository?, git?,
// tag?, branch?, commit?, url?, path?, install_suggestions?,
// force_source?}>"), following the teacher's internal/recipe.Step
// pattern of probing a map[string]interface{} for optional fields.
func (d *Dependency) UnmarshalTOML(data interface{}) error {
	if name, ok := data.(string); ok {
		d.Name = name
		return nil
	}

	m, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("dependency entry must be a string or table, got %T", data)
	}

	if name, ok := m["name"].(string); ok {
		d.Name = name
	} else {
		return fmt.Errorf("dependency table missing required 'name' field")
	}

	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	b := func(key string) bool {
		if v, ok := m[key].(bool); ok {
			return v
		}
		return false
	}

	d.Version = str("version")
	d.Repository = str("repository")
	d.Git = str("git")
	d.Tag = str("tag")
	d.Branch = str("branch")
	d.Commit = str("commit")
	d.URL = str("url")
	d.Sha = str("sha")
	d.Path = str("path")
	d.SigURL = str("sig_url")
	d.SigKeyURL = str("sig_key_url")
	d.SigKeyFingerprint = str("sig_key_fingerprint")
	d.InstallSuggestions = b("install_suggestions")
	d.ForceSource = b("force_source")

	return nil
}

// ProjectSection is the `[project]` table of rproject.toml.
type ProjectSection struct {
	Name         string       `toml:"name"`
	RVersion     string       `toml:"r_version"`
	Repositories []Repository `toml:"repositories"`
	Dependencies []Dependency `toml:"dependencies"`
	UseLockfile  bool         `toml:"use_lockfile,omitempty"`
}

// Project is the parsed, validated project manifest.
type Project struct {
	Project ProjectSection `toml:"project"`
}

// Parse decodes manifest TOML text into a Project and validates the
// cross-field invariants spec.md §3 requires (unique repository aliases).
func Parse(data []byte) (*Project, error) {
	var p Project
	if _, err := toml.Decode(string(data), &p); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads and parses a manifest file from disk.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks invariants Parse alone cannot: repository alias
// uniqueness (spec.md §3: "aliases are unique within a manifest").
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.Project.Repositories))
	for _, r := range p.Project.Repositories {
		if r.Alias == "" {
			return fmt.Errorf("repository entry missing alias (url=%s)", r.URL)
		}
		if seen[r.Alias] {
			return fmt.Errorf("duplicate repository alias %q", r.Alias)
		}
		seen[r.Alias] = true
	}
	if p.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	return nil
}

// Encode serializes the project back to TOML, manually (mirroring the
// teacher's Recipe.ToTOML) rather than via the generic encoder, since
// Dependency's union of optional override fields doesn't round-trip
// cleanly through reflection-based encoding. This is the "lossy
// parse-validate-rewrite" path manifest.Editor documents: comments and
// key ordering in the original file are not preserved.
func (p *Project) Encode() ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("[project]\n")
	fmt.Fprintf(&buf, "name = %q\n", p.Project.Name)
	if p.Project.RVersion != "" {
		fmt.Fprintf(&buf, "r_version = %q\n", p.Project.RVersion)
	}
	if p.Project.UseLockfile {
		buf.WriteString("use_lockfile = true\n")
	}
	buf.WriteString("\n")

	for _, r := range p.Project.Repositories {
		buf.WriteString("[[project.repositories]]\n")
		fmt.Fprintf(&buf, "alias = %q\n", r.Alias)
		fmt.Fprintf(&buf, "url = %q\n", r.URL)
		if r.ForceSource {
			buf.WriteString("force_source = true\n")
		}
		buf.WriteString("\n")
	}

	for _, d := range p.Project.Dependencies {
		buf.WriteString("[[project.dependencies]]\n")
		fmt.Fprintf(&buf, "name = %q\n", d.Name)
		writeOptString(&buf, "version", d.Version)
		writeOptString(&buf, "repository", d.Repository)
		writeOptString(&buf, "git", d.Git)
		writeOptString(&buf, "tag", d.Tag)
		writeOptString(&buf, "branch", d.Branch)
		writeOptString(&buf, "commit", d.Commit)
		writeOptString(&buf, "url", d.URL)
		writeOptString(&buf, "sha", d.Sha)
		writeOptString(&buf, "path", d.Path)
		writeOptString(&buf, "sig_url", d.SigURL)
		writeOptString(&buf, "sig_key_url", d.SigKeyURL)
		writeOptString(&buf, "sig_key_fingerprint", d.SigKeyFingerprint)
		if d.InstallSuggestions {
			buf.WriteString("install_suggestions = true\n")
		}
		if d.ForceSource {
			buf.WriteString("force_source = true\n")
		}
		buf.WriteString("\n")
	}

	return []byte(buf.String()), nil
}

func writeOptString(buf *strings.Builder, key, value string) {
	if value != "" {
		fmt.Fprintf(buf, "%s = %q\n", key, value)
	}
}

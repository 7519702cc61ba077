package resolve

import (
	"fmt"
	"strings"

	"github.com/a2-ai/rv/internal/manifest"
	"github.com/a2-ai/rv/internal/rversion"
	"github.com/a2-ai/rv/internal/source"
)

// Declared is a root dependency entry seeded onto the resolver's
// worklist: a name, a version constraint, an optional source override,
// and the per-entry flags spec.md §3 names on a declared Dependency.
type Declared struct {
	Name               string
	Constraint         rversion.Constraint
	Override           *source.Source
	RepositoryAlias    string // pins resolution to one declared repository, if set
	InstallSuggestions bool
	ForceSource        bool
}

// FromManifest converts a parsed manifest.Dependency into the worklist
// seed Declared entry, parsing its raw constraint text and building a
// Source override from whichever override fields (git/url/path) are set
// (spec.md §3's Dependency model: "source-override?").
func FromManifest(d manifest.Dependency) (Declared, error) {
	decl := Declared{
		Name:               d.Name,
		RepositoryAlias:    d.Repository,
		InstallSuggestions: d.InstallSuggestions,
		ForceSource:        d.ForceSource,
	}

	constraint, err := ParseConstraint(d.Version)
	if err != nil {
		return Declared{}, fmt.Errorf("dependency %q: %w", d.Name, err)
	}
	decl.Constraint = constraint

	switch {
	case d.Git != "":
		gitURL, err := source.ParseGitURL(d.Git)
		if err != nil {
			return Declared{}, fmt.Errorf("dependency %q: %w", d.Name, err)
		}
		ref, err := gitReference(d)
		if err != nil {
			return Declared{}, fmt.Errorf("dependency %q: %w", d.Name, err)
		}
		src := source.FromGit(gitURL, ref, "")
		decl.Override = &src

	case d.URL != "":
		var src source.Source
		if d.SigURL != "" {
			src = source.FromURLSigned(d.URL, d.Sha, d.SigURL, d.SigKeyURL, d.SigKeyFingerprint)
		} else {
			src = source.FromURL(d.URL, d.Sha)
		}
		decl.Override = &src

	case d.Path != "":
		src := source.FromLocal(d.Path)
		decl.Override = &src
	}

	return decl, nil
}

// gitReference picks exactly one of Tag/Branch/Commit per spec.md §3's
// GitReference union; Tag takes precedence over Branch over Commit when
// more than one is set, matching the order they're listed in spec.md §6's
// manifest field list.
func gitReference(d manifest.Dependency) (source.GitReference, error) {
	switch {
	case d.Tag != "":
		return source.Tag(d.Tag), nil
	case d.Branch != "":
		return source.Branch(d.Branch), nil
	case d.Commit != "":
		return source.Commit(d.Commit), nil
	default:
		return source.GitReference{}, fmt.Errorf("git source requires one of tag, branch, or commit")
	}
}

// ParseConstraint interprets a declared dependency's raw constraint text
// into spec.md §3's constraint language (exact, >=, <=, range,
// unconstrained): empty is unconstrained, a ">=" or "<=" prefix is that
// bound, "lower,upper" is a range, and anything else is an exact version.
func ParseConstraint(raw string) (rversion.Constraint, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return rversion.Constraint{Kind: rversion.Unconstrained}, nil
	case strings.HasPrefix(raw, ">="):
		return rversion.ParseAtLeast(strings.TrimSpace(raw[2:]))
	case strings.HasPrefix(raw, "<="):
		return rversion.ParseAtMost(strings.TrimSpace(raw[2:]))
	case strings.Contains(raw, ","):
		parts := strings.SplitN(raw, ",", 2)
		return rversion.ParseRange(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	default:
		return rversion.ParseExact(raw)
	}
}

package rversion

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ConstraintKind discriminates the five forms a declared dependency's
// version constraint can take (spec.md §3: "Constraint is any of: exact,
// >=, <=, range, or unconstrained").
type ConstraintKind int

const (
	Unconstrained ConstraintKind = iota
	Exact
	AtLeast // >=
	AtMost  // <=
	Range   // >= lower, < upper
)

// Constraint pins or bounds a dependency's acceptable versions.
type Constraint struct {
	Kind ConstraintKind
	V    Version // used by Exact, AtLeast, AtMost

	// Range bounds, used only when Kind == Range.
	Lower Version
	Upper Version

	// semver is the Masterminds/semver/v3 constraint backing Range
	// satisfaction checks, built by ParseRange.
	semver *semver.Constraints
}

// ParseExact builds an exact-match constraint.
func ParseExact(s string) (Constraint, error) {
	v, err := Parse(s)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{Kind: Exact, V: v}, nil
}

// ParseAtLeast builds a ">=" constraint.
func ParseAtLeast(s string) (Constraint, error) {
	v, err := Parse(s)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{Kind: AtLeast, V: v}, nil
}

// ParseAtMost builds a "<=" constraint.
func ParseAtMost(s string) (Constraint, error) {
	v, err := Parse(s)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{Kind: AtMost, V: v}, nil
}

// ParseRange builds a "lower <= v < upper"-shaped constraint, delegating
// satisfaction checks to Masterminds/semver/v3 rather than reimplementing
// range comparison. semver.Version only models three numeric components
// plus pre-release/build metadata, so components past the third are folded
// into build metadata by toSemverVersion — per semver's own spec, build
// metadata takes no part in ordering or equality checks. That's an accepted
// approximation for the rare package whose version runs past three
// components and happens to need range-constraint resolution.
func ParseRange(lower, upper string) (Constraint, error) {
	lo, err := Parse(lower)
	if err != nil {
		return Constraint{}, fmt.Errorf("parsing range lower bound: %w", err)
	}
	hi, err := Parse(upper)
	if err != nil {
		return Constraint{}, fmt.Errorf("parsing range upper bound: %w", err)
	}

	expr := fmt.Sprintf(">= %s, < %s", toSemverVersion(lo).String(), toSemverVersion(hi).String())
	sc, err := semver.NewConstraint(expr)
	if err != nil {
		return Constraint{}, fmt.Errorf("building semver range %q: %w", expr, err)
	}

	return Constraint{Kind: Range, Lower: lo, Upper: hi, semver: sc}, nil
}

// toSemverVersion normalizes a Version onto semver's three-component model.
// Components beyond the third are joined with "." and carried as build
// metadata (e.g. "4.3.1.2" -> "4.3.1+2"); semver ignores build metadata for
// precedence, which is an acceptable loss of precision here since the
// Range variant is the only constraint kind routed through semver at all —
// exact/>=/<= use Version.Compare directly.
func toSemverVersion(v Version) *semver.Version {
	maj, min, patch := 0, 0, 0
	switch len(v.Components) {
	case 0:
	case 1:
		maj = v.Components[0]
	case 2:
		maj, min = v.Components[0], v.Components[1]
	default:
		maj, min, patch = v.Components[0], v.Components[1], v.Components[2]
	}

	s := fmt.Sprintf("%d.%d.%d", maj, min, patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if len(v.Components) > 3 {
		parts := make([]string, len(v.Components)-3)
		for i, c := range v.Components[3:] {
			parts[i] = fmt.Sprintf("%d", c)
		}
		s += "+" + strings.Join(parts, ".")
	}

	// s is always well-formed (three numeric components we built
	// ourselves), so the parse error is unreachable in practice.
	sv, _ := semver.NewVersion(s)
	return sv
}

// Satisfies reports whether v meets the constraint.
func (c Constraint) Satisfies(v Version) bool {
	switch c.Kind {
	case Unconstrained:
		return true
	case Exact:
		return v.Equal(c.V)
	case AtLeast:
		return !v.LessThan(c.V)
	case AtMost:
		return !c.V.LessThan(v)
	case Range:
		if c.semver == nil {
			return false
		}
		return c.semver.Check(toSemverVersion(v))
	default:
		return false
	}
}

// String renders the constraint for diagnostics and lockfile output.
func (c Constraint) String() string {
	switch c.Kind {
	case Unconstrained:
		return ""
	case Exact:
		return "==" + c.V.String()
	case AtLeast:
		return ">=" + c.V.String()
	case AtMost:
		return "<=" + c.V.String()
	case Range:
		return fmt.Sprintf(">=%s, <%s", c.Lower, c.Upper)
	default:
		return "?"
	}
}

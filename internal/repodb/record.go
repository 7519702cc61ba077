// Package repodb implements the Repository Database: a per-repository
// index of available package versions and their metadata, parsed from
// upstream PACKAGES-style manifests (spec.md §4.1) and persisted to the
// disk cache in a small binary form.
package repodb

import (
	"fmt"

	"github.com/a2-ai/rv/internal/rversion"
)

// DepOp is one of the five comparison operators a PACKAGES dependency
// field may carry (spec.md §4.1: "op ∈ {>=, <=, ==, >, <}").
type DepOp string

const (
	OpNone DepOp = ""
	OpGE   DepOp = ">="
	OpLE   DepOp = "<="
	OpEQ   DepOp = "=="
	OpGT   DepOp = ">"
	OpLT   DepOp = "<"
)

// Dep is one entry of a comma-separated dependency field: a package name,
// optionally bounded by "(op version)".
type Dep struct {
	Name    string
	Op      DepOp
	Version rversion.Version // zero value when Op == OpNone
}

// Constraint converts the PACKAGES-level operator into the declared-
// dependency constraint language of spec.md §3 (exact, >=, <=, range,
// unconstrained). The constraint language has no strict "<" / ">" form,
// so OpGT/OpLT are folded into their inclusive counterparts — a
// documented approximation, since R's own dependency resolution treats
// "R (>= 3.5.0)" and "R (> 3.4.9)" identically in practice.
func (d Dep) Constraint() (rversion.Constraint, error) {
	switch d.Op {
	case OpNone:
		return rversion.Constraint{Kind: rversion.Unconstrained}, nil
	case OpEQ:
		return rversion.Constraint{Kind: rversion.Exact, V: d.Version}, nil
	case OpGE, OpGT:
		return rversion.Constraint{Kind: rversion.AtLeast, V: d.Version}, nil
	case OpLE, OpLT:
		return rversion.Constraint{Kind: rversion.AtMost, V: d.Version}, nil
	default:
		return rversion.Constraint{}, fmt.Errorf("unknown dependency operator %q", d.Op)
	}
}

func (d Dep) String() string {
	if d.Op == OpNone {
		return d.Name
	}
	return fmt.Sprintf("%s (%s %s)", d.Name, d.Op, d.Version)
}

// PackageRecord is one version entry of a repository's index: the fields
// spec.md §4.1 names as recognized ("Package, Version, Depends, Imports,
// LinkingTo, Suggests, Enhances, NeedsCompilation, License, Path, Archs").
type PackageRecord struct {
	Name    string
	Version rversion.Version

	Depends   []Dep
	Imports   []Dep
	LinkingTo []Dep
	Suggests  []Dep
	Enhances  []Dep

	// NeedsCompilation mirrors the PACKAGES field verbatim. For a record
	// with NeedsCompilation == false, internal/plan links a downloaded
	// source archive directly instead of adding a Compile step — the
	// common case for pure-script packages, which ship no compiled code
	// at all. Whether a binary is downloaded depends on plan.Package's
	// BinaryURL, not on this field.
	NeedsCompilation bool

	License string
	Path    string   // relative path override, used by CRAN-style "contrib" layouts
	Archs   []string // architectures this record's binary artifact was built for
}

// dependencyFields returns the three edge lists the resolver's worklist
// traversal (spec.md §4.3 step 4) pushes, in the fixed order
// Depends, Imports, LinkingTo — Suggests is pushed separately, gated on
// install_suggestions, and Enhances is never pushed (SPEC_FULL.md §8
// Open Question #2).
func (p PackageRecord) dependencyFields() [][]Dep {
	return [][]Dep{p.Depends, p.Imports, p.LinkingTo}
}

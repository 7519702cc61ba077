// Package plan turns a resolved dependency graph plus current cache state
// into an ordered build plan: a pure function with no I/O (spec.md §4.4).
package plan

import (
	"fmt"
	"sort"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/resolve"
	"github.com/a2-ai/rv/internal/source"
)

// StepKind discriminates the six ways a package can move from "resolved"
// to "present in the project library" (spec.md §4.4).
type StepKind int

const (
	UseCached StepKind = iota
	DownloadBinary
	DownloadSource
	Compile
	Link
	GitFetch
)

func (k StepKind) String() string {
	switch k {
	case UseCached:
		return "use_cached"
	case DownloadBinary:
		return "download_binary"
	case DownloadSource:
		return "download_source"
	case Compile:
		return "compile"
	case Link:
		return "link"
	case GitFetch:
		return "git_fetch"
	default:
		return "?"
	}
}

// CacheTier names which cache tier UseCached is pulling from.
type CacheTier int

const (
	TierLocal CacheTier = iota
	TierGlobal
)

func (t CacheTier) String() string {
	if t == TierGlobal {
		return "global"
	}
	return "local"
}

// BuildStep is one task in a BuildPlan. Only the fields relevant to Kind
// are populated; it is a tagged union, not six separate step types, so
// the sync handler can schedule a plan as a single homogeneous slice.
type BuildStep struct {
	ID      string
	Kind    StepKind
	Package string

	// UseCached
	From     CacheTier
	LinkMode cache.LinkMode

	// DownloadBinary, DownloadSource
	URL string
	SHA string // optional sha256 checksum to verify (Url source only)

	// Optional detached-PGP-signature verification (Url source only).
	SigURL            string
	SigKeyURL         string
	SigKeyFingerprint string

	// Compile
	SourcePath string

	// Link
	CacheFrom  string
	ProjectLib string

	// GitFetch
	GitURL    source.GitURL
	GitRef    source.GitReference
	Into      string

	DependsOn []string
}

// BuildPlan is the ordered sequence of steps the sync handler executes.
type BuildPlan struct {
	Steps []BuildStep
}

// Package is one resolved dependency enriched with what the planner needs
// to decide how to obtain it: its current cache status, and whatever a
// repository offers for this package on the active platform. Computing
// BinaryURL/SourceURL from a repository's PACKAGES layout and the active
// platform is the caller's job (it requires knowing the platform and the
// repository's path layout); the planner itself touches no repository or
// filesystem state.
type Package struct {
	resolve.ResolvedDependency
	Cache     cache.CacheStatus
	BinaryURL string // set when a repository offers a binary matching the active platform
	SourceURL string // set when a repository offers source (CRAN-style repos always do)
}

// Build constructs an ordered BuildPlan from packages, which must already
// be in the topological order resolve.Resolver.Resolve produces (spec.md
// §4.4: "applied per package in topological order"). linkMode is the
// configured LinkMode for every Link step; projectLib is the destination
// project library directory.
func Build(packages []Package, linkMode cache.LinkMode, projectLib string) (BuildPlan, error) {
	var plan BuildPlan
	artifactStep := make(map[string]string, len(packages))

	for _, p := range packages {
		if p.System {
			continue // not installed (spec.md §4.3 step 5)
		}

		steps, artifactID, err := planOne(p, artifactStep, linkMode, projectLib)
		if err != nil {
			return BuildPlan{}, err
		}
		artifactStep[p.Name] = artifactID
		plan.Steps = append(plan.Steps, steps...)
	}

	return plan, nil
}

func stepID(pkg string, kind StepKind) string {
	return fmt.Sprintf("%s:%s", pkg, kind)
}

// dependencyArtifacts returns the sorted, stable list of artifact-producing
// step ids for p's resolved dependencies that are themselves planned
// (system packages and anything not yet planned are skipped).
func dependencyArtifacts(p Package, artifactStep map[string]string) []string {
	names := make([]string, 0, len(p.Dependencies))
	for n := range p.Dependencies {
		names = append(names, n)
	}
	sort.Strings(names)

	var deps []string
	for _, n := range names {
		if id, ok := artifactStep[n]; ok && id != "" {
			deps = append(deps, id)
		}
	}
	return deps
}

// planOne emits the steps for a single package per the decision table of
// spec.md §4.4, in priority order: already-cached forms win over anything
// requiring network or compute, a repository-offered binary beats source,
// and source-override kinds (Git, Url, Local) are the fallback when no
// repository is involved at all.
func planOne(p Package, artifactStep map[string]string, linkMode cache.LinkMode, projectLib string) ([]BuildStep, string, error) {
	compileDesired := p.NeedsCompilation || p.FromSource

	switch {
	case p.Cache.BinaryAvailable() && !p.FromSource:
		tier := TierLocal
		if !p.Cache.Local.BinaryAvailable() {
			tier = TierGlobal
		}
		artifactID := stepID(p.Name, UseCached)
		useCached := BuildStep{
			ID: artifactID, Kind: UseCached, Package: p.Name,
			From: tier, LinkMode: linkMode,
		}
		link := linkStep(p.Name, artifactID, linkMode, projectLib)
		return []BuildStep{useCached, link}, artifactID, nil

	case p.Cache.SourceAvailable() && compileDesired:
		artifactID := stepID(p.Name, Compile)
		compile := BuildStep{
			ID: artifactID, Kind: Compile, Package: p.Name,
			DependsOn: dependencyArtifacts(p, artifactStep),
		}
		link := linkStep(p.Name, artifactID, linkMode, projectLib)
		return []BuildStep{compile, link}, artifactID, nil

	case p.Source.Kind == source.KindRepository && p.BinaryURL != "" && !p.FromSource:
		artifactID := stepID(p.Name, DownloadBinary)
		dl := BuildStep{ID: artifactID, Kind: DownloadBinary, Package: p.Name, URL: p.BinaryURL}
		link := linkStep(p.Name, artifactID, linkMode, projectLib)
		return []BuildStep{dl, link}, artifactID, nil

	case p.Source.Kind == source.KindRepository && p.SourceURL != "":
		return downloadThenMaybeCompile(p, p.SourceURL, "", "", "", "", artifactStep, linkMode, projectLib)

	case p.Source.Kind == source.KindGit:
		fetchID := stepID(p.Name, GitFetch)
		fetch := BuildStep{
			ID: fetchID, Kind: GitFetch, Package: p.Name,
			GitURL: p.Source.GitURL, GitRef: p.Source.GitReference, Into: p.Source.GitSubdir,
		}
		compileID := stepID(p.Name, Compile)
		compile := BuildStep{
			ID: compileID, Kind: Compile, Package: p.Name,
			DependsOn: append([]string{fetchID}, dependencyArtifacts(p, artifactStep)...),
		}
		link := linkStep(p.Name, compileID, linkMode, projectLib)
		return []BuildStep{fetch, compile, link}, compileID, nil

	case p.Source.Kind == source.KindURL:
		return downloadThenMaybeCompile(p, p.Source.URL, p.Source.SHA, p.Source.SigURL, p.Source.SigKeyURL, p.Source.SigKeyFingerprint, artifactStep, linkMode, projectLib)

	case p.Source.Kind == source.KindLocal:
		artifactID := stepID(p.Name, Compile)
		if !p.NeedsCompilation {
			// A local source tree that needs no compilation is linked
			// directly; there is nothing to build.
			link := linkStepFrom(p.Name, p.Source.Path, linkMode, projectLib)
			return []BuildStep{link}, link.ID, nil
		}
		compile := BuildStep{
			ID: artifactID, Kind: Compile, Package: p.Name, SourcePath: p.Source.Path,
			DependsOn: dependencyArtifacts(p, artifactStep),
		}
		link := linkStep(p.Name, artifactID, linkMode, projectLib)
		return []BuildStep{compile, link}, artifactID, nil
	}

	return nil, "", fmt.Errorf("plan: no applicable rule for package %q (source kind %v)", p.Name, p.Source.Kind)
}

// downloadThenMaybeCompile implements the "Repository offers source" and
// "Source is Url" rows: DownloadSource, then Compile only if the package
// actually needs it.
func downloadThenMaybeCompile(p Package, url, sha, sigURL, sigKeyURL, sigKeyFingerprint string, artifactStep map[string]string, linkMode cache.LinkMode, projectLib string) ([]BuildStep, string, error) {
	downloadID := stepID(p.Name, DownloadSource)
	download := BuildStep{
		ID: downloadID, Kind: DownloadSource, Package: p.Name, URL: url, SHA: sha,
		SigURL: sigURL, SigKeyURL: sigKeyURL, SigKeyFingerprint: sigKeyFingerprint,
	}

	if !p.NeedsCompilation {
		link := linkStep(p.Name, downloadID, linkMode, projectLib)
		return []BuildStep{download, link}, downloadID, nil
	}

	compileID := stepID(p.Name, Compile)
	compile := BuildStep{
		ID: compileID, Kind: Compile, Package: p.Name,
		DependsOn: append([]string{downloadID}, dependencyArtifacts(p, artifactStep)...),
	}
	link := linkStep(p.Name, compileID, linkMode, projectLib)
	return []BuildStep{download, compile, link}, compileID, nil
}

func linkStep(pkg, from string, linkMode cache.LinkMode, projectLib string) BuildStep {
	return BuildStep{
		ID: stepID(pkg, Link), Kind: Link, Package: pkg,
		CacheFrom: from, LinkMode: linkMode, ProjectLib: projectLib,
		DependsOn: []string{from},
	}
}

// linkStepFrom is used only for the KindLocal/no-compile case, where
// CacheFrom is a filesystem path rather than another step's id.
func linkStepFrom(pkg, path string, linkMode cache.LinkMode, projectLib string) BuildStep {
	return BuildStep{
		ID: stepID(pkg, Link), Kind: Link, Package: pkg,
		CacheFrom: path, LinkMode: linkMode, ProjectLib: projectLib,
	}
}

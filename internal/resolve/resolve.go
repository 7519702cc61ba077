// Package resolve implements the dependency resolver: given a root
// dependency set, it produces a dependency graph satisfying version
// bounds and platform constraints (spec.md §4.3).
package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/a2-ai/rv/internal/repodb"
	"github.com/a2-ai/rv/internal/rversion"
	"github.com/a2-ai/rv/internal/source"
)

// ResolvedDependency is one fully-placed entry in the resolution's
// output graph (spec.md §3). Dependencies is the set of names the
// resolver pushed onto the worklist on this package's behalf — the
// union of Depends/Imports/LinkingTo, plus Suggests when
// InstallSuggestions was requested — with the self-suggestion edge
// already dropped.
type ResolvedDependency struct {
	Name               string
	Version            rversion.Version
	Source             source.Source
	Dependencies       map[string]bool
	FromSource         bool
	InstallSuggestions bool
	NeedsCompilation   bool
	System             bool // true for a synthetic system-package entry
}

// UnresolvedKind discriminates the three per-package resolution failure
// modes of spec.md §7's ResolutionError taxonomy.
type UnresolvedKind int

const (
	Missing UnresolvedKind = iota
	VersionConflict
	SourceOverrideFailed
)

func (k UnresolvedKind) String() string {
	switch k {
	case Missing:
		return "missing"
	case VersionConflict:
		return "version conflict"
	case SourceOverrideFailed:
		return "source override failed"
	default:
		return "unknown"
	}
}

// Unresolved records one package the resolver could not place, with
// enough detail to report all missing/conflicting names at once (spec.md
// §4.3: "resolver is total... so the caller may report all missing
// names at once").
type Unresolved struct {
	Name string
	Kind UnresolvedKind
	Want rversion.Constraint // set for VersionConflict
	Have rversion.Version    // set for VersionConflict
	Err  error                // set for SourceOverrideFailed
}

func (u Unresolved) Error() string {
	switch u.Kind {
	case VersionConflict:
		return fmt.Sprintf("%s: requested %s, already resolved to %s", u.Name, u.Want, u.Have)
	case SourceOverrideFailed:
		return fmt.Sprintf("%s: source override failed: %v", u.Name, u.Err)
	default:
		return fmt.Sprintf("%s: not found in any repository", u.Name)
	}
}

// RepoEntry is one repository's loaded database, in the declared order
// spec.md §4.3 requires ties to respect ("order is significant: first
// repository wins ties").
type RepoEntry struct {
	Alias string
	URL   string
	DB    *repodb.RepositoryDatabase
}

// OverrideMetadata is what an OverrideFetcher returns for a Git/Url/Local
// source: the version and sub-dependency names its own package manifest
// declares (spec.md §4.3 step 3, "fetch its metadata lazily via the
// Cache... that metadata supplies the version and sub-dependencies").
type OverrideMetadata struct {
	Version          rversion.Version
	Depends          []string
	Imports          []string
	LinkingTo        []string
	Suggests         []string
	NeedsCompilation bool
}

// OverrideFetcher resolves the metadata of a source-override dependency
// (Git, Url, or Local) by fetching and parsing its own package manifest.
type OverrideFetcher interface {
	FetchMetadata(ctx context.Context, name string, src source.Source) (OverrideMetadata, error)
}

// Resolver runs the worklist traversal of spec.md §4.3 against a fixed
// set of repositories, in their declared order, and a fixed R
// version/platform (carried only insofar as the caller's RepoEntry list
// already reflects them — the resolver itself is platform-agnostic over
// pre-filtered databases).
type Resolver struct {
	Repos           []RepoEntry
	SystemPackages  map[string]bool
	Overrides       OverrideFetcher
}

// workItem is one pending worklist entry.
type workItem struct {
	name               string
	constraint         rversion.Constraint
	override           *source.Source
	repositoryAlias    string
	installSuggestions bool
	forceSource        bool
	from               string // package name that pushed this edge; "" for roots
}

// Resolve runs the worklist traversal over root and returns the resolved
// graph plus any packages that could not be placed. It never returns an
// error for missing or conflicting packages — those are reported via the
// unresolved slice (spec.md §4.3: "resolver is total").
func (r *Resolver) Resolve(ctx context.Context, roots []Declared) (resolved []ResolvedDependency, unresolved []Unresolved, err error) {
	resolvedMap := make(map[string]*ResolvedDependency)
	var unresolvedList []Unresolved
	seenUnresolved := make(map[string]bool)

	queue := make([]workItem, 0, len(roots))
	for _, d := range roots {
		queue = append(queue, workItem{
			name:               d.Name,
			constraint:         d.Constraint,
			override:           d.Override,
			repositoryAlias:    d.RepositoryAlias,
			installSuggestions: d.InstallSuggestions,
			forceSource:        d.ForceSource,
		})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		// Self-suggestion edge: a package that lists itself in Suggests
		// must be tolerated and ignored (spec.md §3, §4.3 step 4).
		if item.name == item.from {
			continue
		}

		if r.SystemPackages[item.name] {
			if _, ok := resolvedMap[item.name]; !ok {
				resolvedMap[item.name] = &ResolvedDependency{
					Name:         item.name,
					Dependencies: map[string]bool{},
					System:       true,
				}
			}
			continue
		}

		if existing, ok := resolvedMap[item.name]; ok {
			if item.constraint.Satisfies(existing.Version) {
				continue
			}
			key := item.name + "#conflict"
			if !seenUnresolved[key] {
				seenUnresolved[key] = true
				unresolvedList = append(unresolvedList, Unresolved{
					Name: item.name,
					Kind: VersionConflict,
					Want: item.constraint,
					Have: existing.Version,
				})
			}
			continue
		}

		rec, resolvedDep, ok, ures := r.resolveOne(ctx, item)
		if !ok {
			if !seenUnresolved[item.name] {
				seenUnresolved[item.name] = true
				unresolvedList = append(unresolvedList, ures)
			}
			continue
		}

		edges := pushEdges(item.name, rec, item.installSuggestions)
		for _, e := range edges {
			if e.name == item.name {
				continue // self-suggestion edge, dropped (see ResolvedDependency)
			}
			resolvedDep.Dependencies[e.name] = true
		}

		resolvedMap[item.name] = &resolvedDep
		queue = append(queue, edges...)
	}

	out := make([]ResolvedDependency, 0, len(resolvedMap))
	for _, dep := range resolvedMap {
		out = append(out, *dep)
	}
	sorted, err := topoSort(out)
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(unresolvedList, func(i, j int) bool { return unresolvedList[i].Name < unresolvedList[j].Name })
	return sorted, unresolvedList, nil
}

// edge is one outgoing dependency pointer, carrying whatever version
// bound its origin record specified (spec.md §4.3 step 4: "Push its
// Depends, Imports, and LinkingTo onto the worklist with the empty
// constraint unless the record specifies one").
type edge struct {
	name       string
	constraint rversion.Constraint
}

// resolvedRecord is the minimal shape resolveOne needs regardless of
// whether the package came from a repository or an override fetch.
type resolvedRecord struct {
	depends          []edge
	imports          []edge
	linkingTo        []edge
	suggests         []edge
	needsCompilation bool
}

func (r *Resolver) resolveOne(ctx context.Context, item workItem) (resolvedRecord, ResolvedDependency, bool, Unresolved) {
	if item.override != nil {
		if r.Overrides == nil {
			return resolvedRecord{}, ResolvedDependency{}, false, Unresolved{
				Name: item.name, Kind: SourceOverrideFailed,
				Err: fmt.Errorf("no override fetcher configured"),
			}
		}
		meta, err := r.Overrides.FetchMetadata(ctx, item.name, *item.override)
		if err != nil {
			return resolvedRecord{}, ResolvedDependency{}, false, Unresolved{
				Name: item.name, Kind: SourceOverrideFailed, Err: err,
			}
		}
		dep := ResolvedDependency{
			Name:               item.name,
			Version:            meta.Version,
			Source:             *item.override,
			Dependencies:       map[string]bool{},
			FromSource:         true,
			InstallSuggestions: item.installSuggestions,
			NeedsCompilation:   meta.NeedsCompilation,
		}
		return resolvedRecord{
			depends: unconstrainedEdges(meta.Depends), imports: unconstrainedEdges(meta.Imports),
			linkingTo: unconstrainedEdges(meta.LinkingTo), suggests: unconstrainedEdges(meta.Suggests),
			needsCompilation: meta.NeedsCompilation,
		}, dep, true, Unresolved{}
	}

	for _, repo := range r.Repos {
		if item.repositoryAlias != "" && repo.Alias != item.repositoryAlias {
			continue
		}
		rec, ok := repo.DB.Latest(item.name, item.constraint)
		if !ok {
			continue
		}
		dep := ResolvedDependency{
			Name:               item.name,
			Version:            rec.Version,
			Source:             source.FromRepository(repo.Alias, repo.URL, item.name, rec.Version),
			Dependencies:       map[string]bool{},
			InstallSuggestions: item.installSuggestions,
			NeedsCompilation:   rec.NeedsCompilation,
			FromSource:         item.forceSource,
		}
		return resolvedRecord{
			depends:          toEdges(rec.Depends),
			imports:          toEdges(rec.Imports),
			linkingTo:        toEdges(rec.LinkingTo),
			suggests:         toEdges(rec.Suggests),
			needsCompilation: rec.NeedsCompilation,
		}, dep, true, Unresolved{}
	}

	return resolvedRecord{}, ResolvedDependency{}, false, Unresolved{Name: item.name, Kind: Missing}
}

// toEdges converts a PACKAGES-format dependency field into resolver
// edges, carrying the field's own version bound as the edge's
// constraint (spec.md §4.3 step 4).
func toEdges(deps []repodb.Dep) []edge {
	edges := make([]edge, 0, len(deps))
	for _, d := range deps {
		c, err := d.Constraint()
		if err != nil {
			c = rversion.Constraint{Kind: rversion.Unconstrained}
		}
		edges = append(edges, edge{name: d.Name, constraint: c})
	}
	return edges
}

func unconstrainedEdges(names []string) []edge {
	edges := make([]edge, len(names))
	for i, n := range names {
		edges[i] = edge{name: n, constraint: rversion.Constraint{Kind: rversion.Unconstrained}}
	}
	return edges
}

// pushEdges builds the worklist items for one resolved package's
// dependency fields (spec.md §4.3 step 4): Depends, Imports, and
// LinkingTo always; Suggests only when installSuggestions was requested
// on the originating declared dependency.
func pushEdges(from string, rec resolvedRecord, installSuggestions bool) []workItem {
	var items []workItem
	push := func(edges []edge) {
		for _, e := range edges {
			items = append(items, workItem{name: e.name, constraint: e.constraint, from: from})
		}
	}
	push(rec.depends)
	push(rec.imports)
	push(rec.linkingTo)
	if installSuggestions {
		push(rec.suggests)
	}
	return items
}

// topoSort orders resolved dependencies so that every dependency
// precedes its dependents (spec.md §8 invariant 1), ties broken by name
// ascending for determinism (spec.md §4.3, "ties broken by name
// ascending").
func topoSort(deps []ResolvedDependency) ([]ResolvedDependency, error) {
	byName := make(map[string]ResolvedDependency, len(deps))
	for _, d := range deps {
		byName[d.Name] = d
	}

	visited := make(map[string]int) // 0 unvisited, 1 in-progress, 2 done
	var order []ResolvedDependency

	names := make([]string, 0, len(deps))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("dependency cycle detected at %q", name)
		}
		visited[name] = 1

		dep := byName[name]
		depNames := make([]string, 0, len(dep.Dependencies))
		for n := range dep.Dependencies {
			depNames = append(depNames, n)
		}
		sort.Strings(depNames)
		for _, n := range depNames {
			if _, ok := byName[n]; !ok {
				continue // system package or otherwise not in this graph
			}
			if err := visit(n); err != nil {
				return err
			}
		}

		visited[name] = 2
		order = append(order, dep)
		return nil
	}

	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}

	return order, nil
}

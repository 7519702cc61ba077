package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a2-ai/rv/internal/repodb"
	"github.com/a2-ai/rv/internal/rversion"
)

func dbFrom(t *testing.T, packages string) *repodb.RepositoryDatabase {
	t.Helper()
	records, err := repodb.ParsePACKAGES([]byte(packages))
	require.NoError(t, err)
	return repodb.New(records)
}

// TestSelfSuggestCycle is scenario S1 (spec.md §8): a repo offering
// "covr 3.6.5" with Suggests: covr, and a manifest declaring
// install_suggestions for covr, must resolve to exactly one entry with
// no self-edge and no unresolved names.
func TestSelfSuggestCycle(t *testing.T) {
	db := dbFrom(t, `Package: covr
Version: 3.6.5
Suggests: covr
NeedsCompilation: no
`)

	r := &Resolver{
		Repos:          []RepoEntry{{Alias: "cran", URL: "https://cran.example/src", DB: db}},
		SystemPackages: DefaultSystemPackages,
	}

	resolved, unresolved, err := r.Resolve(context.Background(), []Declared{
		{Name: "covr", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}, InstallSuggestions: true},
	})

	require.NoError(t, err)
	require.Empty(t, unresolved)
	require.Len(t, resolved, 1)
	require.Equal(t, "covr", resolved[0].Name)
	require.False(t, resolved[0].Dependencies["covr"])
}

// TestVersionPrecedence is scenario S4: two repositories both offer
// pkg 1.0 and pkg 1.1; the repository declared first wins regardless of
// which carries the newer version.
func TestVersionPrecedence(t *testing.T) {
	first := dbFrom(t, `Package: pkg
Version: 1.0
`)
	second := dbFrom(t, `Package: pkg
Version: 1.1
`)

	r := &Resolver{
		Repos: []RepoEntry{
			{Alias: "first", URL: "https://first.example", DB: first},
			{Alias: "second", URL: "https://second.example", DB: second},
		},
		SystemPackages: DefaultSystemPackages,
	}

	resolved, unresolved, err := r.Resolve(context.Background(), []Declared{
		{Name: "pkg", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}},
	})

	require.NoError(t, err)
	require.Empty(t, unresolved)
	require.Len(t, resolved, 1)
	require.Equal(t, "1.0", resolved[0].Version.String())
	require.Equal(t, "first", resolved[0].Source.RepositoryAlias)
}

func TestMissingPackageReportedAsUnresolvedNotFatal(t *testing.T) {
	db := dbFrom(t, `Package: present
Version: 1.0
`)
	r := &Resolver{
		Repos:          []RepoEntry{{Alias: "cran", URL: "x", DB: db}},
		SystemPackages: DefaultSystemPackages,
	}

	resolved, unresolved, err := r.Resolve(context.Background(), []Declared{
		{Name: "present", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}},
		{Name: "absent", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}},
	})

	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Len(t, unresolved, 1)
	require.Equal(t, "absent", unresolved[0].Name)
	require.Equal(t, Missing, unresolved[0].Kind)
}

func TestTopologicalOrderDependenciesPrecedeDependents(t *testing.T) {
	db := dbFrom(t, `Package: app
Version: 1.0
Imports: lib

Package: lib
Version: 2.0
`)
	r := &Resolver{
		Repos:          []RepoEntry{{Alias: "cran", URL: "x", DB: db}},
		SystemPackages: DefaultSystemPackages,
	}

	resolved, unresolved, err := r.Resolve(context.Background(), []Declared{
		{Name: "app", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}},
	})
	require.NoError(t, err)
	require.Empty(t, unresolved)
	require.Len(t, resolved, 2)
	require.Equal(t, "lib", resolved[0].Name)
	require.Equal(t, "app", resolved[1].Name)
}

func TestSystemPackagesResolveSyntheticallyAndAreNotInstalled(t *testing.T) {
	db := dbFrom(t, `Package: pkg
Version: 1.0
Depends: R (>= 3.5.0), stats
`)
	r := &Resolver{
		Repos:          []RepoEntry{{Alias: "cran", URL: "x", DB: db}},
		SystemPackages: DefaultSystemPackages,
	}

	resolved, unresolved, err := r.Resolve(context.Background(), []Declared{
		{Name: "pkg", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}},
	})
	require.NoError(t, err)
	require.Empty(t, unresolved)

	var r_, stats *ResolvedDependency
	for i := range resolved {
		switch resolved[i].Name {
		case "R":
			r_ = &resolved[i]
		case "stats":
			stats = &resolved[i]
		}
	}
	require.NotNil(t, r_)
	require.True(t, r_.System)
	require.NotNil(t, stats)
	require.True(t, stats.System)
}

func TestVersionConflictReportedAsUnresolved(t *testing.T) {
	db := dbFrom(t, `Package: a
Version: 1.0
Depends: shared (== 1.0)

Package: b
Version: 1.0
Depends: shared (== 2.0)

Package: shared
Version: 1.0

Package: shared
Version: 2.0
`)
	r := &Resolver{
		Repos:          []RepoEntry{{Alias: "cran", URL: "x", DB: db}},
		SystemPackages: DefaultSystemPackages,
	}

	_, unresolved, err := r.Resolve(context.Background(), []Declared{
		{Name: "a", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}},
		{Name: "b", Constraint: rversion.Constraint{Kind: rversion.Unconstrained}},
	})
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, VersionConflict, unresolved[0].Kind)
}

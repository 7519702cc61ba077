package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/httpio"
	"github.com/a2-ai/rv/internal/lockfile"
	"github.com/a2-ai/rv/internal/manifest"
	"github.com/a2-ai/rv/internal/platform"
	"github.com/a2-ai/rv/internal/plan"
	"github.com/a2-ai/rv/internal/repodb"
	"github.com/a2-ai/rv/internal/resolve"
	"github.com/a2-ai/rv/internal/rvconfig"
	"github.com/a2-ai/rv/internal/rversion"
	"github.com/a2-ai/rv/internal/source"
)

// projectContext bundles everything resolve/plan need once the manifest
// is loaded and the active R version/platform are pinned: it is the CLI's
// translation of spec.md §6's manifest fields into the core pipeline's
// inputs.
type projectContext struct {
	Project      *manifest.Project
	RVersion     rversion.Version
	Target       platform.Target
	Codename     string
	CacheRoot    string
	ToolchainDir string
	ProjectLib   string
	HTTP         *httpio.Client

	// resolved is populated by resolveAll and consulted by the sync hooks
	// (sync_hooks.go), which only see a package name on a plan.BuildStep
	// and need its full Source/Version to compute cache paths.
	resolved map[string]resolve.ResolvedDependency
}

// loadProjectContext reads the manifest at configFileFlag, resolves the
// active R version and platform (flag overrides manifest, manifest
// overrides host detection), and computes the cache/project-library
// paths every subcommand needs.
func loadProjectContext() (*projectContext, error) {
	proj, err := manifest.Load(configFileFlag)
	if err != nil {
		return nil, err
	}

	rv := rVersionFlag
	if rv == "" {
		rv = proj.Project.RVersion
	}
	version, err := rversion.Parse(rv)
	if err != nil {
		return nil, fmt.Errorf("invalid r_version %q: %w", rv, err)
	}

	target, codename, err := resolveTarget()
	if err != nil {
		return nil, err
	}

	root := cacheDirFlag
	if root == "" {
		root, err = rvconfig.CacheRoot()
		if err != nil {
			return nil, err
		}
	}
	slug := cache.PlatformSlug(target, codename)
	toolchainDir := cache.ToolchainRoot(root, version, slug)

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return &projectContext{
		Project:      proj,
		RVersion:     version,
		Target:       target,
		Codename:     codename,
		CacheRoot:    root,
		ToolchainDir: toolchainDir,
		ProjectLib:   filepath.Join(wd, "rv_library"),
		HTTP:         httpio.NewClient(),
	}, nil
}

// resolveTarget picks the active Target: --distribution, when set,
// resolves to one of the five presets (spec.md §6); otherwise the host
// platform is detected directly.
func resolveTarget() (platform.Target, string, error) {
	if distributionFlag != "" {
		d, err := platform.ParseDistribution(distributionFlag)
		if err != nil {
			return platform.Target{}, "", newUsageError("%v", err)
		}
		t, err := d.Target()
		return t, d.Codename(), err
	}

	t, err := platform.DetectTarget()
	if err != nil {
		return platform.Target{}, "", fmt.Errorf("detecting host platform: %w", err)
	}
	release, relErr := platform.ParseOSRelease("/etc/os-release")
	codename := ""
	if relErr == nil {
		codename = release.VersionCodename
	}
	return t, codename, nil
}

// loadRepositories loads (from cache, or by fetching and persisting) the
// PACKAGES database for every repository the manifest declares, in
// declared order (spec.md §4.3: "order is significant: first repository
// wins ties").
func (pc *projectContext) loadRepositories(ctx context.Context) ([]resolve.RepoEntry, error) {
	entries := make([]resolve.RepoEntry, 0, len(pc.Project.Project.Repositories))
	for _, r := range pc.Project.Project.Repositories {
		db, err := pc.loadOneRepository(ctx, r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, resolve.RepoEntry{Alias: r.Alias, URL: r.URL, DB: db})
	}
	return entries, nil
}

func (pc *projectContext) loadOneRepository(ctx context.Context, r manifest.Repository) (*repodb.RepositoryDatabase, error) {
	dbPath := cache.RepositoryDBPath(pc.ToolchainDir, r.URL)

	if db, err := repodb.ReadSnapshot(dbPath); err == nil {
		return db, nil
	}

	packagesURL := r.URL + "/src/contrib/PACKAGES"
	var buf countingBuffer
	n, err := pc.HTTP.Download(ctx, packagesURL, &buf, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %q: %w", r.Alias, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("repository %q: PACKAGES not found at %s", r.Alias, packagesURL)
	}

	db, err := repodb.Load(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parsing repository %q: %w", r.Alias, err)
	}
	if err := repodb.Persist(db, dbPath); err != nil {
		return nil, fmt.Errorf("caching repository %q: %w", r.Alias, err)
	}
	return db, nil
}

type countingBuffer struct{ buf []byte }

func (b *countingBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}
func (b *countingBuffer) Bytes() []byte { return b.buf }

// resolveAll runs the resolver over the manifest's declared dependencies
// against the loaded repositories, returning an error that aggregates
// every unresolved name (spec.md §4.3: the resolver itself never fails
// outright; the CLI is what turns a non-empty unresolved list into a
// reported failure).
func (pc *projectContext) resolveAll(ctx context.Context) ([]resolve.ResolvedDependency, error) {
	repos, err := pc.loadRepositories(ctx)
	if err != nil {
		return nil, err
	}

	declared := make([]resolve.Declared, 0, len(pc.Project.Project.Dependencies))
	for _, d := range pc.Project.Project.Dependencies {
		decl, err := resolve.FromManifest(d)
		if err != nil {
			return nil, err
		}
		declared = append(declared, decl)
	}

	r := &resolve.Resolver{Repos: repos, SystemPackages: resolve.DefaultSystemPackages}
	resolved, unresolved, err := r.Resolve(ctx, declared)
	if err != nil {
		return nil, err
	}
	pc.resolved = make(map[string]resolve.ResolvedDependency, len(resolved))
	for _, r := range resolved {
		pc.resolved[r.Name] = r
	}

	if len(unresolved) > 0 {
		msg := "could not resolve all dependencies:\n"
		for _, u := range unresolved {
			msg += fmt.Sprintf("  - %s\n", u.Error())
		}
		return resolved, fmt.Errorf("%s", msg)
	}
	return resolved, nil
}

// packagePaths is the cache.GetPackagePaths for a resolved package the
// sync hooks consult by name (sync_hooks.go).
func (pc *projectContext) packagePaths(name string) (cache.PackagePaths, error) {
	r, ok := pc.resolved[name]
	if !ok {
		return cache.PackagePaths{}, fmt.Errorf("no resolved entry for package %q", name)
	}
	return cache.GetPackagePaths(pc.ToolchainDir, r.Source, r.Name, r.Version)
}

// buildPlan assembles plan.Package entries (enriching each resolved
// dependency with its observed CacheStatus and repository URLs) and
// constructs the ordered BuildPlan.
func (pc *projectContext) buildPlan(resolved []resolve.ResolvedDependency, linkMode cache.LinkMode) (plan.BuildPlan, error) {
	packages := make([]plan.Package, 0, len(resolved))
	for _, r := range resolved {
		status, err := pc.cacheStatus(r)
		if err != nil {
			return plan.BuildPlan{}, err
		}
		binURL, srcURL := pc.repositoryURLs(r)
		packages = append(packages, plan.Package{
			ResolvedDependency: r,
			Cache:              status,
			BinaryURL:          binURL,
			SourceURL:          srcURL,
		})
	}
	return plan.Build(packages, linkMode, pc.ProjectLib)
}

// cacheStatus inspects the on-disk cache for r's source/binary artifacts.
// A binary directory carrying the marker file written by the Compile hook
// (see sync_hooks.go) is reported as built by this tool; any other binary
// directory is treated as a prebuilt artifact fetched from upstream.
func (pc *projectContext) cacheStatus(r resolve.ResolvedDependency) (cache.CacheStatus, error) {
	if r.System || r.Source.Kind == source.KindLocal {
		return cache.CacheStatus{}, nil
	}

	paths, err := cache.GetPackagePaths(pc.ToolchainDir, r.Source, r.Name, r.Version)
	if err != nil {
		return cache.CacheStatus{}, err
	}

	sourcePresent := pathExists(paths.Source)
	binaryPresent := pathExists(paths.Binary)
	builtByTool := binaryPresent && pathExists(filepath.Join(paths.Binary, builtMarkerName))

	return cache.CacheStatus{Local: installationStatus(sourcePresent, binaryPresent, builtByTool)}, nil
}

func installationStatus(source, binary, builtByTool bool) cache.InstallationStatus {
	switch {
	case source && binary && builtByTool:
		return cache.BothBuilt
	case source && binary:
		return cache.BothNotBuilt
	case binary && builtByTool:
		return cache.BinaryBuilt
	case binary:
		return cache.BinaryNotBuilt
	case source:
		return cache.Source
	default:
		return cache.Absent
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// repositoryURLs computes the CRAN-style src/contrib and bin/<platform>
// layout a repository offers for r, when r came from a repository source.
func (pc *projectContext) repositoryURLs(r resolve.ResolvedDependency) (binaryURL, sourceURL string) {
	if r.Source.Kind != source.KindRepository {
		return "", ""
	}
	stem := fmt.Sprintf("%s_%s", r.Name, r.Version)
	sourceURL = fmt.Sprintf("%s/src/contrib/%s.tar.gz", r.Source.RepositoryURL, stem)

	switch pc.Target.OS() {
	case "darwin":
		binaryURL = fmt.Sprintf("%s/bin/macosx/contrib/%s/%s.tgz", r.Source.RepositoryURL, rMajorMinor(pc.RVersion), stem)
	case "windows":
		binaryURL = fmt.Sprintf("%s/bin/windows/contrib/%s/%s.zip", r.Source.RepositoryURL, rMajorMinor(pc.RVersion), stem)
	}
	return binaryURL, sourceURL
}

func rMajorMinor(v rversion.Version) string {
	if len(v.Components) < 2 {
		return v.String()
	}
	return fmt.Sprintf("%d.%d", v.Components[0], v.Components[1])
}

// writeLockfile writes the resolved graph's lockfile next to the project
// manifest (spec.md §6: the lockfile is one of the CLI's external
// collaborator outputs).
func (pc *projectContext) writeLockfile(resolved []resolve.ResolvedDependency) error {
	lf := lockfile.FromResolved(resolved)
	path := filepath.Join(filepath.Dir(configFileFlag), "rv.lock")
	return lockfile.Write(lf, path)
}

// Package cache implements the content-addressed disk cache: fetched
// package sources, compiled binaries, and repository database snapshots,
// keyed by source identity and platform fingerprint (spec.md §4.2).
package cache

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/a2-ai/rv/internal/platform"
	"github.com/a2-ai/rv/internal/rversion"
	"github.com/a2-ai/rv/internal/source"
)

// PackagePaths is the pair of cache-relative paths a resolved package's
// artifacts live at.
type PackagePaths struct {
	Source string
	Binary string
}

// PlatformSlug encodes {os, arch, distribution codename} into the single
// path segment the cache root is sliced by, e.g. "linux-amd64-jammy" or
// "darwin-arm64".
func PlatformSlug(t platform.Target, codename string) string {
	slug := fmt.Sprintf("%s-%s", t.OS(), t.Arch())
	if codename != "" {
		slug += "-" + codename
	}
	return slug
}

// ToolchainRoot returns the per-R-version, per-platform slice of the cache
// root: <cache_root>/<r_version>/<platform>.
func ToolchainRoot(root string, rVersion rversion.Version, platformSlug string) string {
	return filepath.Join(root, rVersion.String(), platformSlug)
}

// GetPackagePaths is the pure path-computing function named in spec.md
// §4.2: "get_package_paths(source, version?, platform?) -> {source,
// binary}; pure function of inputs, no I/O." repoURL is required when src
// is a repository source, since a Source only carries its repository's
// alias and URL, not a filesystem path.
//
// Layout (relative to a ToolchainRoot):
//
//	repos/<hash(repoURL)>/src/<name>_<version>.tar.gz
//	repos/<hash(repoURL)>/bin/<name>_<version>/
//	git/<hash(gitURL)>/<ref>/src, .../bin
//	urls/<hash(url)>/src, .../bin
func GetPackagePaths(toolchainRoot string, src source.Source, name string, version rversion.Version) (PackagePaths, error) {
	switch src.Kind {
	case source.KindRepository:
		if src.RepositoryURL == "" {
			return PackagePaths{}, fmt.Errorf("cache: repository source %q has no URL to address its cache directory", src.RepositoryAlias)
		}
		base := filepath.Join(toolchainRoot, "repos", source.Hash(src.RepositoryURL))
		stem := fmt.Sprintf("%s_%s", name, version)
		return PackagePaths{
			Source: filepath.Join(base, "src", stem+".tar.gz"),
			Binary: filepath.Join(base, "bin", stem),
		}, nil

	case source.KindGit:
		base := filepath.Join(toolchainRoot, "git", source.Hash(src.GitURL.String()), sanitizeRef(src.GitReference.String()))
		return PackagePaths{
			Source: filepath.Join(base, "src"),
			Binary: filepath.Join(base, "bin"),
		}, nil

	case source.KindURL:
		base := filepath.Join(toolchainRoot, "urls", source.Hash(src.URL))
		return PackagePaths{
			Source: filepath.Join(base, "src"),
			Binary: filepath.Join(base, "bin"),
		}, nil

	case source.KindLocal:
		return PackagePaths{}, fmt.Errorf("cache: local source %q is never cached", src.Path)

	default:
		return PackagePaths{}, fmt.Errorf("cache: unknown source kind %d", src.Kind)
	}
}

// RepositoryDBPath returns the path to a repository's cached database
// snapshot: repos/<hash(repoURL)>/db.bin.
func RepositoryDBPath(toolchainRoot, repoURL string) string {
	return filepath.Join(toolchainRoot, "repos", source.Hash(repoURL), "db.bin")
}

// sanitizeRef makes a GitReference's String() form ("tag:v1.0.0") safe as
// a single path segment.
func sanitizeRef(ref string) string {
	r := strings.ReplaceAll(ref, "/", "_")
	return strings.ReplaceAll(r, ":", "-")
}

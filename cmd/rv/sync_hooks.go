package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/extract"
	"github.com/a2-ai/rv/internal/gitio"
	"github.com/a2-ai/rv/internal/httpio"
	"github.com/a2-ai/rv/internal/plan"
	"github.com/a2-ai/rv/internal/rvconfig"
	"github.com/a2-ai/rv/internal/source"
	rvsync "github.com/a2-ai/rv/internal/sync"
)

// builtMarkerName is written into a binary directory this tool itself
// produced, so a later cacheStatus lookup can tell it apart from a
// prebuilt artifact fetched from a repository (spec.md §3's
// InstallationStatus "built_from_source" bool).
const builtMarkerName = ".rv-built"

// newHooks wires sync.Hooks to the real filesystem/network/subprocess
// collaborators: httpio.Client for downloads, extract.Extract for
// archives, gitio.Exec for git, and the ecosystem's own build command for
// compilation, each coordinated through cache.Builder's
// at-most-once-per-fingerprint coalescing and a cross-process cache.Lock
// on the target directory.
func (pc *projectContext) newHooks() rvsync.Hooks {
	builder := cache.NewBuilder()

	return rvsync.Hooks{
		UseCached: func(step plan.BuildStep) (string, error) {
			paths, err := pc.packagePaths(step.Package)
			if err != nil {
				return "", err
			}
			return paths.Binary, nil
		},
		Download: func(ctx context.Context, step plan.BuildStep) (string, error) {
			return pc.downloadAndExtract(ctx, step, builder)
		},
		GitFetch: func(ctx context.Context, step plan.BuildStep) (string, error) {
			return pc.gitFetch(ctx, step, builder)
		},
		Compile: func(ctx context.Context, step plan.BuildStep, sourcePath string, libDeps []string) (string, error) {
			return pc.compile(ctx, step, sourcePath, libDeps, builder)
		},
		Link: func(step plan.BuildStep, artifactPath string) error {
			return cache.Link(artifactPath, filepath.Join(step.ProjectLib, step.Package), step.LinkMode)
		},
	}
}

// downloadAndExtract fetches a source or binary archive and extracts it
// into the paths the package's own Source addresses it at, coalescing
// concurrent requests for the same fingerprint through builder so it
// only happens once (spec.md §4.2 invariant 7).
func (pc *projectContext) downloadAndExtract(ctx context.Context, step plan.BuildStep, builder *cache.Builder) (string, error) {
	paths, err := pc.packagePaths(step.Package)
	if err != nil {
		return "", err
	}
	destDir := paths.Source
	if step.Kind == plan.DownloadBinary {
		destDir = paths.Binary
	}

	fp := cache.Fingerprint{SourceIdentity: step.URL, RVersion: pc.RVersion.String(), Platform: cache.PlatformSlug(pc.Target, pc.Codename)}
	path, _, err := builder.Build(fp, func() (string, error) {
		lock, err := cache.TryAcquire(destDir)
		if err != nil {
			return "", err
		}
		defer lock.Release()

		if pathExists(destDir) && len(dirEntries(destDir)) > 0 {
			return destDir, nil
		}

		archivePath := destDir + ".archive"
		if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
			return "", err
		}
		f, err := os.Create(archivePath)
		if err != nil {
			return "", err
		}
		n, err := pc.HTTP.Download(ctx, step.URL, f, []httpio.Header{})
		f.Close()
		if err != nil {
			return "", err
		}
		if n == 0 {
			os.Remove(archivePath)
			return "", fmt.Errorf("download required but got a 404 soft miss for %s", step.URL)
		}
		defer os.Remove(archivePath)

		if step.SHA != "" {
			if err := verifySHA256(archivePath, step.SHA); err != nil {
				return "", fmt.Errorf("%s: %w", step.URL, err)
			}
		}
		if step.SigURL != "" {
			if err := pc.verifyPGPSignature(ctx, archivePath, step); err != nil {
				return "", fmt.Errorf("%s: %w", step.URL, err)
			}
		}

		format, err := extract.DetectFormat(step.URL)
		if err != nil {
			return "", err
		}
		if err := extract.Extract(archivePath, destDir, format); err != nil {
			return "", err
		}
		if step.Kind == plan.DownloadBinary {
			markBuilt(destDir, false)
		}
		return destDir, nil
	})
	return path, err
}

// gitFetch clones (or reuses a cached clone of) a git source and checks
// out its pinned reference (spec.md §4.3 step 3, §6's git contract).
func (pc *projectContext) gitFetch(ctx context.Context, step plan.BuildStep, builder *cache.Builder) (string, error) {
	paths, err := pc.packagePaths(step.Package)
	if err != nil {
		return "", err
	}
	destDir := paths.Source

	fp := cache.Fingerprint{SourceIdentity: step.GitURL.String() + "#" + step.GitRef.String(), RVersion: pc.RVersion.String()}
	path, _, err := builder.Build(fp, func() (string, error) {
		lock, err := cache.TryAcquire(destDir)
		if err != nil {
			return "", err
		}
		defer lock.Release()

		checkoutRef := step.GitRef.Value
		if step.GitRef.Kind == source.RefTag {
			if owner, repo, ok := step.GitURL.GitHubOwnerRepo(); ok {
				if sha, err := pc.resolveGitHubTag(ctx, owner, repo, checkoutRef); err == nil {
					checkoutRef = sha
				}
				// A resolution failure (rate limit, network, tag renamed
				// upstream) falls back to letting git itself resolve the
				// tag name directly against the remote.
			}
		}

		runner := gitio.NewExec()
		if !pathExists(filepath.Join(destDir, ".git")) {
			if err := gitio.Clone(ctx, runner, step.GitURL.String(), destDir); err != nil {
				return "", err
			}
		}
		if err := gitio.Checkout(ctx, runner, destDir, checkoutRef); err != nil {
			return "", err
		}
		if step.Into != "" {
			return filepath.Join(destDir, step.Into), nil
		}
		return destDir, nil
	})
	return path, err
}

// compile runs the ecosystem's own build command against sourcePath, with
// libDeps' paths made available for headers and libraries (spec.md
// §4.3's LinkingTo closure requirement; spec.md §1's non-goal: "does not
// evaluate dynamic install-time scripts beyond invoking the ecosystem's
// own build command").
func (pc *projectContext) compile(ctx context.Context, step plan.BuildStep, sourcePath string, libDeps []string, builder *cache.Builder) (string, error) {
	paths, err := pc.packagePaths(step.Package)
	if err != nil {
		return "", err
	}
	destDir := paths.Binary

	fp := cache.Fingerprint{SourceIdentity: sourcePath, RVersion: pc.RVersion.String(), Platform: cache.PlatformSlug(pc.Target, pc.Codename)}
	path, _, err := builder.Build(fp, func() (string, error) {
		lock, err := cache.TryAcquire(destDir)
		if err != nil {
			return "", err
		}
		defer lock.Release()

		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return "", err
		}

		runCtx := ctx
		if d := rvconfig.CompileTimeout(); d > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		if err := runInstall(runCtx, sourcePath, destDir, libDeps); err != nil {
			return "", err
		}
		markBuilt(destDir, true)
		return destDir, nil
	})
	return path, err
}

func markBuilt(dir string, builtFromSource bool) {
	if !builtFromSource {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, builtMarkerName), []byte(time.Now().UTC().Format(time.RFC3339)), 0o644)
}

func dirEntries(dir string) []os.DirEntry {
	entries, _ := os.ReadDir(dir)
	return entries
}

// verifySHA256 checks archivePath's contents against the hex-encoded
// checksum a Url source optionally declares (spec.md §3: "Url { url,
// sha? } ... sha, if provided, is verified").
func verifySHA256(archivePath, want string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("sha256 mismatch: want %s, got %s", want, got)
	}
	return nil
}

// resolveGitHubTag resolves a tag name to the commit it points at via the
// GitHub API, so a Tag-pinned dependency is checked out by immutable
// commit rather than by a ref an upstream maintainer could move (spec.md
// §4.3's git fetch step). Only exercised for http(s) github.com remotes;
// everything else is left to gitio.Checkout to resolve directly.
func (pc *projectContext) resolveGitHubTag(ctx context.Context, owner, repo, tag string) (string, error) {
	resolver := source.NewGitHubTagResolver(ctx, rvconfig.GitHubToken())
	return resolver.ResolveTagCommit(ctx, owner, repo, tag)
}

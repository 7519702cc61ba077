// Package sync executes a build plan under the bounded-parallelism
// discipline of spec.md §4.5/§5: steps run as soon as their dependencies
// complete, network and compile work are each bounded by their own
// semaphore, and writes to the project library are serialized under a
// single mutex.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	stdsync "sync"

	"golang.org/x/sync/semaphore"

	"github.com/a2-ai/rv/internal/errmsg"
	"github.com/a2-ai/rv/internal/log"
	"github.com/a2-ai/rv/internal/plan"
)

// Outcome is a package's final disposition after a sync run (spec.md
// §4.5: "Per-package outcome: Installed | AlreadyPresent | Skipped |
// Failed(reason)").
type Outcome int

const (
	Installed Outcome = iota
	AlreadyPresent
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Installed:
		return "installed"
	case AlreadyPresent:
		return "already present"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "?"
	}
}

// Result is one package's outcome, with the underlying error for Failed.
type Result struct {
	Package string
	Outcome Outcome
	Err     error
}

// Hooks are the side-effecting operations the handler schedules. Each
// hook is given exactly the step it must perform; the handler supplies
// ordering, concurrency bounds, and failure propagation around them. This
// mirrors the teacher's own preference for small interfaces (Runner,
// Downloader) injected at the boundary rather than the scheduler doing
// I/O itself.
type Hooks struct {
	// UseCached resolves a cached artifact's on-disk path.
	UseCached func(step plan.BuildStep) (string, error)
	// Download fetches and extracts a binary or source archive, returning
	// the path to the resulting directory.
	Download func(ctx context.Context, step plan.BuildStep) (string, error)
	// GitFetch clones/checks out the requested reference, returning the
	// worktree path.
	GitFetch func(ctx context.Context, step plan.BuildStep) (string, error)
	// Compile builds sourcePath into an installable package directory.
	// libraryDeps are the artifact paths of the package's planned direct
	// dependencies (every resolved dependency, not only LinkingTo; their
	// own dependencies are not included), already built or fetched.
	// sourcePath is the same package's download/fetch artifact when the
	// step has one, otherwise step.SourcePath (the Local case); it is
	// empty for the cached-source case, which resolves its own path from
	// the package name/version, since it is already on disk.
	Compile func(ctx context.Context, step plan.BuildStep, sourcePath string, libraryDeps []string) (string, error)
	// Link places an artifact into the project library.
	Link func(step plan.BuildStep, artifactPath string) error
}

// Handler runs a BuildPlan to completion, respecting two named semaphores
// (spec.md §5: "network" and "compile") plus a single project-library
// writer lock.
type Handler struct {
	NetworkLimit int64
	CompileLimit int64
	Hooks        Hooks
	Logger       log.Logger
}

type stepNode struct {
	step     plan.BuildStep
	done     chan struct{}
	failed   bool
	skipped  bool
	err      error
	artifact string
}

// Run executes plan p. Run itself neither reads projectLib nor stages or
// swaps the project library: artifacts land wherever the Link hook puts
// them, Link steps that completed before a failure or ctx cancellation
// are not rolled back, and the staged-directory swap is the separate
// CommitStaging function, which nothing in this module calls.
func (h *Handler) Run(ctx context.Context, p plan.BuildPlan, projectLib string, alreadyPresent map[string]bool) ([]Result, error) {
	logger := h.Logger
	if logger == nil {
		logger = log.Default()
	}

	networkLimit := h.NetworkLimit
	if networkLimit <= 0 {
		networkLimit = 4
	}
	compileLimit := h.CompileLimit
	if compileLimit <= 0 {
		compileLimit = 1
	}
	network := semaphore.NewWeighted(networkLimit)
	compile := semaphore.NewWeighted(compileLimit)
	var libWriteMu stdsync.Mutex

	nodes := make(map[string]*stepNode, len(p.Steps))
	for _, s := range p.Steps {
		nodes[s.ID] = &stepNode{step: s, done: make(chan struct{})}
	}

	var wg stdsync.WaitGroup
	for _, n := range nodes {
		wg.Add(1)
		go h.runStep(ctx, n, nodes, network, compile, &libWriteMu, logger, &wg)
	}
	wg.Wait()

	return h.summarize(nodes, p, alreadyPresent), nil
}

func (h *Handler) runStep(ctx context.Context, n *stepNode, nodes map[string]*stepNode, network, compile *semaphore.Weighted, libWriteMu *stdsync.Mutex, logger log.Logger, wg *stdsync.WaitGroup) {
	defer wg.Done()
	defer close(n.done)

	for _, dep := range n.step.DependsOn {
		d, ok := nodes[dep]
		if !ok {
			continue
		}
		<-d.done
		if d.failed || d.skipped {
			n.skipped = true
		}
	}

	if n.skipped {
		return
	}

	select {
	case <-ctx.Done():
		n.skipped = true
		return
	default:
	}

	var err error
	switch n.step.Kind {
	case plan.UseCached:
		n.artifact, err = h.Hooks.UseCached(n.step)

	case plan.DownloadBinary, plan.DownloadSource:
		if acquireErr := network.Acquire(ctx, 1); acquireErr != nil {
			n.skipped = true
			return
		}
		n.artifact, err = h.Hooks.Download(ctx, n.step)
		network.Release(1)

	case plan.GitFetch:
		if acquireErr := network.Acquire(ctx, 1); acquireErr != nil {
			n.skipped = true
			return
		}
		n.artifact, err = h.Hooks.GitFetch(ctx, n.step)
		network.Release(1)

	case plan.Compile:
		if acquireErr := compile.Acquire(ctx, 1); acquireErr != nil {
			n.skipped = true
			return
		}
		sourcePath, libDeps := compileInputs(n, nodes)
		n.artifact, err = h.Hooks.Compile(ctx, n.step, sourcePath, libDeps)
		compile.Release(1)

	case plan.Link:
		artifact := n.step.CacheFrom
		if len(n.step.DependsOn) > 0 {
			if d, ok := nodes[n.step.DependsOn[0]]; ok {
				artifact = d.artifact
			}
		}
		libWriteMu.Lock()
		err = h.Hooks.Link(n.step, artifact)
		libWriteMu.Unlock()
	}

	if err != nil {
		n.failed = true
		n.err = err
		logger.Warn("build step failed", "package", n.step.Package, "step", n.step.Kind.String(), "error", err)
	}
}

// compileInputs splits a Compile step's dependency set into its own
// fetch/download artifact (when one exists; the first DependsOn entry is
// always the own-package producer per internal/plan's construction) and
// the artifact paths of its other dependency steps, for header/library
// access.
func compileInputs(n *stepNode, nodes map[string]*stepNode) (string, []string) {
	sourcePath := n.step.SourcePath
	var libDeps []string
	for i, dep := range n.step.DependsOn {
		d, ok := nodes[dep]
		if !ok {
			continue
		}
		if i == 0 && d.step.Package == n.step.Package {
			sourcePath = d.artifact
			continue
		}
		libDeps = append(libDeps, d.artifact)
	}
	return sourcePath, libDeps
}

func (h *Handler) summarize(nodes map[string]*stepNode, p plan.BuildPlan, alreadyPresent map[string]bool) []Result {
	byPackage := make(map[string][]*stepNode)
	for _, s := range p.Steps {
		byPackage[s.Package] = append(byPackage[s.Package], nodes[s.ID])
	}

	names := make([]string, 0, len(byPackage))
	for name := range byPackage {
		names = append(names, name)
	}
	for name := range alreadyPresent {
		if _, ok := byPackage[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		steps, planned := byPackage[name]
		if !planned {
			results = append(results, Result{Package: name, Outcome: AlreadyPresent})
			continue
		}

		var failedStep *stepNode
		var anySkipped bool
		for _, n := range steps {
			if n.failed {
				failedStep = n
				break
			}
			if n.skipped {
				anySkipped = true
			}
		}

		switch {
		case failedStep != nil:
			buildErr := &errmsg.BuildError{Kind: stepKindToBuildErrorKind(failedStep.step.Kind), Package: name, Err: failedStep.err}
			results = append(results, Result{Package: name, Outcome: Failed, Err: buildErr})
		case anySkipped:
			results = append(results, Result{Package: name, Outcome: Skipped})
		default:
			results = append(results, Result{Package: name, Outcome: Installed})
		}
	}
	return results
}

func stepKindToBuildErrorKind(k plan.StepKind) errmsg.BuildErrorKind {
	switch k {
	case plan.DownloadBinary, plan.DownloadSource:
		return errmsg.BuildDownload
	case plan.Compile:
		return errmsg.BuildCompile
	case plan.Link:
		return errmsg.BuildLinkFailed
	default:
		return errmsg.BuildDownload
	}
}

// FailuresFrom collects the BuildErrors out of a Result slice, for
// wrapping in an errmsg.SyncError (spec.md §7: "SyncError: wraps a
// per-step BuildError list").
func FailuresFrom(results []Result) *errmsg.SyncError {
	var failures []*errmsg.BuildError
	for _, r := range results {
		if r.Outcome != Failed {
			continue
		}
		var be *errmsg.BuildError
		if be2, ok := r.Err.(*errmsg.BuildError); ok {
			be = be2
		} else {
			be = &errmsg.BuildError{Package: r.Package, Err: r.Err}
		}
		failures = append(failures, be)
	}
	if len(failures) == 0 {
		return nil
	}
	return &errmsg.SyncError{Failures: failures}
}

// CommitStaging atomically swaps a completed staging directory into
// place at projectLib, preserving the previous tree only if the rename
// fails (spec.md §4.5: "new install tree staged in a sibling directory,
// swapped in by rename on success; on partial failure the old library
// remains intact").
func CommitStaging(stagingDir, projectLib string) error {
	backup := projectLib + ".prev"
	_ = os.RemoveAll(backup)

	if _, err := os.Stat(projectLib); err == nil {
		if err := os.Rename(projectLib, backup); err != nil {
			return fmt.Errorf("backing up previous library: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(projectLib), 0o755); err != nil {
		return fmt.Errorf("creating library parent directory: %w", err)
	}
	if err := os.Rename(stagingDir, projectLib); err != nil {
		if _, statErr := os.Stat(backup); statErr == nil {
			_ = os.Rename(backup, projectLib)
		}
		return fmt.Errorf("swapping staged library into place: %w", err)
	}

	_ = os.RemoveAll(backup)
	return nil
}

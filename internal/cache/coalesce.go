package cache

import (
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Fingerprint uniquely identifies a buildable artifact: source identity,
// toolchain version, platform, and compile flags (GLOSSARY). It is the
// key the at-most-once build coalescing is keyed by (spec.md §4.2).
type Fingerprint struct {
	SourceIdentity string
	RVersion       string
	Platform       string
	CompileFlags   string
}

func (f Fingerprint) key() string {
	return fmt.Sprintf("%s|%s|%s|%s", f.SourceIdentity, f.RVersion, f.Platform, f.CompileFlags)
}

// Builder coalesces concurrent build requests for the same fingerprint
// so exactly one builder executes per fingerprint, in-process, while
// others await and observe its result (spec.md §4.2: "Concurrent
// requests for the same fingerprint must coalesce... Coordination is
// in-process via a keyed single-flight map"). Cross-process coordination
// layers on top via Lock/TryAcquire on the same target directory.
type Builder struct {
	group singleflight.Group
}

// NewBuilder constructs an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Build runs fn for fingerprint, coalescing concurrent callers onto a
// single in-flight execution. All callers — the one that triggered fn
// and every one that arrived while it was running — receive fn's result.
func (b *Builder) Build(fingerprint Fingerprint, fn func() (string, error)) (path string, shared bool, err error) {
	v, err, shared := b.group.Do(fingerprint.key(), func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return "", shared, err
	}
	return v.(string), shared, nil
}

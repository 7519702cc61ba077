package cache

import "fmt"

// InstallationStatus records what forms of a package are available in one
// cache tier (local project cache or the global cache). The bool on Binary
// and Both records whether this tool itself produced the binary, as opposed
// to a prebuilt artifact fetched from a repository — adapted from the
// original tool's cache::status::InstallationStatus.
type InstallationStatus int

const (
	Absent InstallationStatus = iota
	Source
	BinaryNotBuilt // binary present, not built from source by this tool
	BinaryBuilt    // binary present, built from source by this tool
	BothNotBuilt   // source and binary present, binary not built by this tool
	BothBuilt      // source and binary present, binary built by this tool
)

func (s InstallationStatus) String() string {
	switch s {
	case Source:
		return "source"
	case BinaryNotBuilt:
		return "binary (built from source: false)"
	case BinaryBuilt:
		return "binary (built from source: true)"
	case BothNotBuilt:
		return "source and binary (built from source: false)"
	case BothBuilt:
		return "source and binary (built from source: true)"
	default:
		return "absent"
	}
}

// Available reports whether any form of the package is present.
func (s InstallationStatus) Available() bool {
	return s != Absent
}

// BinaryAvailable reports whether a compiled binary is present, regardless
// of who built it.
func (s InstallationStatus) BinaryAvailable() bool {
	switch s {
	case BinaryNotBuilt, BinaryBuilt, BothNotBuilt, BothBuilt:
		return true
	default:
		return false
	}
}

// BinaryAvailableFromSource reports whether the binary present was built
// from source by this tool (as opposed to fetched prebuilt).
func (s InstallationStatus) BinaryAvailableFromSource() bool {
	return s == BinaryBuilt || s == BothBuilt
}

// SourceAvailable reports whether package source is present.
func (s InstallationStatus) SourceAvailable() bool {
	switch s {
	case Source, BothNotBuilt, BothBuilt:
		return true
	default:
		return false
	}
}

// MarkAsBinaryUnavailable downgrades a status that carries a non-self-built
// binary, for force-source installs: the user asked for source and a
// prebuilt binary we didn't produce doesn't count (spec.md §4.2).
// Both(false) -> Source, Binary(false) -> Absent; *true variants, which
// this tool did build, are preserved untouched.
func (s InstallationStatus) MarkAsBinaryUnavailable() InstallationStatus {
	switch s {
	case BothNotBuilt:
		return Source
	case BinaryNotBuilt:
		return Absent
	default:
		return s
	}
}

// CacheStatus is the installation status of a package across both cache
// tiers: the per-project local cache, and an optional shared global cache.
type CacheStatus struct {
	Local  InstallationStatus
	Global *InstallationStatus
}

// MarkAsBinaryUnavailable applies InstallationStatus.MarkAsBinaryUnavailable
// to both tiers.
func (c CacheStatus) MarkAsBinaryUnavailable() CacheStatus {
	out := CacheStatus{Local: c.Local.MarkAsBinaryUnavailable()}
	if c.Global != nil {
		g := c.Global.MarkAsBinaryUnavailable()
		out.Global = &g
	}
	return out
}

func (c CacheStatus) globalBinaryAvailable() bool {
	return c.Global != nil && c.Global.BinaryAvailable()
}

func (c CacheStatus) globalSourceAvailable() bool {
	return c.Global != nil && c.Global.SourceAvailable()
}

// BinaryAvailable reports whether either tier has a usable binary.
func (c CacheStatus) BinaryAvailable() bool {
	return c.Local.BinaryAvailable() || c.globalBinaryAvailable()
}

// SourceAvailable reports whether either tier has package source.
func (c CacheStatus) SourceAvailable() bool {
	return c.Local.SourceAvailable() || c.globalSourceAvailable()
}

func (c CacheStatus) String() string {
	if c.Global == nil {
		return fmt.Sprintf("local: %s", c.Local)
	}
	return fmt.Sprintf("local: %s, global: %s", c.Local, *c.Global)
}

// Package lockfile reads and writes the reproducible lockfile spec.md §6
// describes: a schema version and, for each resolved package, its name,
// version, source, and direct dependency names, in canonical (topological
// then name-ascending) order.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/a2-ai/rv/internal/resolve"
)

// SchemaVersion is the current lockfile format version. Readers reject a
// file whose Version field is newer than this (spec.md §7:
// RepositoryError.SchemaMismatch pattern, applied here to the lockfile).
const SchemaVersion = 1

// Entry is one locked package (spec.md §6: "for each resolved package
// {name, version, source, depends}").
type Entry struct {
	Name    string   `toml:"name"`
	Version string   `toml:"version"`
	Source  string   `toml:"source"`
	Depends []string `toml:"depends,omitempty"`
}

// Lockfile is the full on-disk record.
type Lockfile struct {
	Version  int     `toml:"version"`
	Packages []Entry `toml:"packages"`
}

// FromResolved builds a Lockfile from a resolved graph already in the
// resolver's canonical order (spec.md §6: "Canonical ordering:
// topological then name-ascending" — the same ordering resolve.Resolve
// already produces). System packages are never installed and are
// excluded (spec.md §4.3 step 5).
func FromResolved(resolved []resolve.ResolvedDependency) *Lockfile {
	lf := &Lockfile{Version: SchemaVersion}
	for _, r := range resolved {
		if r.System {
			continue
		}
		depends := make([]string, 0, len(r.Dependencies))
		for name := range r.Dependencies {
			depends = append(depends, name)
		}
		sort.Strings(depends)

		lf.Packages = append(lf.Packages, Entry{
			Name:    r.Name,
			Version: r.Version.String(),
			Source:  r.Source.String(),
			Depends: depends,
		})
	}
	return lf
}

// ErrSchemaMismatch is returned by Load/Parse when the lockfile's Version
// field is newer than SchemaVersion; older or missing versions are accepted.
var ErrSchemaMismatch = fmt.Errorf("lockfile schema version mismatch")

// Parse decodes lockfile TOML text.
func Parse(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if _, err := toml.Decode(string(data), &lf); err != nil {
		return nil, fmt.Errorf("parsing lockfile: %w", err)
	}
	if lf.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: file is version %d, this tool understands up to %d", ErrSchemaMismatch, lf.Version, SchemaVersion)
	}
	return &lf, nil
}

// Load reads and parses a lockfile from disk. A missing file is not an
// error; it reports (nil, nil), letting the caller fall back to full
// resolution.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lockfile %s: %w", path, err)
	}
	return Parse(data)
}

// Write persists lf to path using a write-temp-fsync-rename sequence so
// readers never observe a partially written lockfile, matching the
// teacher's recipe.WriteRecipe pattern.
func Write(lf *Lockfile, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".lockfile-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := toml.NewEncoder(tmpFile).Encode(lf); err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing lockfile: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing lockfile: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming lockfile into place: %w", err)
	}

	success = true
	return nil
}

// Equal reports whether two lockfiles are reproducibility-equivalent:
// same version and same packages in the same canonical order (spec.md
// §6: "equality under canonical ordering defines reproducibility").
func (lf *Lockfile) Equal(other *Lockfile) bool {
	if lf == nil || other == nil {
		return lf == other
	}
	if lf.Version != other.Version || len(lf.Packages) != len(other.Packages) {
		return false
	}
	for i, e := range lf.Packages {
		o := other.Packages[i]
		if e.Name != o.Name || e.Version != o.Version || e.Source != o.Source {
			return false
		}
		if len(e.Depends) != len(o.Depends) {
			return false
		}
		for j, d := range e.Depends {
			if d != o.Depends[j] {
				return false
			}
		}
	}
	return true
}

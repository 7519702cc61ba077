package repodb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/a2-ai/rv/internal/rversion"
)

// RepositoryDatabase is the parsed, queryable index of one repository:
// name -> versions sorted descending (spec.md §3, "Mapping name ->
// ordered sequence<PackageRecord> sorted by descending version").
type RepositoryDatabase struct {
	byName map[string][]PackageRecord
}

// New builds a RepositoryDatabase from parsed records, grouping by name
// and sorting each group by descending version.
func New(records []PackageRecord) *RepositoryDatabase {
	db := &RepositoryDatabase{byName: make(map[string][]PackageRecord)}
	for _, r := range records {
		db.byName[r.Name] = append(db.byName[r.Name], r)
	}
	for name, group := range db.byName {
		sort.Slice(group, func(i, j int) bool {
			return group[i].Version.Compare(group[j].Version) > 0
		})
		db.byName[name] = group
	}
	return db
}

// Load parses a PACKAGES file's bytes into a RepositoryDatabase.
func Load(data []byte) (*RepositoryDatabase, error) {
	records, err := ParsePACKAGES(data)
	if err != nil {
		return nil, err
	}
	return New(records), nil
}

// All returns every version of name, newest first (spec.md §4.1:
// "all(name) -> seq<PackageRecord> — descending version order").
func (db *RepositoryDatabase) All(name string) []PackageRecord {
	return db.byName[name]
}

// Latest returns the newest version of name satisfying constraint, or
// false if none does (spec.md §4.1: "latest(name, constraint) ->
// PackageRecord? — newest version satisfying constraint").
func (db *RepositoryDatabase) Latest(name string, constraint rversion.Constraint) (PackageRecord, bool) {
	for _, rec := range db.byName[name] {
		if constraint.Satisfies(rec.Version) {
			return rec, true
		}
	}
	return PackageRecord{}, false
}

// Names returns every package name this database indexes, for diagnostics.
func (db *RepositoryDatabase) Names() []string {
	names := make([]string, 0, len(db.byName))
	for n := range db.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether two databases index the same records, used by
// round-trip tests (spec.md §8 invariant 6: "parse(persist(db)) ==
// db for all valid db").
func (a *RepositoryDatabase) Equal(b *RepositoryDatabase) bool {
	if len(a.byName) != len(b.byName) {
		return false
	}
	for name, recA := range a.byName {
		recB, ok := b.byName[name]
		if !ok || len(recA) != len(recB) {
			return false
		}
		for i := range recA {
			if !recordsEqual(recA[i], recB[i]) {
				return false
			}
		}
	}
	return true
}

func recordsEqual(a, b PackageRecord) bool {
	return a.Name == b.Name &&
		a.Version.Equal(b.Version) &&
		depsEqual(a.Depends, b.Depends) &&
		depsEqual(a.Imports, b.Imports) &&
		depsEqual(a.LinkingTo, b.LinkingTo) &&
		depsEqual(a.Suggests, b.Suggests) &&
		depsEqual(a.Enhances, b.Enhances) &&
		a.NeedsCompilation == b.NeedsCompilation &&
		a.License == b.License &&
		a.Path == b.Path &&
		stringsEqual(a.Archs, b.Archs)
}

func depsEqual(a, b []Dep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Op != b[i].Op || !a[i].Version.Equal(b[i].Version) {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// allRecords flattens the database back into a slice for persistence,
// in a deterministic name-then-version order so Encode's output is
// reproducible across runs given the same input.
func (db *RepositoryDatabase) allRecords() []PackageRecord {
	var out []PackageRecord
	for _, name := range db.Names() {
		out = append(out, db.byName[name]...)
	}
	return out
}

// Persist writes db to path as a binary snapshot via a staged write:
// materialize to a sibling temp file, fsync, atomic rename — so a reader
// never observes a partially-written snapshot (spec.md §4.2, "staged
// writes... readers never observe partial state").
func Persist(db *RepositoryDatabase, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("repodb: creating snapshot directory: %w", err)
	}

	tmp, err := stagingPath(path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("repodb: creating staging file: %w", err)
	}
	defer os.Remove(tmp) // no-op after a successful rename

	if _, err := f.Write(Encode(db.allRecords())); err != nil {
		f.Close()
		return fmt.Errorf("repodb: writing staging file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("repodb: fsyncing staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("repodb: closing staging file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("repodb: renaming staging file into place: %w", err)
	}
	return nil
}

// ReadSnapshot loads a RepositoryDatabase previously written by Persist.
func ReadSnapshot(path string) (*RepositoryDatabase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("repodb: reading snapshot %s: %w", path, err)
	}
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("repodb: decoding snapshot %s: %w", path, err)
	}
	return New(records), nil
}

func stagingPath(target string) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("repodb: generating staging suffix: %w", err)
	}
	return target + ".tmp-" + hex.EncodeToString(buf[:]), nil
}

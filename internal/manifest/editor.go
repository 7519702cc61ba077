package manifest

// Editor is the collaborator that would rewrite rproject.toml in place
// while preserving comments and formatting — the way `cargo add` or
// `npm install` edit a manifest without clobbering the rest of the file.
// That requires a format-preserving TOML document model (the original
// tool uses Rust's toml_edit); no Go equivalent ships in this module, so
// it's out of scope per spec.md §1's exclusion of "configuration-file
// editing" from the core, documented here as a collaborator a future
// version could implement.
//
// Until then, `add` round-trips through Parse/Encode (see Project.Encode),
// which is lossy: comments and key ordering in the original file are not
// preserved.
type Editor interface {
	// AddDependency appends or updates a dependency entry in the
	// manifest at path, returning the rewritten bytes without touching
	// anything else in the file.
	AddDependency(path string, dep Dependency) ([]byte, error)
}

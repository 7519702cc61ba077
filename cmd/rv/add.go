package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/a2-ai/rv/internal/manifest"
)

var (
	addRepositoryFlag  string
	addGitFlag         string
	addTagFlag         string
	addBranchFlag      string
	addCommitFlag      string
	addURLFlag         string
	addPathFlag        string
	addSuggestsFlag    bool
	addForceSourceFlag bool
)

var addCmd = &cobra.Command{
	Use:   "add <package>",
	Short: "Add a dependency to the project manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd, args[0])
	},
}

func init() {
	addCmd.Flags().StringVar(&addRepositoryFlag, "repository", "", "require this dependency come from a specific declared repository alias")
	addCmd.Flags().StringVar(&addGitFlag, "git", "", "fetch this dependency from a git remote instead of a repository")
	addCmd.Flags().StringVar(&addTagFlag, "tag", "", "git tag to pin (with --git)")
	addCmd.Flags().StringVar(&addBranchFlag, "branch", "", "git branch to pin (with --git)")
	addCmd.Flags().StringVar(&addCommitFlag, "commit", "", "git commit to pin (with --git)")
	addCmd.Flags().StringVar(&addURLFlag, "url", "", "fetch this dependency from a direct URL instead of a repository")
	addCmd.Flags().StringVar(&addPathFlag, "path", "", "use a local directory as this dependency's source")
	addCmd.Flags().BoolVar(&addSuggestsFlag, "install-suggestions", false, "also install this package's Suggests closure")
	addCmd.Flags().BoolVar(&addForceSourceFlag, "force-source", false, "always build this dependency from source, never use a binary")
}

// runAdd appends a dependency entry to the manifest and re-resolves the
// whole project before committing the edit to disk. On any resolution
// failure the manifest file is left byte-identical to how it was found
// (spec.md's add-then-fail atomicity requirement): the in-memory Project
// is only ever serialized back out after resolveAll succeeds, and the
// write itself goes through a temp-file-then-rename so a crash mid-write
// can never leave a partially-written manifest behind.
func runAdd(cmd *cobra.Command, name string) error {
	ctx := globalCtx

	pc, err := loadProjectContext()
	if err != nil {
		return err
	}

	for _, d := range pc.Project.Project.Dependencies {
		if d.Name == name {
			return newUsageError("%s is already a dependency", name)
		}
	}

	dep := manifest.Dependency{
		Name:               name,
		Repository:         addRepositoryFlag,
		Git:                addGitFlag,
		Tag:                addTagFlag,
		Branch:             addBranchFlag,
		Commit:             addCommitFlag,
		URL:                addURLFlag,
		Path:               addPathFlag,
		InstallSuggestions: addSuggestsFlag,
		ForceSource:        addForceSourceFlag,
	}
	pc.Project.Project.Dependencies = append(pc.Project.Project.Dependencies, dep)

	if _, err := pc.resolveAll(ctx); err != nil {
		return fmt.Errorf("not adding %s: %w", name, err)
	}

	if err := writeManifestAtomically(configFileFlag, pc.Project); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", name)
	return nil
}

func writeManifestAtomically(path string, proj *manifest.Project) error {
	data, err := proj.Encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rproject-*.toml.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

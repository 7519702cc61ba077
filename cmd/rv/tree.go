package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/a2-ai/rv/internal/resolve"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the resolved dependency graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTree(cmd)
	},
}

func runTree(cmd *cobra.Command) error {
	ctx := globalCtx

	pc, err := loadProjectContext()
	if err != nil {
		return err
	}

	resolved, err := pc.resolveAll(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]resolve.ResolvedDependency, len(resolved))
	var roots []string
	for _, d := range pc.Project.Project.Dependencies {
		roots = append(roots, d.Name)
	}
	for _, r := range resolved {
		byName[r.Name] = r
	}
	sort.Strings(roots)

	out := cmd.OutOrStdout()
	seen := make(map[string]bool)
	for _, root := range roots {
		printNode(out, byName, root, 0, seen)
	}
	return nil
}

func printNode(w interface{ Write([]byte) (int, error) }, byName map[string]resolve.ResolvedDependency, name string, depth int, seen map[string]bool) {
	r, ok := byName[name]
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	if !ok {
		fmt.Fprintf(w, "%s%s (unresolved)\n", indent, name)
		return
	}
	if r.System {
		fmt.Fprintf(w, "%s%s (system)\n", indent, name)
		return
	}
	fmt.Fprintf(w, "%s%s %s\n", indent, r.Name, r.Version)
	if seen[name] {
		return
	}
	seen[name] = true

	deps := make([]string, 0, len(r.Dependencies))
	for d := range r.Dependencies {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	for _, d := range deps {
		printNode(w, byName, d, depth+1, seen)
	}
}

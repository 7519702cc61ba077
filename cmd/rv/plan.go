package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/a2-ai/rv/internal/cache"
)

var planLinkModeFlag string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the build steps sync would take, without executing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd)
	},
}

func init() {
	planCmd.Flags().StringVar(&planLinkModeFlag, "link-mode", "copy", "how to place cached artifacts into the project library: copy, hardlink, symlink")
}

func runPlan(cmd *cobra.Command) error {
	ctx := globalCtx

	pc, err := loadProjectContext()
	if err != nil {
		return err
	}

	linkMode, err := cache.ParseLinkMode(planLinkModeFlag)
	if err != nil {
		return newUsageError("%v", err)
	}

	resolved, err := pc.resolveAll(ctx)
	if err != nil {
		return err
	}

	buildPlan, err := pc.buildPlan(resolved, linkMode)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "STEP\tPACKAGE\tKIND\tDEPENDS ON")
	for _, s := range buildPlan.Steps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", s.ID, s.Package, s.Kind, s.DependsOn)
	}
	return nil
}

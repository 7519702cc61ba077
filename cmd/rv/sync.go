package main

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/errmsg"
	rvsync "github.com/a2-ai/rv/internal/sync"
)

var syncLinkModeFlag string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Resolve dependencies and bring the project library up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncLinkModeFlag, "link-mode", "copy", "how to place cached artifacts into the project library: copy, hardlink, symlink")
}

func runSync(cmd *cobra.Command) error {
	ctx := globalCtx

	pc, err := loadProjectContext()
	if err != nil {
		return err
	}

	linkMode, err := cache.ParseLinkMode(syncLinkModeFlag)
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

	alreadyPresent := map[string]bool{}
	for _, r := range resolved {
		if r.System {
			alreadyPresent[r.Name] = true
		}
	}

	handler := &rvsync.Handler{
		NetworkLimit: 4,
		CompileLimit: int64(runtime.NumCPU()),
		Hooks:        pc.newHooks(),
	}

	results, err := handler.Run(ctx, buildPlan, pc.ProjectLib, alreadyPresent)
	if err != nil {
		return err
	}

	printResults(cmd, results)

	if failures := rvsync.FailuresFrom(results); failures != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errmsg.Format(failures, nil))
		return fmt.Errorf("sync failed")
	}

	return pc.writeLockfile(resolved)
}

func printResults(cmd *cobra.Command, results []rvsync.Result) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "PACKAGE\tOUTCOME")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\n", r.Package, r.Outcome)
	}
}

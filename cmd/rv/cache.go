package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/a2-ai/rv/internal/rvconfig"
)

var cachePurgeYes bool

// stdinIsTerminal reports whether stdin is a terminal, so purge can offer
// an interactive y/n prompt instead of demanding --yes when a human is
// actually at the keyboard. Replaceable for testing.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmReader is where confirmFromStdin reads the y/n answer from.
// Replaceable for testing.
var confirmReader io.Reader = os.Stdin

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the on-disk package cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cache root and its size",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheInfo(cmd)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every cached source, binary, and repository database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCachePurge(cmd)
	},
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cachePurgeCmd.Flags().BoolVar(&cachePurgeYes, "yes", false, "purge without prompting for confirmation")
}

func runCacheInfo(cmd *cobra.Command) error {
	root := cacheDirFlag
	if root == "" {
		var err error
		root, err = rvconfig.CacheRoot()
		if err != nil {
			return err
		}
	}

	size, entries, err := dirSize(root)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache root: %s\n", root)
	fmt.Fprintf(out, "Entries:    %d\n", entries)
	fmt.Fprintf(out, "Size:       %s\n", formatBytes(size))
	return nil
}

func runCachePurge(cmd *cobra.Command) error {
	root := cacheDirFlag
	if root == "" {
		var err error
		root, err = rvconfig.CacheRoot()
		if err != nil {
			return err
		}
	}

	if !pathExists(root) {
		fmt.Fprintln(cmd.OutOrStdout(), "cache is already empty")
		return nil
	}

	if !cachePurgeYes {
		if !stdinIsTerminal() {
			fmt.Fprintf(cmd.OutOrStdout(), "this will remove everything under %s. Re-run with --yes to confirm.\n", root)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "this will remove everything under %s. Continue? [y/N] ", root)
		if !confirmFromStdin() {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
	}

	size, entries, err := dirSize(root)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries, freed %s\n", entries, formatBytes(size))
	return nil
}

// confirmFromStdin reads a single line from stdin and reports whether it
// is "y" or "yes" (case-insensitive); anything else, including EOF, is a no.
func confirmFromStdin() bool {
	line, err := bufio.NewReader(confirmReader).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// dirSize walks root and reports the total apparent size and file count of
// its contents, used by both `cache info` and the purge summary.
func dirSize(root string) (size int64, entries int64, err error) {
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		size += info.Size()
		entries++
		return nil
	})
	return size, entries, err
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

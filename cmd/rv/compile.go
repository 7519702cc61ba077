package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/a2-ai/rv/internal/errmsg"
)

// runInstall invokes `R CMD INSTALL`, the ecosystem's own build command
// (spec.md §1's non-goal: "does not evaluate dynamic install-time
// scripts beyond invoking the ecosystem's own build command"), compiling
// sourcePath into libDir. libDeps' directories are placed on R_LIBS so
// the package's configure/Makevars scripts can find its LinkingTo
// closure's headers and libraries (spec.md's GLOSSARY: "LinkingTo
// closure").
func runInstall(ctx context.Context, sourcePath, libDir string, libDeps []string) error {
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		return err
	}

	args := []string{"CMD", "INSTALL", "--no-docs", "--no-html", "-l", libDir, sourcePath}
	cmd := exec.CommandContext(ctx, "R", args...)
	cmd.Env = append(os.Environ(), "R_LIBS="+joinPaths(libDeps))

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return &errmsg.BuildError{
			Kind:     errmsg.BuildCompile,
			ExitCode: exitCode,
			LogTail:  tail(output.String(), 4096),
			Err:      err,
		}
	}
	return nil
}

func joinPaths(paths []string) string {
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += string(os.PathListSeparator)
		}
		out += p
	}
	return out
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("...(truncated)...%s", s[len(s)-n:])
}

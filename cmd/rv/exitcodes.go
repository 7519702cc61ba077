package main

import "os"

// Exit codes per spec.md §6's CLI contract: "0 success; 1 resolution or
// sync failure; 2 usage error."
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

func exitWithCode(code int) {
	os.Exit(code)
}

package gitio

import (
	"context"
	"fmt"
	"strings"
)

// Fake is an in-memory Runner for tests. Responses are keyed by the
// joined command line ("clone <url> <dir>", "rev-parse --short HEAD",
// etc); an unregistered command returns CommandError.
type Fake struct {
	Responses map[string]string
	Errors    map[string]error
	Calls     []Call
}

// Call records one Run invocation observed by Fake.
type Call struct {
	Dir  string
	Args []string
}

// NewFake creates an empty Fake Runner.
func NewFake() *Fake {
	return &Fake{
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
	}
}

// CommandError is returned for a Fake command with no registered response.
type CommandError struct {
	Args []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("gitio fake: no response registered for %q", strings.Join(e.Args, " "))
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, dir string, args ...string) (string, error) {
	f.Calls = append(f.Calls, Call{Dir: dir, Args: args})

	key := strings.Join(args, " ")
	if err, ok := f.Errors[key]; ok {
		return "", err
	}
	if resp, ok := f.Responses[key]; ok {
		return resp, nil
	}
	return "", &CommandError{Args: args}
}

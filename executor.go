package queuectl

import (
	"context"
	"os/exec"
	"strings"
)

// Executor runs an opaque shell command and reports success or failure.
//
// Executor imposes no timeout of its own: a long-running command blocks
// the worker slot that claimed it for the command's entire duration. Adding
// a per-job timeout would be a straightforward extension but is out of
// scope here.
type Executor struct{}

// NewExecutor creates an Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute trims surrounding whitespace from command; if the resulting
// string is bracketed by a matching pair of single or double quotes (both
// endpoints the same quote character), exactly one such pair is stripped.
// The resulting string is run as a shell command via "sh -c", with
// stdin, stdout and stderr attached to the null device, so any output is
// discarded.
//
// Execute returns true iff the subprocess exits with status 0. Any error
// launching the process (missing shell, permission denied, and so on) is
// reported as failure, not propagated.
func (e *Executor) Execute(ctx context.Context, command string) bool {
	cmd := strings.TrimSpace(command)
	if n := len(cmd); n >= 2 {
		first, last := cmd[0], cmd[n-1]
		if first == last && (first == '\'' || first == '"') {
			cmd = cmd[1 : n-1]
		}
	}
	proc := exec.CommandContext(ctx, "sh", "-c", cmd)
	return proc.Run() == nil
}

// Package remote runs shell commands on provisioned servers.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/edvin/paas/internal/model"
)

// ErrConnection wraps every failure to reach or authenticate to a host.
var ErrConnection = errors.New("remote connection failed")

// CommandError is returned when a command exits non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q exited with status %d: %s", e.Command, e.ExitCode, e.Output)
}

// Streams receive command output one line at a time while the command runs.
// Either callback may be nil. Calls are never concurrent.
type Streams struct {
	Stdout func(line string)
	Stderr func(line string)
	// StdoutWriter, when set, receives stdout unsplit instead of Stdout. The
	// Result then carries no stdout text.
	StdoutWriter io.Writer
}

// Combined sends both streams to fn.
func Combined(fn func(line string)) Streams {
	return Streams{Stdout: fn, Stderr: fn}
}

// Result is the full output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Conn is a connection to one host, scoped to a single job.
type Conn interface {
	// Run executes cmd and blocks until it exits. A non-zero exit returns the
	// result together with a *CommandError.
	Run(ctx context.Context, cmd string, streams Streams) (*Result, error)
	// Close releases the connection. Calls after the first are no-ops.
	Close() error
}

// Executor opens connections to hosts.
type Executor interface {
	Connect(ctx context.Context, details model.SSHDetails) (Conn, error)
}

// Package remotetest provides a scripted remote.Executor for tests.
package remotetest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/remote"
)

// Response is what a matched command prints and how it exits.
type Response struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
	// Err is returned as a transport failure instead of an exit status.
	Err error
}

// Rule maps commands containing Match to a Response.
type Rule struct {
	Match    string
	Response Response
	times    int
}

// Once limits the rule to a single use.
func (r *Rule) Once() *Rule {
	r.times = 1
	return r
}

// Executor answers commands from rules. The most recently added matching rule
// wins; unmatched commands succeed with no output.
type Executor struct {
	mu         sync.Mutex
	rules      []*Rule
	commands   []string
	conns      []*Conn
	ConnectErr error
}

var _ remote.Executor = (*Executor)(nil)

func New() *Executor {
	return &Executor{}
}

func (e *Executor) On(match string, resp Response) *Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &Rule{Match: match, Response: resp}
	e.rules = append(e.rules, r)
	return r
}

func (e *Executor) Connect(ctx context.Context, d model.SSHDetails) (remote.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ConnectErr != nil {
		return nil, e.ConnectErr
	}
	c := &Conn{exec: e, Details: d}
	e.conns = append(e.conns, c)
	return c, nil
}

// Commands returns every command run so far in order.
func (e *Executor) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// Ran reports whether a command containing substr was run.
func (e *Executor) Ran(substr string) bool {
	for _, c := range e.Commands() {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

// Conns returns every connection opened so far.
func (e *Executor) Conns() []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Conn(nil), e.conns...)
}

func (e *Executor) match(cmd string) Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmd)
	for i := len(e.rules) - 1; i >= 0; i-- {
		r := e.rules[i]
		if r.times < 0 || !strings.Contains(cmd, r.Match) {
			continue
		}
		if r.times == 1 {
			r.times = -1
		}
		return r.Response
	}
	return Response{}
}

// Conn is a fake connection that counts Close calls.
type Conn struct {
	exec    *Executor
	Details model.SSHDetails

	mu     sync.Mutex
	closes int
}

func (c *Conn) Run(ctx context.Context, cmd string, streams remote.Streams) (*remote.Result, error) {
	resp := c.exec.match(cmd)
	if resp.Err != nil {
		return nil, resp.Err
	}
	var out, errOut strings.Builder
	for _, l := range resp.Stdout {
		if streams.StdoutWriter != nil {
			if _, err := io.WriteString(streams.StdoutWriter, l+"\n"); err != nil {
				return nil, err
			}
			continue
		}
		out.WriteString(l + "\n")
		if streams.Stdout != nil {
			streams.Stdout(l)
		}
	}
	for _, l := range resp.Stderr {
		errOut.WriteString(l + "\n")
		if streams.Stderr != nil {
			streams.Stderr(l)
		}
	}
	res := &remote.Result{Stdout: out.String(), Stderr: errOut.String(), ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		output := strings.Join(append(append([]string(nil), resp.Stdout...), resp.Stderr...), "\n")
		return res, &remote.CommandError{Command: cmd, ExitCode: resp.ExitCode, Output: output}
	}
	return res, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// Closes returns how many times Close was called.
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

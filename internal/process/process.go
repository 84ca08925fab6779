// Package process runs the external speech and playback helpers and lets the
// narrator freeze them in place.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

var (
	ErrNotStarted  = errors.New("process not started")
	ErrUnsupported = errors.New("suspend is not supported on this platform")
)

// Command wraps an exec.Cmd with a Done channel and suspend support.
type Command struct {
	cmd *exec.Cmd

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
}

func New(ctx context.Context, name string, args ...string) *Command {
	return &Command{
		cmd:  exec.CommandContext(ctx, name, args...),
		done: make(chan struct{}),
	}
}

// SetStdin feeds r to the process. It must be called before Start.
func (c *Command) SetStdin(r io.Reader) {
	c.cmd.Stdin = r
}

// Start launches the process and begins waiting on it in the background.
func (c *Command) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.cmd.Path, err)
	}
	c.started = true

	go func() {
		err := c.cmd.Wait()
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	}()
	return nil
}

// Done is closed once the process has exited.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Err returns the exit error after Done is closed.
func (c *Command) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Command) Suspend() error {
	pid, err := c.pid()
	if err != nil {
		return err
	}
	return suspend(pid)
}

func (c *Command) Resume() error {
	pid, err := c.pid()
	if err != nil {
		return err
	}
	return resume(pid)
}

// Kill terminates the process. A suspended process is resumed first so the
// signal is delivered.
func (c *Command) Kill() error {
	pid, err := c.pid()
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return nil
	default:
	}

	_ = resume(pid)
	if err := c.cmd.Process.Kill(); err != nil {
		select {
		case <-c.done:
			return nil
		default:
		}
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	return nil
}

func (c *Command) pid() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.cmd.Process == nil {
		return 0, ErrNotStarted
	}
	return c.cmd.Process.Pid, nil
}

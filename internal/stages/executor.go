package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command is one blocking invocation of an external tool.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	LogPath string // combined stdout/stderr; discarded when empty
	Stdout  string // when set, stdout goes to this file instead of the log
}

func (c Command) String() string {
	s := c.Name + " " + strings.Join(c.Args, " ")
	if c.Stdout != "" {
		s += " > " + c.Stdout
	}
	return s
}

// Executor runs commands. Success is the tool's own exit status.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct{}

// Run starts the tool and waits for it. Cancelling ctx kills the process.
func (ExecExecutor) Run(ctx context.Context, c Command) error {
	if _, err := exec.LookPath(c.Name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", c.Name, err)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var logOut io.Writer = io.Discard
	if c.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(c.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open tool log: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	cmd.Stdout = logOut
	cmd.Stderr = logOut

	if c.Stdout != "" {
		out, err := os.Create(c.Stdout)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.Stdout, err)
		}
		defer func() { _ = out.Close() }()
		cmd.Stdout = out
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", c.Name, ctx.Err())
		}
		return fmt.Errorf("%s exited: %w", c.Name, err)
	}
	return nil
}

package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// ShellWaitDelay bounds how long Wait blocks on output pipes held open by
// children after the shell itself has been killed
const ShellWaitDelay = 2 * time.Second

// CommandRunner defines an interface for executing system commands
// This allows for mocking in tests and dependency injection
type CommandRunner interface {
	// CommandExists checks if a command is available in PATH
	CommandExists(name string) bool

	// RequireCommand ensures a command exists or returns error
	RequireCommand(name string) error

	// RunShell runs a command line through the host shell and returns both
	// stdout and stderr
	RunShell(ctx context.Context, line string) (stdout, stderr string, err error)

	// GetExitCode extracts the exit code from a command error
	GetExitCode(err error) int

	// PrepareShell prepares a shell command line but does not execute it
	PrepareShell(ctx context.Context, dir, line string) *exec.Cmd
}

// OSCommandRunner is the default implementation using os/exec
type OSCommandRunner struct {
	commandCache sync.Map // map[string]bool
}

// NewOSCommandRunner creates a new OSCommandRunner instance
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// CommandExists checks if a command is available in PATH
func (r *OSCommandRunner) CommandExists(name string) bool {
	if cached, ok := r.commandCache.Load(name); ok {
		if exists, ok := cached.(bool); ok {
			return exists
		}
		r.commandCache.Delete(name)
	}

	_, err := exec.LookPath(name)
	exists := err == nil
	r.commandCache.Store(name, exists)
	return exists
}

// RequireCommand ensures a command exists or returns error
func (r *OSCommandRunner) RequireCommand(name string) error {
	if !r.CommandExists(name) {
		return fmt.Errorf("required command %q not found in PATH", name)
	}
	return nil
}

// RunShell runs line through the host shell and returns both streams.
// The shell gets its own process group so cancelling ctx also kills the
// processes it started; it must not need the terminal.
func (r *OSCommandRunner) RunShell(ctx context.Context, line string) (stdout, stderr string, err error) {
	cmd := r.PrepareShell(ctx, "", line)
	setProcessGroup(cmd)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err != nil {
		err = fmt.Errorf("command %q failed: %w", line, err)
	}

	return stdout, stderr, err
}

// GetExitCode extracts the exit code from a command error
func (r *OSCommandRunner) GetExitCode(err error) int {
	return ExitCode(err)
}

// PrepareShell prepares a shell command line but does not execute it.
// Callers can configure Stdout/Stderr and other settings before calling
// Run() or Start(). An empty dir keeps the current working directory.
func (r *OSCommandRunner) PrepareShell(ctx context.Context, dir, line string) *exec.Cmd {
	name, args := ShellArgs(line)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = ShellWaitDelay
	return cmd
}

// ShellArgs returns the host shell invocation for a command line so chained
// and piped commands run as a single string
func ShellArgs(line string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", line}
	}
	return "sh", []string{"-c", line}
}

// ExitCode extracts the process exit code from err, 0 for nil and -1 when
// the process never produced one
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

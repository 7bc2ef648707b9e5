package helpers

import (
	"context"
	"os/exec"
)

// MockCommandRunner is a mock implementation of CommandRunner for testing
type MockCommandRunner struct {
	CommandExistsFunc  func(name string) bool
	RequireCommandFunc func(name string) error
	RunShellFunc       func(ctx context.Context, line string) (stdout, stderr string, err error)
	GetExitCodeFunc    func(err error) int
	PrepareShellFunc   func(ctx context.Context, dir, line string) *exec.Cmd
}

// CommandExists implements CommandRunner.CommandExists
func (m *MockCommandRunner) CommandExists(name string) bool {
	if m.CommandExistsFunc != nil {
		return m.CommandExistsFunc(name)
	}
	return false
}

// RequireCommand implements CommandRunner.RequireCommand
func (m *MockCommandRunner) RequireCommand(name string) error {
	if m.RequireCommandFunc != nil {
		return m.RequireCommandFunc(name)
	}
	return nil
}

// RunShell implements CommandRunner.RunShell
func (m *MockCommandRunner) RunShell(ctx context.Context, line string) (stdout, stderr string, err error) {
	if m.RunShellFunc != nil {
		return m.RunShellFunc(ctx, line)
	}
	return "", "", nil
}

// GetExitCode implements CommandRunner.GetExitCode
func (m *MockCommandRunner) GetExitCode(err error) int {
	if m.GetExitCodeFunc != nil {
		return m.GetExitCodeFunc(err)
	}
	return ExitCode(err)
}

// PrepareShell implements CommandRunner.PrepareShell. Without a func the
// real shell is used so tests can drive the executor with scripted lines.
func (m *MockCommandRunner) PrepareShell(ctx context.Context, dir, line string) *exec.Cmd {
	if m.PrepareShellFunc != nil {
		return m.PrepareShellFunc(ctx, dir, line)
	}
	return NewOSCommandRunner().PrepareShell(ctx, dir, line)
}

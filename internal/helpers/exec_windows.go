//go:build windows

package helpers

import "os/exec"

// setProcessGroup is a no-op on Windows; WaitDelay bounds the wait instead.
func setProcessGroup(_ *exec.Cmd) {}

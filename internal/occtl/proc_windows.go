//go:build windows

package occtl

import "os/exec"

// configureProcess keeps the default CommandContext behaviour (Process.Kill).
func configureProcess(*exec.Cmd) {}

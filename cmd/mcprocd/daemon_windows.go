//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonAttrs sets Windows-specific daemon attributes, grounded
// on loykin-provisr/cmd/provisr/daemon_windows.go.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x08000000, // CREATE_NO_WINDOW
	}
}

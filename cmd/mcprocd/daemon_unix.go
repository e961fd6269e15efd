//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonAttrs detaches cmd into its own session so it survives
// the parent's exit. Unlike loykin-provisr/cmd/provisr/daemon_unix.go,
// whose equivalent helper is defined but never called from daemonize()
// (daemon.go sets SysProcAttr inline instead), daemonize below actually
// calls this.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

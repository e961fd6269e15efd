//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in a new process group (pgid ==
// child pid) so the whole group can be signalled together on termination,
// per spec.md §4.1 ("establish a new process group so descendants can be
// signalled collectively"). Grounded on
// loykin-provisr/internal/process/sysattrs_unix.go.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Paths resolves the XDG-like layout spec.md §6 mandates, grounded on
// original_source/mcproc/src/common/paths.rs and xdg.rs. No legacy
// ~/.mcproc migration is carried forward: there is no prior Go install to
// migrate from (see SPEC_FULL.md, Supplemented Features).
type Paths struct {
	RuntimeRoot string // <runtime_root>: $XDG_RUNTIME_DIR or /tmp/mcproc-<uid>
	StateRoot   string // <state_root>: $XDG_STATE_HOME or ~/.local/state
}

// Resolve computes Paths from the environment.
func Resolve() (Paths, error) {
	runtimeRoot, err := runtimeDir()
	if err != nil {
		return Paths{}, err
	}
	stateRoot, err := stateDir()
	if err != nil {
		return Paths{}, err
	}
	return Paths{RuntimeRoot: runtimeRoot, StateRoot: stateRoot}, nil
}

func runtimeDir() (string, error) {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return v, nil
	}
	return fmt.Sprintf("/tmp/mcproc-%d", os.Getuid()), nil
}

func stateDir() (string, error) {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state"), nil
}

// SocketPath is <runtime_root>/mcproc/mcprocd.sock.
func (p Paths) SocketPath() string {
	return filepath.Join(p.RuntimeRoot, "mcproc", "mcprocd.sock")
}

// PidFile is <runtime_root>/mcproc/mcprocd.pid.
func (p Paths) PidFile() string {
	return filepath.Join(p.RuntimeRoot, "mcproc", "mcprocd.pid")
}

// LogDir is <state_root>/log, the parent of every per-project log directory.
func (p Paths) LogDir() string {
	return filepath.Join(p.StateRoot, "log")
}

// ProjectLogDir is <state_root>/log/<project>.
func (p Paths) ProjectLogDir(project string) string {
	return filepath.Join(p.LogDir(), project)
}

// ProcessLogFile is <state_root>/log/<project>/<name>.log.
func (p Paths) ProcessLogFile(project, sanitizedName string) string {
	return filepath.Join(p.ProjectLogDir(project), sanitizedName+".log")
}

// DaemonLogFile is <state_root>/log/mcprocd.log.
func (p Paths) DaemonLogFile() string {
	return filepath.Join(p.LogDir(), "mcprocd.log")
}

// EnsureRuntimeDir creates <runtime_root>/mcproc with 0700 permissions and
// the socket's parent directory.
func (p Paths) EnsureRuntimeDir() error {
	dir := filepath.Join(p.RuntimeRoot, "mcproc")
	return os.MkdirAll(dir, 0o700)
}

// WritePidFile writes pid, as bare ASCII digits on the first line per
// spec.md §6 ("containing the daemon's pid as ASCII digits"), followed by
// its kernel-reported start time (unix seconds, 0 if unavailable) on a
// second line. An external collaborator that only reads the first line
// gets the plain pid spec.md documents; ReadPidFile additionally consumes
// the second line to tell a genuinely still-running daemon apart from an
// unrelated process that reused the same pid after a crash.
func (p Paths) WritePidFile(pid int, startUnix int64) error {
	if err := p.EnsureRuntimeDir(); err != nil {
		return err
	}
	content := fmt.Sprintf("%d\n%d\n", pid, startUnix)
	return os.WriteFile(p.PidFile(), []byte(content), 0o600)
}

// RemovePidFile removes the pid file, tolerating its absence.
func (p Paths) RemovePidFile() error {
	err := os.Remove(p.PidFile())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ReadPidFile returns the pid and recorded start time written by
// WritePidFile, or (0, 0) if the file is absent or malformed.
func (p Paths) ReadPidFile() (pid int, startUnix int64) {
	b, err := os.ReadFile(p.PidFile())
	if err != nil {
		return 0, 0
	}
	lines := strings.SplitN(strings.TrimSpace(string(b)), "\n", 2)
	pid, err = strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, 0
	}
	if len(lines) == 2 {
		startUnix, _ = strconv.ParseInt(strings.TrimSpace(lines[1]), 10, 64)
	}
	return pid, startUnix
}

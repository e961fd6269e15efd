// mcprocd is the resident daemon: it owns the Unix-domain socket, the
// process registry, and the log hub, and runs until signalled to stop.
// Grounded on loykin-provisr/cmd/provisr/main.go's buildRoot/createServeCommand
// shape, cut down to the single "serve" responsibility mcproc has (no
// register/cron/group/auth/template commands: spec.md's Non-goals exclude
// all of them).
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/neptaco/mcproc/internal/common"
	"github.com/neptaco/mcproc/internal/config"
	"github.com/neptaco/mcproc/internal/env"
	"github.com/neptaco/mcproc/internal/logger"
	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/metrics"
	"github.com/neptaco/mcproc/internal/process"
	"github.com/neptaco/mcproc/internal/rpcserver"
	"github.com/neptaco/mcproc/internal/supervisor"
)

// version is overridden at release build time via -ldflags; DaemonStatus
// reports it verbatim (spec.md §4.1).
var version = "dev"

func main() {
	if err := buildRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type serveFlags struct {
	ConfigPath string
	Daemonize  bool
	LogFile    string
}

func buildRoot() *cobra.Command {
	flags := &serveFlags{}
	root := &cobra.Command{
		Use:   "mcprocd",
		Short: "mcproc's resident process supervisor daemon",
		Long: `mcprocd listens on a Unix-domain socket and supervises the processes
started against it over mcproc's RPC protocol.

Examples:
  mcprocd                             # run in the foreground
  mcprocd --daemonize                 # fork into the background and exit
  mcprocd --config ~/.config/mcproc/mcprocd.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags)
		},
	}
	root.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.Flags().BoolVar(&flags.Daemonize, "daemonize", false, "fork into the background and detach from the controlling terminal")
	root.Flags().StringVar(&flags.LogFile, "logfile", "", "override the daemon diagnostic log path (defaults to <state_root>/log/mcprocd.log)")
	return root
}

func run(flags *serveFlags) error {
	paths, err := common.Resolve()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.RuntimeRoot != "" {
		paths.RuntimeRoot = cfg.RuntimeRoot
	}
	if cfg.StateRoot != "" {
		paths.StateRoot = cfg.StateRoot
	}

	logPath := flags.LogFile
	if logPath == "" {
		logPath = paths.DaemonLogFile()
	}

	if flags.Daemonize {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return err
		}
		pid, err := daemonize(logPath)
		if err != nil {
			return err
		}
		fmt.Printf("mcprocd started with pid %d\n", pid)
		return nil
	}

	if err := checkNotAlreadyRunning(paths); err != nil {
		return err
	}
	if err := paths.EnsureRuntimeDir(); err != nil {
		return err
	}
	if err := os.MkdirAll(paths.LogDir(), 0o755); err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Path:         logPath,
		MaxSizeMB:    cfg.LogMaxSizeMB,
		MaxBackups:   cfg.LogMaxBackups,
		MaxAgeDays:   cfg.LogMaxAgeDays,
		Compress:     cfg.LogCompress,
		Level:        slog.LevelInfo,
		MirrorStderr: true,
	})
	slog.SetDefault(log)

	startUnix, _ := process.StartTimeOf(os.Getpid())
	if err := paths.WritePidFile(os.Getpid(), startUnix.Unix()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _ = paths.RemovePidFile() }()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}
	if cfg.MetricsListenAddr != "" {
		go func() {
			log.Info("metrics listener started", "addr", cfg.MetricsListenAddr)
			if err := http.ListenAndServe(cfg.MetricsListenAddr, metrics.Handler()); err != nil {
				log.Error("metrics listener exited", "error", err)
			}
		}()
	}

	e, err := buildEnv(cfg)
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}

	logFile := func(key common.ProcessKey) string {
		return paths.ProcessLogFile(key.Project, key.SanitizedName())
	}
	hub := loghub.NewHub(logFile)
	defer hub.Close()

	reg := supervisor.NewRegistry(hub, e, logFile, version)

	srv, err := rpcserver.NewServer(paths.SocketPath(), reg, paths.StateRoot, log)
	if err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	sweepPolicy := loghub.RetentionPolicy{MaxAge: cfg.RetentionDuration(), MaxFileBytes: cfg.MaxLogBytes}
	if removed, err := loghub.Sweep(paths.LogDir(), sweepPolicy); err != nil {
		log.Warn("startup log sweep failed", "error", err)
	} else if len(removed) > 0 {
		log.Info("startup log sweep removed files", "count", len(removed))
	}
	stopSweep := make(chan struct{})
	defer close(stopSweep)
	go loghub.RunPeriodicSweep(paths.LogDir(), sweepPolicy, 6*time.Hour, stopSweep)

	log.Info("mcprocd started", "pid", os.Getpid(), "socket", paths.SocketPath(), "version", version)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	}
	return nil
}

// checkNotAlreadyRunning reads any pre-existing pid file and refuses to
// start if it points at a process that is still alive and carries the
// recorded start time: spec.md has no multi-daemon concept, so a second
// mcprocd against the same runtime root would race the first one for the
// socket. A pid file pointing at a dead or reused pid is treated as
// stale and silently overwritten.
func checkNotAlreadyRunning(paths common.Paths) error {
	pid, startUnix := paths.ReadPidFile()
	if pid == 0 {
		return nil
	}
	actual, ok := process.StartTimeOf(pid)
	if !ok {
		return nil // pid not alive (or unqueryable): stale pid file
	}
	if actual.Unix() == startUnix {
		return fmt.Errorf("mcprocd already running with pid %d", pid)
	}
	return nil // pid alive but started at a different time: reused, stale
}

// buildEnv composes the daemon-wide base environment from cfg, grounded
// on internal/env.Env.Merge's base-then-override composition order: OS
// env (if opted in), then env_files in order, then inline env entries.
func buildEnv(cfg config.Config) (*env.Env, error) {
	e := env.New()
	if cfg.UseOSEnv {
		e.FromOS()
	}
	for _, path := range cfg.EnvFiles {
		if err := loadEnvFile(e, path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	for _, kv := range cfg.Env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env entry %q: expected KEY=VALUE", kv)
		}
		e.Set(k, v)
	}
	return e, nil
}

// loadEnvFile applies a .env-style file (KEY=VALUE per line, blank lines
// and lines starting with # ignored) onto e.
func loadEnvFile(e *env.Env, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid line %q: expected KEY=VALUE", line)
		}
		e.Set(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return scanner.Err()
}

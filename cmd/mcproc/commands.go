package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/neptaco/mcproc/pkg/client"
)

func newStartCommand(g *globalFlags) *cobra.Command {
	var project, name, shellCmd, cwd, waitFor, toolchain string
	var waitTimeout time.Duration
	var forceRestart bool
	var envVars map[string]string

	cmd := &cobra.Command{
		Use:   "start --project PROJECT --name NAME (--cmd \"shell command\" | -- argv...)",
		Short: "Start a process under the daemon's supervision",
		Long: `Start spawns a command under the daemon's supervision and streams its
captured output until it becomes ready (or exits). If a process with the
same project/name is already running, start fails with AlreadyExists
unless --force-restart is given, which stops and replaces it.

Examples:
  mcproc start --project demo --name web --cmd "npm run dev" --wait-for "ready on"
  mcproc start --project demo --name worker -- python worker.py --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.Start(ctx, client.StartParams{
				Project:        project,
				Name:           name,
				ShellCommand:   shellCmd,
				Argv:           args,
				Cwd:            cwd,
				Env:            envVars,
				WaitForPattern: waitFor,
				WaitTimeout:    waitTimeout,
				Toolchain:      toolchain,
				ForceRestart:   forceRestart,
			})
			if err != nil {
				return err
			}
			var final *client.ProcessRecord
			for item := range stream.Items() {
				if item.LogLine != nil {
					printLogLine(*item.LogLine)
				}
				if item.Record != nil {
					final = item.Record
				}
			}
			if err := stream.Err(); err != nil {
				return err
			}
			if final != nil {
				printRecord(*final)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&name, "name", "", "process name within the project (required)")
	cmd.Flags().StringVar(&shellCmd, "cmd", "", "shell command to run (mutually exclusive with trailing argv)")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory (defaults to the daemon's own)")
	cmd.Flags().StringVar(&waitFor, "wait-for", "", "regex pattern on captured output that marks the process ready")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 30*time.Second, "how long to wait for --wait-for before giving up")
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "version manager to run the command through (e.g. mise, asdf, nvm, pyenv)")
	cmd.Flags().BoolVar(&forceRestart, "force-restart", false, "stop and replace an existing process with the same project/name")
	cmd.Flags().StringToStringVar(&envVars, "env", nil, "extra environment variable, KEY=VALUE (repeatable)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStopCommand(g *globalFlags) *cobra.Command {
	var project, name string
	var force bool
	cmd := &cobra.Command{
		Use:   "stop --project PROJECT --name NAME",
		Short: "Stop a running process",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.Timeout)
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			rec, err := c.Stop(ctx, project, name, force)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&name, "name", "", "process name (required)")
	cmd.Flags().BoolVar(&force, "force", false, "skip the graceful grace period and kill immediately")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newRestartCommand(g *globalFlags) *cobra.Command {
	var project, name, waitFor string
	var waitTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "restart --project PROJECT --name NAME",
		Short: "Stop and re-spawn a process with its previously recorded command",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.Timeout)
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			params := client.RestartParams{Project: project, Name: name}
			if cmd.Flags().Changed("wait-for") {
				params.WaitForPattern = &waitFor
			}
			if cmd.Flags().Changed("wait-timeout") {
				params.WaitTimeout = &waitTimeout
			}
			rec, err := c.Restart(ctx, params)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&name, "name", "", "process name (required)")
	cmd.Flags().StringVar(&waitFor, "wait-for", "", "override the readiness pattern for this restart")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 30*time.Second, "override the readiness timeout for this restart")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newGetCommand(g *globalFlags) *cobra.Command {
	var project, name string
	cmd := &cobra.Command{
		Use:   "get --project PROJECT --name NAME",
		Short: "Show the full record for one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.Timeout)
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			rec, err := c.Get(ctx, project, name)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&name, "name", "", "process name (required)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCommand(g *globalFlags) *cobra.Command {
	var project, state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known processes",
		Long: `List every process record the daemon knows about, optionally narrowed
to one project and/or lifecycle state.

Examples:
  mcproc list
  mcproc list --project demo
  mcproc list --state Running`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.Timeout)
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			records, err := c.List(ctx, project, state)
			if err != nil {
				return err
			}
			printRecordTable(records)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "restrict to one project (optional)")
	cmd.Flags().StringVar(&state, "state", "", "restrict to one lifecycle state: Starting|Running|Stopping|Stopped|Failed (optional)")
	return cmd
}

func newLogsCommand(g *globalFlags) *cobra.Command {
	var project, name string
	var tail int
	var follow, events bool
	cmd := &cobra.Command{
		Use:   "logs --project PROJECT [--name NAME]",
		Short: "Print a process's captured output, optionally following it live",
		Long:  "Print a process's captured output, optionally following it live.\nOmitting --name fans out over every process known in the project, tagging each line with its source process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !follow {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.Timeout)
				defer cancel()
			}
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.GetLogs(ctx, client.GetLogsParams{
				Project:       project,
				Name:          name,
				Tail:          tail,
				Follow:        follow,
				IncludeEvents: events,
			})
			if err != nil {
				return err
			}
			for item := range stream.Items() {
				if item.LogLine != nil {
					printLogLine(*item.LogLine)
				}
				if item.Lifecycle != nil {
					printLifecycleEvent(*item.Lifecycle)
				}
			}
			return stream.Err()
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&name, "name", "", "process name (omit to fan out over every process in the project)")
	cmd.Flags().IntVar(&tail, "tail", 100, "number of buffered lines to print before following")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep streaming new lines as they arrive")
	cmd.Flags().BoolVar(&events, "events", false, "interleave start/stop/fail lifecycle events with log lines")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// defaultGrepContext is spec.md §4.2 Grep's "context (default 3)".
const defaultGrepContext = 3

func newGrepCommand(g *globalFlags) *cobra.Command {
	var project, name, pattern, last string
	var ctxLines, before, after, maxMatches int
	cmd := &cobra.Command{
		Use:   "grep --project PROJECT --name NAME PATTERN",
		Short: "Search a process's log file by regex, with optional context and time filtering",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				pattern = args[0]
			}
			if pattern == "" {
				return fmt.Errorf("grep requires a pattern (positional argument or --pattern)")
			}
			if !cmd.Flags().Changed("before") {
				before = ctxLines
			}
			if !cmd.Flags().Changed("after") {
				after = ctxLines
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.Timeout)
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			matches, err := c.Grep(ctx, client.GrepParams{
				Project:       project,
				Name:          name,
				Pattern:       pattern,
				ContextBefore: before,
				ContextAfter:  after,
				Last:          last,
				MaxMatches:    maxMatches,
			})
			if err != nil {
				return err
			}
			printGrepMatches(matches)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&name, "name", "", "process name (required)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "regex pattern (alternative to the positional argument)")
	cmd.Flags().IntVarP(&ctxLines, "context", "C", defaultGrepContext, "lines of context on each side of a match, unless --before/--after is set")
	cmd.Flags().IntVarP(&before, "before", "B", 0, "lines of context before each match (overrides --context)")
	cmd.Flags().IntVarP(&after, "after", "A", 0, "lines of context after each match (overrides --context)")
	cmd.Flags().StringVar(&last, "last", "", "restrict to the last duration, e.g. 10m, 2h, 1d")
	cmd.Flags().IntVar(&maxMatches, "max-matches", 0, "cap the number of matches returned (0 means unbounded)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCleanCommand(g *globalFlags) *cobra.Command {
	var project string
	var all, force bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Stop and remove process records and their log files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.Timeout)
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			result, err := c.Clean(ctx, project, all, force)
			if err != nil {
				return err
			}
			printCleanResult(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "restrict to one project (optional, required unless --all)")
	cmd.Flags().BoolVar(&all, "all", false, "clean every project")
	cmd.Flags().BoolVar(&force, "force", false, "kill running processes immediately instead of stopping them gracefully")
	return cmd
}

func newStatusCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's own version, pid, and uptime",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.Timeout)
			defer cancel()
			c, err := dial(ctx, g)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			status, err := c.DaemonStatus(ctx)
			if err != nil {
				return err
			}
			printDaemonStatus(status)
			return nil
		},
	}
	return cmd
}

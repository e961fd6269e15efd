package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/neptaco/mcproc/pkg/client"
)

// printLogLine matches the plain `timestamp level content` shape a
// terminal-watching human expects from `logs`/`start`, distinct from
// the JSON handler internal/logger uses for the daemon's own diagnostic
// log (that log is for mcprocd's operator, not mcproc's).
func printLogLine(e client.LogEntry) {
	if e.ProcessName != "" {
		fmt.Printf("%s [%s] [%s] %s\n", e.Timestamp.Format("15:04:05.000"), e.Level, e.ProcessName, e.Content)
		return
	}
	fmt.Printf("%s [%s] %s\n", e.Timestamp.Format("15:04:05.000"), e.Level, e.Content)
}

func printLifecycleEvent(ev client.LifecycleEvent) {
	switch ev.Type {
	case "Stopped":
		code := 0
		if ev.ExitCode != nil {
			code = *ev.ExitCode
		}
		fmt.Printf("%s -- %s/%s exited (code %d)\n", ev.Timestamp.Format("15:04:05.000"), ev.Project, ev.Name, code)
	case "Failed":
		msg := ""
		if ev.Error != nil {
			msg = *ev.Error
		}
		fmt.Printf("%s -- %s/%s failed: %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Project, ev.Name, msg)
	default:
		fmt.Printf("%s -- %s/%s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Project, ev.Name, ev.Type)
	}
}

func printRecord(r client.ProcessRecord) {
	fmt.Printf("%s/%s\n", r.Project, r.Name)
	fmt.Printf("  state:   %s\n", r.State)
	if r.PID != 0 {
		fmt.Printf("  pid:     %d\n", r.PID)
	}
	if r.ShellCommand != "" {
		fmt.Printf("  command: %s\n", r.ShellCommand)
	} else if len(r.Argv) > 0 {
		fmt.Printf("  argv:    %v\n", r.Argv)
	}
	if !r.StartTime.IsZero() {
		fmt.Printf("  started: %s\n", r.StartTime.Format("2006-01-02 15:04:05"))
	}
	if len(r.Ports) > 0 {
		fmt.Printf("  ports:   %v\n", r.Ports)
	}
	if r.Readiness != nil {
		if r.Readiness.WaitTimeout {
			fmt.Printf("  ready:   timed out waiting for readiness pattern\n")
		} else if r.Readiness.MatchedLine != "" {
			fmt.Printf("  ready:   matched %q\n", r.Readiness.MatchedLine)
		}
	}
	if r.Exit != nil {
		fmt.Printf("  exit:    code=%d reason=%s\n", r.Exit.Code, r.Exit.Reason)
		for _, line := range r.Exit.StderrTail {
			fmt.Printf("    | %s\n", line)
		}
	}
	fmt.Printf("  log:     %s\n", r.LogFilePath)
}

func printRecordTable(records []client.ProcessRecord) {
	if len(records) == 0 {
		fmt.Println("no processes")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	fmt.Fprintln(w, "PROJECT\tNAME\tSTATE\tPID\tSTARTED")
	for _, r := range records {
		started := ""
		if !r.StartTime.IsZero() {
			started = r.StartTime.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Project, r.Name, r.State, r.PID, started)
	}
}

func printGrepMatches(matches []client.GrepMatch) {
	if len(matches) == 0 {
		fmt.Println("no matches")
		return
	}
	for i, m := range matches {
		if i > 0 {
			fmt.Println("--")
		}
		for _, e := range m.ContextBefore {
			fmt.Printf("  %d: %s\n", e.LineNumber, e.Content)
		}
		fmt.Printf("%d: %s\n", m.Entry.LineNumber, m.Entry.Content)
		for _, e := range m.ContextAfter {
			fmt.Printf("  %d: %s\n", e.LineNumber, e.Content)
		}
	}
}

func printCleanResult(r client.CleanResult) {
	if len(r.StoppedNames) == 0 && len(r.DeletedPaths) == 0 {
		fmt.Println("nothing to clean")
		return
	}
	for _, name := range r.StoppedNames {
		fmt.Printf("stopped %s\n", name)
	}
	for _, path := range r.DeletedPaths {
		fmt.Printf("removed %s\n", path)
	}
}

func printDaemonStatus(s client.DaemonStatus) {
	fmt.Printf("version:       %s\n", s.Version)
	fmt.Printf("pid:           %d\n", s.PID)
	fmt.Printf("started:       %s\n", s.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("uptime:        %s\n", s.Uptime.Round(1e9))
	fmt.Printf("state root:    %s\n", s.StateRoot)
	fmt.Printf("non-terminal:  %d\n", s.NonTerminalCount)
}

// mcproc is the human-operator command-line client over mcprocd's
// Unix-domain socket (spec.md §6's "command-line client presentation
// layer", explicitly out of the daemon's own scope). Grounded on
// loykin-provisr/cmd/provisr/main.go's buildRoot/per-subcommand shape,
// scoped down to mcproc's nine operations: there is no register, cron,
// group, auth, login, or template concept here.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/neptaco/mcproc/internal/common"
	"github.com/neptaco/mcproc/pkg/client"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags holds the cross-cutting flags every subcommand shares:
// which daemon socket to dial, and the timeout for one call. Grounded on loykin-provisr/cmd/provisr's
// GlobalFlags, with --api-url's remote-HTTP meaning replaced by a local
// --socket override since spec.md §6 has no remote daemon concept.
type globalFlags struct {
	Socket  string
	Timeout time.Duration
}

func buildRoot() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "mcproc",
		Short: "Command-line client for the mcproc process supervisor",
		Long: `mcproc drives a running mcprocd daemon over its Unix-domain socket.

Examples:
  mcproc start --project demo --name web --cmd "npm run dev" --wait-for "ready on"
  mcproc list --project demo
  mcproc logs --project demo --name web --follow
  mcproc stop --project demo --name web`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.Socket, "socket", "", "override the daemon socket path (defaults to the XDG runtime root)")
	root.PersistentFlags().DurationVar(&g.Timeout, "timeout", 10*time.Second, "request timeout for unary operations")

	root.AddCommand(
		newStartCommand(g),
		newStopCommand(g),
		newRestartCommand(g),
		newGetCommand(g),
		newListCommand(g),
		newLogsCommand(g),
		newGrepCommand(g),
		newCleanCommand(g),
		newStatusCommand(g),
	)
	return root
}

// dial resolves the socket path (g.Socket, or the XDG default) and
// connects a fresh client for one command invocation. mcproc is a
// one-shot CLI, not a long-lived session, so there is no benefit to
// reusing a connection across commands.
func dial(ctx context.Context, g *globalFlags) (*client.Client, error) {
	sock := g.Socket
	if sock == "" {
		paths, err := common.Resolve()
		if err != nil {
			return nil, fmt.Errorf("resolve socket path: %w", err)
		}
		sock = paths.SocketPath()
	}
	c, err := client.Dial(ctx, sock)
	if err != nil {
		return nil, fmt.Errorf("connect to mcprocd: %w (is the daemon running?)", err)
	}
	return c, nil
}

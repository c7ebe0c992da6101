package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	dashboard "github.com/CodeAndHammer/wordsprint/internal/dashboard"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

type DashboardOptions struct {
	*RootOptions
	Once     bool
	Interval time.Duration
}

func NewDashboardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DashboardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Poll live experiment results",
		Long: `Poll the collector for aggregate stats and chart payloads.

Results refresh every interval until interrupted. Use --once to fetch a
single round and exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "fetch one round and exit")
	cmd.Flags().DurationVar(&opts.Interval, "interval", util.GetEnvDuration("DASHBOARD_INTERVAL", constants.PollInterval), "refresh interval")
	return cmd
}

func runDashboard(ctx context.Context, opts *DashboardOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	renderer := &panelPrinter{w: out}
	poller := dashboard.NewPoller(opts.collector(), renderer, opts.Interval)

	if opts.Once {
		poller.Refresh(ctx)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller.Start(ctx)
	<-ctx.Done()
	poller.Stop()
	return nil
}

// panelPrinter writes each refreshed panel under a heading.
type panelPrinter struct {
	w io.Writer
}

func (p *panelPrinter) Render(panel dashboard.Panel, content string) {
	title := strings.ToUpper(strings.ReplaceAll(string(panel), "_", " "))
	fmt.Fprintf(p.w, "== %s (%s) ==\n%s\n", title, time.Now().Format(time.TimeOnly), strings.TrimRight(content, "\n"))
}

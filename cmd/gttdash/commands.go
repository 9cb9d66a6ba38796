package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"gttdash/internal/app"
	"gttdash/internal/report"
	"gttdash/pkg/gttdash"
)

// openApp loads the config and wires a local engine logging to stdout.
func openApp() (*app.App, func(), error) {
	cfg, err := app.LoadConfig(app.ConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Logging.Dir = ""
	log, _, err := app.NewLogger(cfg.Logging, "gttdash")
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a, func() { a.Close() }, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

// ---------------------------------------------------------------------------
// report
// ---------------------------------------------------------------------------

type reportCmd struct {
	server string
	style  string
	width  int
	raw    bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print the risk, health and rotation report" }
func (*reportCmd) Usage() string {
	return `gttdash report [-server <url>] [-style dark|light|notty] [-width n] [-raw]

  Prints the dashboard as a terminal report. With -server the data comes
  from a running gttdash-server, otherwise the engine runs in-process.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "", "gttdash-server base URL (empty runs locally)")
	f.StringVar(&c.style, "style", "dark", "glamour style")
	f.IntVar(&c.width, "width", 120, "word wrap width")
	f.BoolVar(&c.raw, "raw", false, "print markdown without rendering")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var (
		snap report.Snapshot
		err  error
	)
	if c.server != "" {
		snap, err = remoteSnapshot(ctx, gttdash.NewClient(c.server))
	} else {
		a, closeApp, openErr := openApp()
		if openErr != nil {
			return fail(openErr)
		}
		defer closeApp()
		snap, err = report.Collect(ctx, a.Engine, time.Now())
	}
	if err != nil {
		return fail(err)
	}

	md := report.Markdown(snap)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	out, err := report.Render(md, c.style, c.width)
	if err != nil {
		return fail(err)
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}

func remoteSnapshot(ctx context.Context, c *gttdash.Client) (report.Snapshot, error) {
	snap := report.Snapshot{Generated: time.Now()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Risk, err = c.RiskAnalytics(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Uncovered, err = c.HoldingsWithoutGTT(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Technical, err = c.TechnicalHealth(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Market, err = c.MarketHealth(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Rotation, err = c.SectorRotation(ctx)
		return err
	})
	return snap, g.Wait()
}

// ---------------------------------------------------------------------------
// sweep / prewarm
// ---------------------------------------------------------------------------

type sweepCmd struct{}

func (*sweepCmd) Name() string     { return "sweep" }
func (*sweepCmd) Synopsis() string { return "delete expired daily cache entries" }
func (*sweepCmd) Usage() string {
	return `gttdash sweep

  Deletes cached price series older than cache.retention_days.
`
}
func (*sweepCmd) SetFlags(*flag.FlagSet) {}

func (*sweepCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, closeApp, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer closeApp()
	removed, err := a.Engine.Sweep(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("removed %d expired cache entries\n", removed)
	return subcommands.ExitSuccess
}

type prewarmCmd struct{}

func (*prewarmCmd) Name() string     { return "prewarm" }
func (*prewarmCmd) Synopsis() string { return "fetch today's index series into the cache" }
func (*prewarmCmd) Usage() string {
	return `gttdash prewarm

  Fetches every index in the market universe that is not cached today.
`
}
func (*prewarmCmd) SetFlags(*flag.FlagSet) {}

func (*prewarmCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, closeApp, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer closeApp()
	if err := a.Engine.Prewarm(ctx); err != nil {
		return fail(err)
	}
	fmt.Println("index cache warm")
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the CLI version" }
func (*versionCmd) Usage() string          { return "gttdash version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Printf("gttdash %s\n", version)
	return subcommands.ExitSuccess
}

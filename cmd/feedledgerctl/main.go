package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	urfave "github.com/urfave/cli/v2"

	"github.com/yfarmers/feedledger/cmd/feedledgerctl/cli"
	"github.com/yfarmers/feedledger/internal/app"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		if exitErr, ok := err.(urfave.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *urfave.App {
	jsonFlag := &urfave.BoolFlag{Name: "json", Usage: "print JSON instead of a table"}
	dateFlag := &urfave.StringFlag{Name: "date", Usage: "day as DD-MM-YYYY (default today)"}
	return &urfave.App{
		Name:  "feedledgerctl",
		Usage: "operate the feed stock ledger",
		Commands: []*urfave.Command{
			{
				Name:  "closing",
				Usage: "show opening, movements and closing stock of a shop day",
				Flags: []urfave.Flag{
					&urfave.StringFlag{Name: "shop", Required: true},
					dateFlag,
					jsonFlag,
				},
				Action: withLedger(func(c *urfave.Context, l *cli.LedgerCLI) int {
					return l.ClosingCommand(c.Context, cli.ClosingOptions{
						Shop:          c.String("shop"),
						Date:          dateOrToday(c.String("date")),
						OutputOptions: cli.OutputOptions{JSONOutput: c.Bool("json")},
					})
				}),
			},
			{
				Name:  "mirrors",
				Usage: "check transfer mirrors of a day, optionally recreating missing ones",
				Flags: []urfave.Flag{
					dateFlag,
					&urfave.BoolFlag{Name: "apply", Usage: "recreate missing transfersIn entries"},
					jsonFlag,
				},
				Action: withLedger(func(c *urfave.Context, l *cli.LedgerCLI) int {
					return l.MirrorsCommand(c.Context, cli.MirrorOptions{
						Date:          dateOrToday(c.String("date")),
						Apply:         c.Bool("apply"),
						OutputOptions: cli.OutputOptions{JSONOutput: c.Bool("json")},
					})
				}),
			},
			{
				Name:  "net-value",
				Usage: "print stock value, debtors, creditors and the net position",
				Flags: []urfave.Flag{dateFlag, jsonFlag},
				Action: withLedger(func(c *urfave.Context, l *cli.LedgerCLI) int {
					return l.NetValueCommand(c.Context, cli.NetValueOptions{
						Date:          dateOrToday(c.String("date")),
						OutputOptions: cli.OutputOptions{JSONOutput: c.Bool("json")},
					})
				}),
			},
			{
				Name:  "jobs",
				Usage: "manage background jobs",
				Subcommands: []*urfave.Command{
					{
						Name:      "trigger",
						Usage:     "enqueue a job now",
						ArgsUsage: jobs.TaskMirrorRepair + "|" + jobs.TaskBalancesWarmup,
						Flags: []urfave.Flag{
							&urfave.StringFlag{Name: "date"},
							&urfave.IntFlag{Name: "days"},
							&urfave.BoolFlag{Name: "dry-run"},
						},
						Action: withJobs(func(c *urfave.Context, j *cli.JobsCLI) error {
							if c.NArg() != 1 {
								return urfave.Exit("jobs trigger: exactly one job name is required", 1)
							}
							info, err := j.Trigger(c.Context, c.Args().First(), cli.TriggerOptions{
								Date:   c.String("date"),
								Days:   c.Int("days"),
								DryRun: c.Bool("dry-run"),
							})
							if err != nil {
								return urfave.Exit(err.Error(), 1)
							}
							_, _ = fmt.Fprintf(c.App.Writer, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
							return nil
						}),
					},
					{
						Name:  "stats",
						Usage: "print queue counters and scheduled tasks",
						Action: withJobs(func(c *urfave.Context, j *cli.JobsCLI) error {
							stats, err := j.InspectQueues(c.Context)
							if err != nil {
								return urfave.Exit(err.Error(), 1)
							}
							enc := json.NewEncoder(c.App.Writer)
							enc.SetIndent("", "  ")
							if err := enc.Encode(stats); err != nil {
								return err
							}
							scheduled, err := j.ListScheduled(c.Context, 10)
							if err != nil {
								return urfave.Exit(err.Error(), 1)
							}
							for _, info := range scheduled {
								_, _ = fmt.Fprintf(c.App.Writer, "%s %s at %s\n", info.ID, info.Type, info.NextProcessAt.Format(time.RFC3339))
							}
							return nil
						}),
					},
				},
			},
		},
	}
}

func withLedger(run func(c *urfave.Context, l *cli.LedgerCLI) int) urfave.ActionFunc {
	return func(c *urfave.Context) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return urfave.Exit(fmt.Sprintf("load config: %v", err), 1)
		}
		logger := app.NewLogger(cfg)
		rt, err := app.Bootstrap(c.Context, cfg, logger.With(slog.String("cmd", c.Command.Name)))
		if err != nil {
			return urfave.Exit(fmt.Sprintf("bootstrap: %v", err), 1)
		}
		defer rt.Close()
		if code := run(c, cli.NewLedgerCLI(rt.Ledger, rt.Balances)); code != 0 {
			return urfave.Exit("", code)
		}
		return nil
	}
}

func withJobs(run func(c *urfave.Context, j *cli.JobsCLI) error) urfave.ActionFunc {
	return func(c *urfave.Context) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return urfave.Exit(fmt.Sprintf("load config: %v", err), 1)
		}
		j := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = j.Close() }()
		return run(c, j)
	}
}

func dateOrToday(raw string) string {
	if raw != "" {
		return raw
	}
	return ledger.DateOf(time.Now()).Key()
}

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

	"github.com/urfave/cli/v2"

	ctl "github.com/invoicedesk/invoicedesk/cmd/invoicedeskctl/cli"
	"github.com/invoicedesk/invoicedesk/internal/app"
	"github.com/invoicedesk/invoicedesk/internal/platform/cache"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "invoicedeskctl",
		Usage: "operate invoicedesk from the shell",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "print a computed invoice (exit 10 when overdue)",
				ArgsUsage: "<invoice-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "emit JSON"},
				},
				Action: show,
			},
			{
				Name:  "jobs",
				Usage: "inspect and trigger background jobs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "redis", Value: "127.0.0.1:6379", EnvVars: []string{"REDIS_ADDR"}},
				},
				Subcommands: []*cli.Command{
					{
						Name:      "trigger",
						Usage:     "enqueue overdue-sweep or catalog-refresh",
						ArgsUsage: "<job>",
						Flags: []cli.Flag{
							&cli.TimestampFlag{Name: "as-of", Layout: "2006-01-02", Usage: "sweep cutoff date"},
							&cli.BoolFlag{Name: "warm", Usage: "reload products after a catalog refresh"},
						},
						Action: trigger,
					},
					{
						Name:   "stats",
						Usage:  "print default queue counters as JSON",
						Action: stats,
					},
				},
			},
		},
	}
}

func show(c *cli.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return cli.Exit(fmt.Sprintf("load config: %v", err), 1)
	}
	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(c.Context, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() { _ = redisClient.Close() }()

	services, err := app.BuildServices(c.Context, cfg, logger, redisClient, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("build services: %v", err), 1)
	}
	defer services.Close()

	code := ctl.ShowCommand(c.Context, services.Invoices, ctl.ShowOptions{
		ID:         c.Args().First(),
		JSONOutput: c.Bool("json"),
		Stdout:     c.App.Writer,
		Stderr:     c.App.ErrWriter,
	})
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

func trigger(c *cli.Context) error {
	jobsCLI := ctl.NewJobsCLI(c.String("redis"))
	defer func() { _ = jobsCLI.Close() }()

	var asOf time.Time
	if ts := c.Timestamp("as-of"); ts != nil {
		asOf = ts.UTC()
	}
	info, err := jobsCLI.Trigger(c.Context, c.Args().First(), asOf, c.Bool("warm"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	_, _ = fmt.Fprintf(c.App.Writer, "enqueued %s (%s)\n", info.Type, info.ID)
	return nil
}

func stats(c *cli.Context) error {
	jobsCLI := ctl.NewJobsCLI(c.String("redis"))
	defer func() { _ = jobsCLI.Close() }()

	s, err := jobsCLI.InspectQueue(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return json.NewEncoder(c.App.Writer).Encode(s)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin"

	"github.com/rlggyp/grafana-exim/cmd/grafana-exim/commands"
	"github.com/rlggyp/grafana-exim/internal/output"
)

const version = "1.0.0"

func main() {
	app := kingpin.New("grafana-exim", "Migrate folders, dashboards and datasources between Grafana instances.")
	app.Version(version)

	var opts commands.Options
	var jsonOut bool
	app.Flag("config", "Path to the YAML config file (defaults to $CONFIG_FILE).").Short('c').StringVar(&opts.ConfigPath)
	app.Flag("workers", "Concurrent writes per entity class.").IntVar(&opts.Workers)
	app.Flag("timeout", "Per-request HTTP timeout.").DurationVar(&opts.Timeout)
	app.Flag("json", "Print the run summary as JSON.").BoolVar(&jsonOut)
	app.Flag("debug", "Enable debug logging.").BoolVar(&opts.Debug)

	exportCmd := app.Command("export", "Fetch and sanitize the source content tree into a snapshot directory.")
	exportCmd.Flag("dir", "Snapshot directory.").Default(".").StringVar(&opts.Dir)

	importCmd := app.Command("import", "Write a snapshot directory into the destination instance.")
	importCmd.Flag("dir", "Snapshot directory.").Default(".").StringVar(&opts.Dir)

	migrateCmd := app.Command("migrate", "Migrate directly from the source to the destination instance.")

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))
	if jsonOut {
		output.Format = "json"
	}

	// Interrupt stops dispatching new writes; in-flight requests finish and
	// the summary marks the rest as skipped.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case exportCmd.FullCommand():
		err = commands.Export(ctx, opts)
	case importCmd.FullCommand():
		err = commands.Import(ctx, opts)
	case migrateCmd.FullCommand():
		err = commands.Migrate(ctx, opts)
	}

	if err != nil {
		if !errors.Is(err, commands.ErrEntitiesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

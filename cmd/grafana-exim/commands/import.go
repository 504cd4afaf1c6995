package commands

import (
	"context"
	"os"
	"time"

	"github.com/rlggyp/grafana-exim/internal/client"
	"github.com/rlggyp/grafana-exim/internal/engine"
	"github.com/rlggyp/grafana-exim/internal/output"
	"github.com/rlggyp/grafana-exim/internal/snapshot"
)

// Import loads a snapshot directory and writes it into the destination
// instance.
func Import(ctx context.Context, opts Options) error {
	cfg, log, err := load(opts)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDst(); err != nil {
		return err
	}

	snap, err := snapshot.NewStore(opts.Dir).Load()
	if err != nil {
		return err
	}

	dst := client.New(cfg.Dst, time.Duration(cfg.Timeout))
	eng := engine.New(log, cfg.Workers)

	sum, runErr := eng.Import(ctx, dst, snap)
	if err := output.Summary(os.Stdout, sum); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if sum.Failed() {
		return ErrEntitiesFailed
	}
	return nil
}

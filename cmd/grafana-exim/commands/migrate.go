package commands

import (
	"context"
	"os"
	"time"

	"github.com/rlggyp/grafana-exim/internal/client"
	"github.com/rlggyp/grafana-exim/internal/engine"
	"github.com/rlggyp/grafana-exim/internal/output"
)

// Migrate runs the full pipeline from the source instance straight into the
// destination instance.
func Migrate(ctx context.Context, opts Options) error {
	cfg, log, err := load(opts)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSrc(); err != nil {
		return err
	}
	if err := cfg.ValidateDst(); err != nil {
		return err
	}

	src := client.New(cfg.Src, time.Duration(cfg.Timeout))
	dst := client.New(cfg.Dst, time.Duration(cfg.Timeout))
	eng := engine.New(log, cfg.Workers)

	sum, runErr := eng.Migrate(ctx, src, dst)
	if runErr != nil && sum == nil {
		return runErr
	}
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

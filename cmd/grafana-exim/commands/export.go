package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rlggyp/grafana-exim/internal/client"
	"github.com/rlggyp/grafana-exim/internal/engine"
	"github.com/rlggyp/grafana-exim/internal/snapshot"
)

// Export fetches the sanitized content tree from the source instance and
// writes it as a snapshot directory.
func Export(ctx context.Context, opts Options) error {
	cfg, log, err := load(opts)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSrc(); err != nil {
		return err
	}

	src := client.New(cfg.Src, time.Duration(cfg.Timeout))
	eng := engine.New(log, cfg.Workers)

	snap, err := eng.Export(ctx, src)
	if err != nil {
		return err
	}
	if err := snapshot.NewStore(opts.Dir).Save(snap); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "exported %d folders, %d dashboards, %d datasources to %s\n",
		len(snap.Folders), len(snap.Dashboards), len(snap.Datasources), opts.Dir)
	if len(snap.ClassErrors) > 0 || len(snap.Incomplete) > 0 {
		return ErrEntitiesFailed
	}
	return nil
}

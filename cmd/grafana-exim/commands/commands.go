// Package commands implements the export, import and migrate subcommands.
package commands

import (
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rlggyp/grafana-exim/internal/config"
)

// ErrEntitiesFailed signals that the run finished but at least one entity
// ended in the failed state. main turns it into a non-zero exit without
// printing a second error line; the summary already lists the failures.
var ErrEntitiesFailed = errors.New("one or more entities failed to migrate")

// Options carries the global CLI flags into a command.
type Options struct {
	ConfigPath string
	Dir        string
	Workers    int
	Timeout    time.Duration
	Debug      bool
}

func load(opts Options) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.Timeout > 0 {
		cfg.Timeout = config.Duration(opts.Timeout)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg, log, nil
}

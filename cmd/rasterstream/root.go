package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-rasterstream/raster"
)

// app carries the state built by the root command for its subcommands.
type app struct {
	cfg     *Config
	log     *logrus.Logger
	opts    []raster.Option
	bar     *progressBar
	metrics *http.Server
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "rasterstream",
		Short: "Block-streaming raster statistics, anomaly detection and destriping",
		Long: `rasterstream processes rasters larger than memory by reading fixed-size
blocks on a pool of producers and handing them to a pool of consumers
through a bounded queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	addEngineFlags(root.PersistentFlags())

	root.AddCommand(
		newStatsCmd(a),
		newRXCmd(a),
		newDestripeCmd(a),
	)
	return root
}

// execute runs root and then ends the progress bar and stops the metrics
// server, also when the command failed.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if serr := a.shutdown(); serr != nil {
		if a.log != nil {
			a.log.WithError(serr).Warn("stopping metrics server")
		}
		if err == nil {
			err = serr
		}
	}
	return err
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	log, err := cfg.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	opts, err := cfg.options()
	if err != nil {
		return err
	}
	opts = append(opts, raster.WithLogger(log))
	if cfg.Progress {
		a.bar = newProgressBar(cmd.ErrOrStderr())
		opts = append(opts, raster.WithProgress(a.bar.Update))
	}
	a.cfg, a.log, a.opts = cfg, log, opts

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}
	return nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("metrics server stopped")
		}
	}()
	a.log.WithField("addr", addr).Info("serving metrics")
}

func (a *app) shutdown() error {
	a.bar.Close()
	if a.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.metrics.Shutdown(ctx)
}

// with returns the engine options followed by extra.
func (a *app) with(extra ...raster.Option) []raster.Option {
	opts := make([]raster.Option, 0, len(a.opts)+len(extra))
	opts = append(opts, a.opts...)
	return append(opts, extra...)
}

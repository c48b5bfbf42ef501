package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/warehouse-etl/internal/logging"
	"github.com/withObsrvr/warehouse-etl/internal/pipeline"
	"github.com/withObsrvr/warehouse-etl/internal/schedule"
)

func newServeCmd(opts *Options) *cobra.Command {
	var cronSpec string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and serve metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cronSpec != "" {
				cfg.Schedule.Cron = cronSpec
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, cfg, needAll)
			if err != nil {
				return err
			}
			defer a.Close()

			log := logging.Component("serve")
			log.Info("starting warehouse-etl",
				"version", pipeline.Version,
				"git_sha", pipeline.GitSHA,
				"schedule", cfg.Schedule.Cron,
			)

			sched := schedule.New(log)
			err = sched.Add("pipeline", cfg.Schedule.Cron, func(ctx context.Context) error {
				ctx = runContext(ctx)
				res, err := a.pipeline.Run(ctx)
				if err != nil {
					return err
				}
				logging.StageLogger(ctx, "run").Info("scheduled run complete",
					"extract", res.Extract,
					"transform", res.Transform,
					"load", res.Load,
					"inserted", res.Report.Inserted(),
				)
				return nil
			})
			if err != nil {
				return err
			}

			if cfg.Metrics.Enabled {
				go func() {
					log.Info("metrics server listening", "address", cfg.Metrics.Address)
					if err := a.metrics.StartServer(ctx, cfg.Metrics.Address); err != nil {
						slog.Error("metrics server failed", "error", err)
						cancel()
					}
				}()
			}

			err = sched.Run(ctx)
			log.Info("shutdown complete")
			return err
		},
	}

	cmd.Flags().StringVar(&cronSpec, "schedule", "", `Cron spec overriding the configured schedule, e.g. "@every 15m"`)

	return cmd
}

// Package cli wires the ETL stages into cobra commands.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/warehouse-etl/internal/config"
	"github.com/withObsrvr/warehouse-etl/internal/logging"
	"github.com/withObsrvr/warehouse-etl/internal/pipeline"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigFile string
	LogFormat  string
	LogLevel   string

	cfg config.Config
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "warehouse-etl",
		Short: "Incremental ETL from the operational database into the sales warehouse",
		Long: `warehouse-etl extracts changed rows from the operational PostgreSQL database,
reshapes them into a star schema stored as Parquet, and loads them into the
warehouse. Each stage can run on its own or chained by "run" and "serve".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "Log format: json or text")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newExtractCmd(opts),
		newTransformCmd(opts),
		newLoadCmd(opts),
		newRunCmd(opts),
		newServeCmd(opts),
		newWatermarkCmd(opts),
		newWarehouseCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

func (o *Options) load() error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	slog.Debug("config loaded",
		"raw_backend", cfg.Raw.Backend,
		"processed_backend", cfg.Processed.Backend,
		"watermark_backend", cfg.Watermark.Backend,
	)
	o.cfg = cfg
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "warehouse-etl %s (%s)\n", pipeline.Version, pipeline.GitSHA)
		},
	}
}

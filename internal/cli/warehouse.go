package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/warehouse-etl/internal/database"
	"github.com/withObsrvr/warehouse-etl/internal/logging"
	"github.com/withObsrvr/warehouse-etl/internal/warehouse"
)

func newWarehouseCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Manage the warehouse database",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the warehouse tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Warehouse.DSN == "" {
				return fmt.Errorf("WAREHOUSE_DSN required")
			}
			pool, err := database.Open(cmd.Context(), opts.cfg.Warehouse.DSN)
			if err != nil {
				return fmt.Errorf("open warehouse database: %w", err)
			}
			defer pool.Close()

			w := warehouse.NewWriter(pool, logging.Component("warehouse"))
			if err := w.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "warehouse schema ready")
			return nil
		},
	}

	cmd.AddCommand(initCmd)
	return cmd
}

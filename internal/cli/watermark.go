package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

func newWatermarkCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Inspect or reset stage watermarks",
	}

	get := &cobra.Command{
		Use:   "get [name...]",
		Short: "Print watermark values; defaults to the extract and load watermarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openWatermarks(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			names := args
			if len(names) == 0 {
				names = []string{opts.cfg.Watermark.ExtractName, opts.cfg.Watermark.LoadName}
			}
			for _, name := range names {
				value, err := store.Get(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("get %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, value)
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <name> <value>",
		Short: `Overwrite a watermark; "None" makes the next run start from scratch`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value := args[0], args[1]
			if _, err := watermark.Parse(value, layoutFor(opts, name)); err != nil {
				return err
			}

			store, closeFn, err := openWatermarks(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.Put(cmd.Context(), name, value); err != nil {
				return fmt.Errorf("put %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, value)
			return nil
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

// layoutFor returns the stored format of the named watermark.
func layoutFor(opts *Options, name string) string {
	if name == opts.cfg.Watermark.LoadName {
		return watermark.LoadLayout
	}
	return watermark.ExtractLayout
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/warehouse-etl/internal/pipeline"
)

// errStage is returned when a stage reports a handled failure.
var errStage = errors.New("stage did not complete")

func stageResult(status string) error {
	if status == pipeline.StatusOK {
		return nil
	}
	return fmt.Errorf("%w: %s", errStage, status)
}

func newExtractCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Copy rows changed since the last run into the raw store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := runContext(cmd.Context())
			a, err := openApp(ctx, opts.cfg, needExtract)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.pushMetrics(ctx)

			status, keys, err := a.pipeline.Extract(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range keys {
				fmt.Fprintln(out, key)
			}
			fmt.Fprintln(out, status)
			return stageResult(status)
		},
	}
}

func newTransformCmd(opts *Options) *cobra.Command {
	var eventFile string

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Reshape the raw objects named by a storage event into warehouse tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readEvent(cmd, eventFile)
			if err != nil {
				return err
			}
			ev, err := pipeline.ParseEvent(data)
			if err != nil {
				return err
			}

			ctx := runContext(cmd.Context())
			a, err := openApp(ctx, opts.cfg, needTransform)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.pushMetrics(ctx)

			status, published, err := a.pipeline.Transform(ctx, ev)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, res := range published {
				fmt.Fprintf(out, "%s\t%d rows\t%s\n", res.Key, res.RowCount, res.Checksum)
			}
			fmt.Fprintln(out, status)
			return stageResult(status)
		},
	}

	cmd.Flags().StringVarP(&eventFile, "event", "e", "", `Storage event JSON file, or "-" for stdin`)
	cmd.MarkFlagRequired("event")

	return cmd
}

func readEvent(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read event from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event %s: %w", path, err)
	}
	return data, nil
}

func newLoadCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Insert processed files newer than the last load into the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := runContext(cmd.Context())
			a, err := openApp(ctx, opts.cfg, needLoad)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.pushMetrics(ctx)

			status, report, err := a.pipeline.Load(ctx)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return stageResult(status)
		},
	}
}

func printReport(w io.Writer, report pipeline.LoadReport) {
	for _, part := range report.Partitions {
		if part.Files == 0 && part.Err == nil {
			continue
		}
		line := fmt.Sprintf("%s\tfiles=%d rows=%d inserted=%d skipped=%d",
			part.Table, part.Files, part.Rows, part.Inserted, part.Skipped)
		if part.Err != nil {
			line += "\terror=" + part.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}

func newRunCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run extract, transform and load once, in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := runContext(cmd.Context())
			a, err := openApp(ctx, opts.cfg, needAll)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.pushMetrics(ctx)

			res, err := a.pipeline.Run(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "extract: %s\n", res.Extract)
			if res.Transform != "" {
				fmt.Fprintf(out, "transform: %s\n", res.Transform)
			}
			if res.Load != "" {
				printReport(out, res.Report)
				fmt.Fprintf(out, "load: %s\n", res.Load)
			}
			for _, status := range []string{res.Extract, res.Transform, res.Load} {
				if status != "" && status != pipeline.StatusOK {
					return stageResult(status)
				}
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/estimate"
	"zotregistry.dev/zarc/pkg/report"
)

func newEstimateCmd() *cobra.Command {
	throughput := estimate.DefaultThroughputMBps

	// "estimate"
	estimateCmd := &cobra.Command{
		Use:     "estimate <size>",
		Short:   "`estimate` prints how long moving a given amount of data takes",
		Long:    "`estimate` prints how long moving a given amount of data takes, size accepts units like 750GB or 2TiB",
		Example: "  zarc estimate 1.5TiB --throughput 10",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := humanize.ParseBytes(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q: %w", zerr.ErrBadConfig, args[0], err)
			}

			if throughput <= 0 {
				return fmt.Errorf("%w: %v", zerr.ErrInvalidThroughput, throughput)
			}

			cmd.SilenceUsage = true

			duration := estimate.Estimate(int64(size), throughput) //nolint:gosec

			fmt.Fprintf(cmd.OutOrStdout(), "Size:       %s (%s)\n", report.FormatSize(int64(size)), //nolint:gosec
				humanize.IBytes(size))
			fmt.Fprintf(cmd.OutOrStdout(), "Throughput: %s MB/s\n", humanize.FormatFloat("#,###.##", throughput))
			fmt.Fprintf(cmd.OutOrStdout(), "Duration:\n%s", report.FormatDuration(duration))

			return nil
		},
	}

	estimateCmd.Flags().Float64VarP(&throughput, "throughput", "t", estimate.DefaultThroughputMBps,
		"transfer throughput in MB/s")

	return estimateCmd
}

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/aggregate"
	"zotregistry.dev/zarc/pkg/config"
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/evaluator"
	"zotregistry.dev/zarc/pkg/extensions/monitoring"
	zlog "zotregistry.dev/zarc/pkg/log"
	"zotregistry.dev/zarc/pkg/report"
)

type evaluateFlags struct {
	format        string
	outputDir     string
	workers       int
	failOnPartial bool
	spinner       bool
}

func newEvaluateCmd(conf *config.Config) *cobra.Command {
	flags := evaluateFlags{spinner: true}

	// "evaluate"
	evaluateCmd := &cobra.Command{
		Use:     "evaluate [config]",
		Aliases: []string{"eval"},
		Short:   "`evaluate` finds images eligible for cold storage and estimates the transfer",
		Long:    "`evaluate` finds images eligible for cold storage and estimates the transfer",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := ""
			if len(args) > 0 {
				configPath = args[0]
			}

			if err := LoadConfiguration(conf, configPath); err != nil {
				return err
			}

			if cmd.Flags().Changed("format") {
				conf.Report.Format = strings.ToLower(flags.format)
			}

			if cmd.Flags().Changed("output-dir") {
				conf.Report.Directory = flags.outputDir
			}

			if cmd.Flags().Changed("workers") {
				conf.Workers = flags.workers
			}

			if err := conf.Validate(); err != nil {
				return err
			}

			// Do not show usage on errors which are not related to command line arguments
			cmd.SilenceUsage = true

			log := zlog.NewLogger(conf.Log.Level, conf.Log.Output)
			log.Info().Interface("params", conf.Sanitize()).Msg("configuration settings")

			spin := newSpinner(cmd.ErrOrStderr(), "Evaluating repositories ", flags.spinner)

			rep, err := Evaluate(cmd.Context(), conf, cmd.OutOrStdout(), spin, log)
			if err != nil {
				return err
			}

			if flags.failOnPartial && rep.Summary.Status == aggregate.StatusPartial {
				return fmt.Errorf("%w: %d of %d repositories", zerr.ErrPartialRun, rep.Summary.RepositoriesFailed,
					rep.Summary.RepositoriesAttempted)
			}

			return nil
		},
	}

	evaluateCmd.Flags().StringVarP(&flags.format, "format", "f", report.TextFormat, "report format: text, json or yaml")
	evaluateCmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", ".",
		"directory receiving the report file, empty for stdout only")
	evaluateCmd.Flags().IntVarP(&flags.workers, "workers", "w", 1, "repositories evaluated concurrently")
	evaluateCmd.Flags().BoolVar(&flags.failOnPartial, "fail-on-partial", false,
		"exit with an error when some repositories could not be evaluated")
	addSpinnerFlag(evaluateCmd, &flags.spinner)

	return evaluateCmd
}

// Evaluate runs the configured policy over the configured inventory and writes the report.
func Evaluate(ctx context.Context, conf *config.Config, stdout io.Writer, spin *spinnerState, log zlog.Logger,
) (report.Report, error) {
	start, end, err := conf.Window()
	if err != nil {
		return report.Report{}, err
	}

	variant, err := eligibility.ParseVariant(conf.Policy.Variant)
	if err != nil {
		return report.Report{}, err
	}

	policy, err := eligibility.NewPolicy(variant)
	if err != nil {
		return report.Report{}, err
	}

	now := time.Now().UTC()

	pctx, err := eligibility.NewContext(start, end, conf.Policy.CutoffDays, now)
	if err != nil {
		return report.Report{}, err
	}

	inventory, err := newInventory(ctx, conf, log)
	if err != nil {
		log.Error().Err(err).Str("driver", conf.Inventory.Driver).Msg("failed to open inventory")

		return report.Report{}, err
	}

	defer inventory.close() //nolint:errcheck

	metrics := monitoring.NewMetricsServer(conf.Metrics.Enable, log)
	eval := evaluator.NewEvaluator(policy, pctx, log.Component("evaluator"))
	runner := evaluator.NewRunner(inventory, eval, evaluator.Options{
		Workers: conf.Workers,
		Filter:  conf.Inventory.Repository,
	}, metrics, log.Component("evaluator"))

	spin.startSpinner()
	run, err := runner.Run(ctx)
	spin.stopSpinner()

	if err != nil {
		return report.Report{}, err
	}

	summary := aggregate.Aggregate(run, conf.Report.TopN, conf.Estimate.ThroughputMBps)
	metrics.SetTransferEstimate(summary.Estimate.Seconds)

	rep := report.New(run, summary, report.Metadata{
		Region: inventory.region,
		Source: inventory.driver,
		Scope:  conf.Inventory.Repository,
		Criteria: report.Criteria{
			Policy:     variant,
			StartDate:  conf.Policy.StartDate,
			EndDate:    conf.Policy.EndDate,
			CutoffDays: conf.Policy.CutoffDays,
		},
	}, now)

	writer := report.NewWriter(conf.Report.Format, conf.Report.Directory, stdout, log.Component("report"))

	if _, err := writer.Write(rep); err != nil {
		return report.Report{}, err
	}

	if err := metrics.WriteTextfile(conf.Metrics.Textfile); err != nil {
		log.Error().Err(err).Str("path", conf.Metrics.Textfile).Msg("failed to write metrics")

		return report.Report{}, err
	}

	log.Info().Str("runID", rep.RunID).Str("status", string(summary.Status)).
		Int("eligible", summary.ImagesEligible).Int64("eligibleBytes", summary.EligibleBytes).
		Float64("estimateSeconds", summary.Estimate.Seconds).Msg("evaluation complete")

	return rep, nil
}

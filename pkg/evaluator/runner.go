package evaluator

import (
	"context"
	"sort"
	"time"

	"github.com/gammazero/workerpool"

	"zotregistry.dev/zarc/pkg/extensions/monitoring"
	"zotregistry.dev/zarc/pkg/inventory/types"
	zlog "zotregistry.dev/zarc/pkg/log"
)

type Options struct {
	// Workers bounds the number of repositories evaluated concurrently.
	Workers int
	// Filter is either one repository name or a doublestar pattern, empty means all.
	Filter string
}

// Runner evaluates every repository of an inventory.
type Runner struct {
	inventory types.Inventory
	evaluator Evaluator
	opts      Options
	metrics   monitoring.MetricServer
	log       zlog.Logger
}

type outcome struct {
	result  *RepositoryResult
	failure *RepositoryFailure
}

func NewRunner(inventory types.Inventory, evaluator Evaluator, opts Options, metrics monitoring.MetricServer,
	log zlog.Logger,
) Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return Runner{
		inventory: inventory,
		evaluator: evaluator,
		opts:      opts,
		metrics:   metrics,
		log:       log,
	}
}

// Repositories lists the repositories selected by the filter, in inventory order.
func (r Runner) Repositories(ctx context.Context) ([]string, error) {
	return types.SelectRepositories(ctx, r.inventory, r.opts.Filter)
}

// Run lists the repositories and evaluates them on a bounded worker pool. Per repository
// failures are recorded and never abort the run, only listing errors and cancellation do.
func (r Runner) Run(ctx context.Context) (RunResult, error) {
	repos, err := r.Repositories(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("filter", r.opts.Filter).Msg("failed to list repositories")

		return RunResult{}, err
	}

	r.log.Info().Int("repositories", len(repos)).Int("workers", r.opts.Workers).
		Str("policy", string(r.evaluator.Policy().Variant())).Msg("starting evaluation")

	outcomes := make(chan outcome, len(repos))
	pool := workerpool.New(r.opts.Workers)

	for idx, repo := range repos {
		if ctx.Err() != nil {
			break
		}

		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}

			outcomes <- r.evaluate(ctx, idx, repo)
		})
	}

	go func() {
		pool.StopWait()
		close(outcomes)
	}()

	run := RunResult{
		Attempted:    len(repos),
		Repositories: make([]RepositoryResult, 0, len(repos)),
		Failures:     make([]RepositoryFailure, 0),
	}

	// single collector, workers only hand over immutable results
	for out := range outcomes {
		if out.failure != nil {
			run.Failures = append(run.Failures, *out.failure)
		}

		if out.result != nil {
			run.Repositories = append(run.Repositories, *out.result)
		}
	}

	if err := ctx.Err(); err != nil {
		r.log.Warn().Err(err).Msg("evaluation cancelled")

		return RunResult{}, err
	}

	sort.Slice(run.Repositories, func(i, j int) bool {
		return run.Repositories[i].Index < run.Repositories[j].Index
	})

	sort.Slice(run.Failures, func(i, j int) bool {
		return run.Failures[i].Index < run.Failures[j].Index
	})

	r.log.Info().Int("attempted", run.Attempted).Int("failed", len(run.Failures)).Msg("evaluation finished")

	return run, nil
}

func (r Runner) evaluate(ctx context.Context, idx int, repo string) outcome {
	start := time.Now()

	images, err := r.inventory.ListImages(ctx, repo)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error().Err(err).Str("repository", repo).Msg("failed to process repository")
			r.metrics.IncRepositoryFailure(repo)
		}

		return outcome{failure: &RepositoryFailure{
			Index:      idx,
			Repository: repo,
			Error:      err.Error(),
		}}
	}

	result := r.evaluator.EvaluateRepository(repo, images)
	result.Index = idx

	for _, img := range result.Images {
		r.metrics.IncDecision(string(result.Policy), string(img.Result.Reason))
	}

	r.metrics.ObserveRepository(repo, result.Summary.Scanned, result.Summary.Eligible,
		result.Summary.EligibleBytes, time.Since(start))

	r.log.Info().Str("repository", repo).Int("scanned", result.Summary.Scanned).
		Int("eligible", result.Summary.Eligible).Int64("eligibleBytes", result.Summary.EligibleBytes).
		Msg("evaluated repository")

	return outcome{result: &result}
}

package evaluator

import (
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/inventory/types"
	zlog "zotregistry.dev/zarc/pkg/log"
)

const (
	decisionMigrate = "migrate"
	decisionKeep    = "keep"
)

// Evaluator applies one policy to whole repositories.
type Evaluator struct {
	policy eligibility.Policy
	base   eligibility.Context
	log    zlog.Logger
}

func NewEvaluator(policy eligibility.Policy, base eligibility.Context, log zlog.Logger) Evaluator {
	return Evaluator{
		policy: policy,
		base:   base,
		log:    log,
	}
}

func (e Evaluator) Policy() eligibility.Policy {
	return e.policy
}

// EvaluateRepository classifies every image of a repository. Repository scoped policies first
// compute the most recent pull across all images, then classify in a second pass.
func (e Evaluator) EvaluateRepository(repository string, images []types.ImageRecord) RepositoryResult {
	pctx := e.base

	result := RepositoryResult{
		Summary: RepositorySummary{Repository: repository},
		Images:  make([]ImageResult, 0, len(images)),
		Policy:  e.policy.Variant(),
	}

	if e.policy.RepositoryScoped() {
		result.LastPull = eligibility.RepositoryLastPull(images)
		pctx = pctx.WithRepositoryLastPull(result.LastPull)
	}

	for _, img := range images {
		if img.Tag == "" {
			img.Tag = types.TagOrUntagged(img.Tags)
		}

		if img.Repository == "" {
			img.Repository = repository
		}

		classification := e.policy.Classify(img, pctx)

		result.Summary.Scanned++

		if classification.Eligible {
			result.Summary.Eligible++
			result.Summary.EligibleBytes += img.SizeBytes
		} else {
			result.Summary.Ineligible++
		}

		e.logDecision(repository, img, classification)

		result.Images = append(result.Images, ImageResult{Image: img, Result: classification})
	}

	return result
}

func (e Evaluator) logDecision(repository string, img types.ImageRecord, result eligibility.Result) {
	decision := decisionKeep
	if result.Eligible {
		decision = decisionMigrate
	}

	event := e.log.Debug().
		Str("policy", string(e.policy.Variant())).
		Str("repository", repository).
		Str("tag", img.Tag).
		Str("digest", img.Digest).
		Int64("size", img.SizeBytes).
		Time("pushTimestamp", img.PushedAt).
		Str("decision", decision).
		Str("reason", result.String())

	if img.LastPulledAt != nil {
		event = event.Time("lastPullTimestamp", *img.LastPulledAt)
	}

	event.Msg("applied policy")
}

package aggregate

import (
	"sort"
	"time"

	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/estimate"
	"zotregistry.dev/zarc/pkg/evaluator"
)

const DefaultTopN = 10

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
)

// Candidate is one eligible image, as listed in the largest migrations ranking.
type Candidate struct {
	Repository    string             `json:"repository"`
	Tag           string             `json:"tag"`
	Digest        string             `json:"digest,omitempty"`
	SizeBytes     int64              `json:"sizeBytes"`
	PushedAt      time.Time          `json:"pushedAt"`
	LastPulledAt  *time.Time         `json:"lastPulledAt,omitempty"`
	NeverPulled   bool               `json:"neverPulled"`
	ReferenceDate time.Time          `json:"referenceDate"`
	Reason        eligibility.Reason `json:"reason"`

	repoIndex  int
	imageIndex int
}

type GlobalReport struct {
	RepositoriesAttempted      int                           `json:"repositoriesAttempted"`
	RepositoriesFailed         int                           `json:"repositoriesFailed"`
	RepositoriesWithCandidates int                           `json:"repositoriesWithCandidates"`
	ImagesScanned              int                           `json:"imagesScanned"`
	ImagesEligible             int                           `json:"imagesEligible"`
	ImagesIneligible           int                           `json:"imagesIneligible"`
	PercentEligible            float64                       `json:"percentEligible"`
	EligibleBytes              int64                         `json:"eligibleBytes"`
	ThroughputMBps             float64                       `json:"throughputMBps"`
	Estimate                   estimate.Duration             `json:"estimate"`
	TopN                       []Candidate                   `json:"topN"`
	Failures                   []evaluator.RepositoryFailure `json:"failures"`
	Status                     Status                        `json:"status"`
}

// Aggregate folds a run into global totals. Totals do not depend on the order of
// run.Repositories, and the ranking breaks size ties by repository scan index then image
// position, so the result is the same for any completion order.
func Aggregate(run evaluator.RunResult, topN int, throughputMBps float64) GlobalReport {
	if topN <= 0 {
		topN = DefaultTopN
	}

	report := GlobalReport{
		RepositoriesAttempted: run.Attempted,
		RepositoriesFailed:    len(run.Failures),
		ThroughputMBps:        throughputMBps,
		TopN:                  []Candidate{},
		Failures:              append([]evaluator.RepositoryFailure{}, run.Failures...),
		Status:                StatusSuccess,
	}

	candidates := []Candidate{}

	for _, repo := range run.Repositories {
		report.ImagesScanned += repo.Summary.Scanned
		report.ImagesEligible += repo.Summary.Eligible
		report.ImagesIneligible += repo.Summary.Ineligible
		report.EligibleBytes += repo.Summary.EligibleBytes

		if repo.Summary.Eligible > 0 {
			report.RepositoriesWithCandidates++
		}

		for idx, img := range repo.Images {
			if !img.Result.Eligible {
				continue
			}

			candidates = append(candidates, Candidate{
				Repository:    img.Image.Repository,
				Tag:           img.Image.Tag,
				Digest:        img.Image.Digest,
				SizeBytes:     img.Image.SizeBytes,
				PushedAt:      img.Image.PushedAt,
				LastPulledAt:  img.Image.LastPulledAt,
				NeverPulled:   img.Image.NeverPulled(),
				ReferenceDate: img.Result.ReferenceDate,
				Reason:        img.Result.Reason,
				repoIndex:     repo.Index,
				imageIndex:    idx,
			})
		}
	}

	if report.ImagesScanned > 0 {
		report.PercentEligible = float64(report.ImagesEligible) / float64(report.ImagesScanned) * 100 //nolint:mnd
	}

	report.Estimate = estimate.Estimate(report.EligibleBytes, throughputMBps)
	report.TopN = Largest(candidates, topN)

	sort.SliceStable(report.Failures, func(i, j int) bool {
		return report.Failures[i].Index < report.Failures[j].Index
	})

	if len(report.Failures) > 0 {
		report.Status = StatusPartial
	}

	return report
}

// Largest returns the n biggest candidates, working on a copy.
func Largest(candidates []Candidate, n int) []Candidate {
	ranked := append([]Candidate{}, candidates...)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].SizeBytes != ranked[j].SizeBytes {
			return ranked[i].SizeBytes > ranked[j].SizeBytes
		}

		if ranked[i].repoIndex != ranked[j].repoIndex {
			return ranked[i].repoIndex < ranked[j].repoIndex
		}

		return ranked[i].imageIndex < ranked[j].imageIndex
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

// LastSeen is the last pull time, or the push time for images never pulled.
func (c Candidate) LastSeen() time.Time {
	if c.LastPulledAt != nil {
		return *c.LastPulledAt
	}

	return c.PushedAt
}

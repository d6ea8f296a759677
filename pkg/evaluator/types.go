package evaluator

import (
	"fmt"
	"time"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/inventory/types"
)

// ImageResult pairs an image with its classification.
type ImageResult struct {
	Image  types.ImageRecord  `json:"image"`
	Result eligibility.Result `json:"result"`
}

type RepositorySummary struct {
	Repository    string `json:"repository"`
	Scanned       int    `json:"scanned"`
	Eligible      int    `json:"eligible"`
	Ineligible    int    `json:"ineligible"`
	EligibleBytes int64  `json:"eligibleBytes"`
}

// RepositoryResult is the evaluation of one repository, images kept in inventory order.
type RepositoryResult struct {
	// Index is the position of the repository in the inventory listing.
	Index    int                 `json:"index"`
	Summary  RepositorySummary   `json:"summary"`
	Images   []ImageResult       `json:"images"`
	LastPull *time.Time          `json:"lastPull,omitempty"`
	Policy   eligibility.Variant `json:"policy"`
}

// RepositoryFailure records a repository which could not be evaluated.
type RepositoryFailure struct {
	Index      int    `json:"index"`
	Repository string `json:"repository"`
	Error      string `json:"error"`
}

func (f RepositoryFailure) Err() error {
	return fmt.Errorf("%w: %s: %s", zerr.ErrRepoEvaluation, f.Repository, f.Error)
}

// RunResult holds every repository outcome of one run, ordered by Index.
type RunResult struct {
	Attempted    int                 `json:"attempted"`
	Repositories []RepositoryResult  `json:"repositories"`
	Failures     []RepositoryFailure `json:"failures"`
}

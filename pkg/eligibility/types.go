package eligibility

import (
	"fmt"
	"time"

	zerr "zotregistry.dev/zarc/errors"
)

// Variant selects one of the eligibility policies.
type Variant string

const (
	// DateRangeVariant classifies by the effective reference date (last pull, else push).
	DateRangeVariant Variant = "dateRange"
	// RepositoryRecencyVariant classifies all images of a repository by its most recent pull.
	RepositoryRecencyVariant Variant = "repositoryRecency"
	// ImageRecencyVariant classifies every image by its own pull time.
	ImageRecencyVariant Variant = "imageRecency"
)

func Variants() []Variant {
	return []Variant{DateRangeVariant, RepositoryRecencyVariant, ImageRecencyVariant}
}

func ParseVariant(name string) (Variant, error) {
	for _, variant := range Variants() {
		if string(variant) == name {
			return variant, nil
		}
	}

	return "", fmt.Errorf("%w: %q", zerr.ErrUnknownPolicy, name)
}

// Reason explains a classification.
type Reason string

const (
	ReasonNeverPulled Reason = "NEVER_PULLED"
	ReasonStalePull   Reason = "STALE_PULL"
	ReasonRecentPull  Reason = "RECENT_PULL"
	ReasonOutOfRange  Reason = "OUT_OF_RANGE"
)

// Result is the outcome of classifying one image.
type Result struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason"`
	// DaysSincePull is set for STALE_PULL and RECENT_PULL.
	DaysSincePull int `json:"daysSincePull,omitempty"`
	// ReferenceDate is the instant which was tested against the date range.
	ReferenceDate time.Time `json:"referenceDate"`
}

func (r Result) String() string {
	switch r.Reason {
	case ReasonStalePull, ReasonRecentPull:
		return fmt.Sprintf("%s(%d)", r.Reason, r.DaysSincePull)
	default:
		return string(r.Reason)
	}
}

// Context carries everything a policy needs besides the image itself.
type Context struct {
	// Start and End are calendar dates at 00:00 UTC, both inclusive.
	Start time.Time
	End   time.Time
	// Cutoff is now minus the recency window, pulls strictly before it are stale.
	Cutoff time.Time
	Now    time.Time
	// RepositoryLastPull is the most recent pull across the repository, nil when none.
	RepositoryLastPull *time.Time
}

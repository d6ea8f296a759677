package eligibility

import (
	"time"

	"zotregistry.dev/zarc/pkg/inventory/types"
)

// Policy classifies one image as a migration candidate or not.
type Policy interface {
	Variant() Variant
	// RepositoryScoped policies need Context.RepositoryLastPull, which requires a first
	// pass over the whole repository before any image can be classified.
	RepositoryScoped() bool
	Classify(img types.ImageRecord, pctx Context) Result
}

func NewPolicy(variant Variant) (Policy, error) {
	switch variant {
	case DateRangeVariant:
		return DateRange{}, nil
	case RepositoryRecencyVariant:
		return RepositoryRecency{}, nil
	case ImageRecencyVariant:
		return ImageRecency{}, nil
	default:
		_, err := ParseVariant(string(variant))

		return nil, err
	}
}

// policies implementation

type DateRange struct{}

func (DateRange) Variant() Variant {
	return DateRangeVariant
}

func (DateRange) RepositoryScoped() bool {
	return false
}

func (DateRange) Classify(img types.ImageRecord, pctx Context) Result {
	reference := img.EffectiveReferenceDate().UTC()

	if img.SizeBytes < 0 || !pctx.InRange(reference) {
		return ineligible(ReasonOutOfRange, reference)
	}

	if img.NeverPulled() {
		return Result{Eligible: true, Reason: ReasonNeverPulled, ReferenceDate: reference}
	}

	return Result{
		Eligible:      true,
		Reason:        ReasonStalePull,
		DaysSincePull: pctx.DaysSince(*img.LastPulledAt),
		ReferenceDate: reference,
	}
}

type RepositoryRecency struct{}

func (RepositoryRecency) Variant() Variant {
	return RepositoryRecencyVariant
}

func (RepositoryRecency) RepositoryScoped() bool {
	return true
}

func (RepositoryRecency) Classify(img types.ImageRecord, pctx Context) Result {
	return classifyByPull(img, pctx.RepositoryLastPull, pctx)
}

type ImageRecency struct{}

func (ImageRecency) Variant() Variant {
	return ImageRecencyVariant
}

func (ImageRecency) RepositoryScoped() bool {
	return false
}

func (ImageRecency) Classify(img types.ImageRecord, pctx Context) Result {
	return classifyByPull(img, img.LastPulledAt, pctx)
}

// classifyByPull requires the push date to be in range, then a missing or stale pull.
func classifyByPull(img types.ImageRecord, lastPull *time.Time, pctx Context) Result {
	pushed := img.PushedAt.UTC()

	if img.SizeBytes < 0 || !pctx.InRange(pushed) {
		return ineligible(ReasonOutOfRange, pushed)
	}

	if lastPull == nil {
		return Result{Eligible: true, Reason: ReasonNeverPulled, ReferenceDate: pushed}
	}

	days := pctx.DaysSince(*lastPull)

	if pctx.IsStale(*lastPull) {
		return Result{Eligible: true, Reason: ReasonStalePull, DaysSincePull: days, ReferenceDate: pushed}
	}

	return Result{Eligible: false, Reason: ReasonRecentPull, DaysSincePull: days, ReferenceDate: pushed}
}

func ineligible(reason Reason, reference time.Time) Result {
	return Result{Eligible: false, Reason: reason, ReferenceDate: reference}
}

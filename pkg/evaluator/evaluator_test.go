package evaluator_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/evaluator"
	"zotregistry.dev/zarc/pkg/inventory/types"
	"zotregistry.dev/zarc/pkg/log"
)

const megabyte = 1024 * 1024

//nolint:gochecknoglobals
var now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func newEvaluator(t *testing.T, variant eligibility.Variant, start, end time.Time) evaluator.Evaluator {
	t.Helper()

	policy, err := eligibility.NewPolicy(variant)
	if err != nil {
		t.Fatal(err)
	}

	pctx, err := eligibility.NewContext(start, end, eligibility.DefaultCutoffDays, now)
	if err != nil {
		t.Fatal(err)
	}

	return evaluator.NewEvaluator(policy, pctx, log.NewNopLogger())
}

func appImages() []types.ImageRecord {
	return []types.ImageRecord{
		{
			Repository: "app", Tag: "v1", SizeBytes: 100 * megabyte,
			PushedAt: date(2024, time.January, 5),
		},
		{
			Repository: "app", Tag: "v2", SizeBytes: 50 * megabyte,
			PushedAt: date(2024, time.January, 10), LastPulledAt: ptr(date(2024, time.June, 1)),
		},
	}
}

func TestEvaluateRepository(t *testing.T) {
	Convey("Reference date selection regression", t, func() {
		eval := newEvaluator(t, eligibility.DateRangeVariant, date(2024, time.January, 1), date(2024, time.January, 31))

		result := eval.EvaluateRepository("app", appImages())

		So(result.Policy, ShouldEqual, eligibility.DateRangeVariant)
		So(result.Summary, ShouldResemble, evaluator.RepositorySummary{
			Repository:    "app",
			Scanned:       2,
			Eligible:      1,
			Ineligible:    1,
			EligibleBytes: 100 * megabyte,
		})

		So(result.Images, ShouldHaveLength, 2)
		So(result.Images[0].Image.Tag, ShouldEqual, "v1")
		So(result.Images[0].Result.Eligible, ShouldBeTrue)
		So(result.Images[0].Result.Reason, ShouldEqual, eligibility.ReasonNeverPulled)
		So(result.Images[1].Image.Tag, ShouldEqual, "v2")
		So(result.Images[1].Result.Eligible, ShouldBeFalse)
		So(result.Images[1].Result.Reason, ShouldEqual, eligibility.ReasonOutOfRange)
		So(result.LastPull, ShouldBeNil)
	})

	Convey("An empty repository is not an error", t, func() {
		for _, variant := range eligibility.Variants() {
			eval := newEvaluator(t, variant, date(2024, time.January, 1), date(2024, time.January, 31))

			result := eval.EvaluateRepository("empty", nil)

			So(result.Summary, ShouldResemble, evaluator.RepositorySummary{Repository: "empty"})
			So(result.Images, ShouldBeEmpty)
		}
	})

	Convey("Repository recency uses the most recent pull of the whole repository", t, func() {
		eval := newEvaluator(t, eligibility.RepositoryRecencyVariant, date(2024, time.January, 1), date(2024, time.December, 31))

		images := []types.ImageRecord{
			{Tag: "old", SizeBytes: 10, PushedAt: date(2024, time.January, 2), LastPulledAt: ptr(date(2024, time.January, 3))},
			{Tag: "never", SizeBytes: 20, PushedAt: date(2024, time.February, 2)},
		}

		Convey("a stale repository migrates every image in range", func() {
			result := eval.EvaluateRepository("stale", images)

			So(result.LastPull, ShouldNotBeNil)
			So(result.LastPull.Equal(date(2024, time.January, 3)), ShouldBeTrue)
			So(result.Summary.Eligible, ShouldEqual, 2)
			So(result.Summary.EligibleBytes, ShouldEqual, 30)

			for _, img := range result.Images {
				So(img.Result.Reason, ShouldEqual, eligibility.ReasonStalePull)
			}
		})

		Convey("one recent pull keeps every image, whatever its own pull time", func() {
			recent := append([]types.ImageRecord{}, images...)
			recent = append(recent, types.ImageRecord{
				Tag: "hot", SizeBytes: 5, PushedAt: date(2023, time.January, 2), LastPulledAt: ptr(now.Add(-time.Hour)),
			})

			result := eval.EvaluateRepository("hot", recent)

			So(result.Summary.Eligible, ShouldEqual, 0)
			So(result.Summary.Ineligible, ShouldEqual, 3)
			So(result.Images[0].Result.Reason, ShouldEqual, eligibility.ReasonRecentPull)
			So(result.Images[1].Result.Reason, ShouldEqual, eligibility.ReasonRecentPull)
			So(result.Images[2].Result.Reason, ShouldEqual, eligibility.ReasonOutOfRange)
		})

		Convey("a repository never pulled reports NEVER_PULLED", func() {
			result := eval.EvaluateRepository("cold", []types.ImageRecord{images[1]})

			So(result.LastPull, ShouldBeNil)
			So(result.Images[0].Result.Reason, ShouldEqual, eligibility.ReasonNeverPulled)
		})
	})

	Convey("Images are normalized and kept in input order", t, func() {
		eval := newEvaluator(t, eligibility.ImageRecencyVariant, date(2024, time.January, 1), date(2024, time.December, 31))

		images := []types.ImageRecord{
			{Tags: []string{"b", "c"}, SizeBytes: 1, PushedAt: date(2024, time.March, 1)},
			{SizeBytes: 2, PushedAt: date(2024, time.March, 1)},
			{Tag: "a", SizeBytes: 3, PushedAt: date(2024, time.March, 1)},
		}

		result := eval.EvaluateRepository("ordered", images)

		So(result.Images[0].Image.Tag, ShouldEqual, "b")
		So(result.Images[1].Image.Tag, ShouldEqual, types.UntaggedTag)
		So(result.Images[2].Image.Tag, ShouldEqual, "a")

		for _, img := range result.Images {
			So(img.Image.Repository, ShouldEqual, "ordered")
		}

		// the input slice is left untouched
		So(images[1].Tag, ShouldBeEmpty)
		So(images[1].Repository, ShouldBeEmpty)
	})

	Convey("Counts always add up", t, func() {
		for _, variant := range eligibility.Variants() {
			eval := newEvaluator(t, variant, date(2024, time.January, 1), date(2024, time.January, 31))

			result := eval.EvaluateRepository("app", appImages())

			So(result.Summary.Eligible+result.Summary.Ineligible, ShouldEqual, result.Summary.Scanned)
			So(result.Summary.Scanned, ShouldEqual, len(result.Images))
		}
	})
}

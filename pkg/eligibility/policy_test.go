package eligibility_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/inventory/types"
)

const megabyte = 1024 * 1024

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func mustContext(t *testing.T, start, end string, cutoffDays int, now time.Time) eligibility.Context {
	t.Helper()

	startDate, err := eligibility.ParseDate(start)
	if err != nil {
		t.Fatal(err)
	}

	endDate, err := eligibility.ParseDate(end)
	if err != nil {
		t.Fatal(err)
	}

	pctx, err := eligibility.NewContext(startDate, endDate, cutoffDays, now)
	if err != nil {
		t.Fatal(err)
	}

	return pctx
}

func TestDateRangePolicy(t *testing.T) {
	now := date(2025, time.March, 1)
	policy := eligibility.DateRange{}

	Convey("Reference date selection", t, func() {
		pctx := mustContext(t, "2024-01-01", "2024-01-31", eligibility.DefaultCutoffDays, now)

		v1 := types.ImageRecord{
			Repository: "app", Tag: "v1", SizeBytes: 100 * megabyte,
			PushedAt: date(2024, time.January, 5),
		}
		v2 := types.ImageRecord{
			Repository: "app", Tag: "v2", SizeBytes: 50 * megabyte,
			PushedAt: date(2024, time.January, 10), LastPulledAt: ptr(date(2024, time.June, 1)),
		}

		Convey("a never pulled image falls back to its push date", func() {
			result := policy.Classify(v1, pctx)

			So(result.Eligible, ShouldBeTrue)
			So(result.Reason, ShouldEqual, eligibility.ReasonNeverPulled)
			So(result.ReferenceDate, ShouldEqual, v1.PushedAt)
		})

		Convey("a pulled image is judged by its pull date even if pushed in range", func() {
			result := policy.Classify(v2, pctx)

			So(result.Eligible, ShouldBeFalse)
			So(result.Reason, ShouldEqual, eligibility.ReasonOutOfRange)
			So(result.ReferenceDate, ShouldEqual, *v2.LastPulledAt)
		})

		Convey("a pull inside the range is eligible with its age", func() {
			img := v2
			img.LastPulledAt = ptr(date(2024, time.January, 20))

			result := policy.Classify(img, pctx)

			So(result.Eligible, ShouldBeTrue)
			So(result.Reason, ShouldEqual, eligibility.ReasonStalePull)
			So(result.DaysSincePull, ShouldEqual, int(now.Sub(date(2024, time.January, 20)).Hours()/24))
			So(result.String(), ShouldStartWith, "STALE_PULL(")
		})
	})

	Convey("Range boundaries", t, func() {
		pctx := mustContext(t, "2024-01-01", "2024-01-31", eligibility.DefaultCutoffDays, now)

		Convey("push and pull on the start date is eligible", func() {
			start := date(2024, time.January, 1)
			img := types.ImageRecord{SizeBytes: 1, PushedAt: start, LastPulledAt: ptr(start)}

			So(policy.Classify(img, pctx).Eligible, ShouldBeTrue)
		})

		Convey("one day before the start date is not", func() {
			before := date(2023, time.December, 31)
			img := types.ImageRecord{SizeBytes: 1, PushedAt: before, LastPulledAt: ptr(before)}

			result := policy.Classify(img, pctx)
			So(result.Eligible, ShouldBeFalse)
			So(result.Reason, ShouldEqual, eligibility.ReasonOutOfRange)
		})

		Convey("the end date is inclusive until the end of the day", func() {
			lastSecond := time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC)
			nextDay := date(2024, time.February, 1)

			So(policy.Classify(types.ImageRecord{SizeBytes: 1, PushedAt: lastSecond}, pctx).Eligible, ShouldBeTrue)
			So(policy.Classify(types.ImageRecord{SizeBytes: 1, PushedAt: nextDay}, pctx).Eligible, ShouldBeFalse)
		})

		Convey("instants with a timezone are compared in UTC", func() {
			zone := time.FixedZone("UTC+5", 5*60*60)
			// 2024-01-31T22:00:00Z
			inRange := time.Date(2024, time.February, 1, 3, 0, 0, 0, zone)
			// 2023-12-31T23:00:00Z
			outOfRange := time.Date(2024, time.January, 1, 4, 0, 0, 0, zone)

			So(policy.Classify(types.ImageRecord{SizeBytes: 1, PushedAt: inRange}, pctx).Eligible, ShouldBeTrue)
			So(policy.Classify(types.ImageRecord{SizeBytes: 1, PushedAt: outOfRange}, pctx).Eligible, ShouldBeFalse)
		})
	})

	Convey("A negative size is never eligible", t, func() {
		pctx := mustContext(t, "2024-01-01", "2024-01-31", eligibility.DefaultCutoffDays, now)
		img := types.ImageRecord{SizeBytes: -1, PushedAt: date(2024, time.January, 5)}

		result := policy.Classify(img, pctx)
		So(result.Eligible, ShouldBeFalse)
		So(result.Reason, ShouldEqual, eligibility.ReasonOutOfRange)
	})
}

func TestRecencyBoundary(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	pushed := date(2024, time.January, 15)

	Convey("The recency cutoff uses a strict inequality", t, func() {
		pctx := mustContext(t, "2024-01-01", "2024-12-31", eligibility.DefaultCutoffDays, now)

		for _, testCase := range []struct {
			days     int
			eligible bool
			reason   eligibility.Reason
		}{
			{days: 364, eligible: false, reason: eligibility.ReasonRecentPull},
			{days: 365, eligible: false, reason: eligibility.ReasonRecentPull},
			{days: 366, eligible: true, reason: eligibility.ReasonStalePull},
		} {
			pull := now.Add(-time.Duration(testCase.days) * 24 * time.Hour)

			Convey("per image, pulled "+strconv.Itoa(testCase.days)+" days ago", func() {
				img := types.ImageRecord{SizeBytes: 1, PushedAt: pushed, LastPulledAt: ptr(pull)}

				result := eligibility.ImageRecency{}.Classify(img, pctx)
				So(result.Eligible, ShouldEqual, testCase.eligible)
				So(result.Reason, ShouldEqual, testCase.reason)
				So(result.DaysSincePull, ShouldEqual, testCase.days)
			})

			Convey("per repository, last pulled "+strconv.Itoa(testCase.days)+" days ago", func() {
				img := types.ImageRecord{SizeBytes: 1, PushedAt: pushed}

				result := eligibility.RepositoryRecency{}.Classify(img, pctx.WithRepositoryLastPull(ptr(pull)))
				So(result.Eligible, ShouldEqual, testCase.eligible)
				So(result.Reason, ShouldEqual, testCase.reason)
				So(result.DaysSincePull, ShouldEqual, testCase.days)
			})
		}
	})
}

func TestRecencyPolicies(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	Convey("Per image recency", t, func() {
		pctx := mustContext(t, "2024-01-01", "2024-01-31", eligibility.DefaultCutoffDays, now)
		policy := eligibility.ImageRecency{}

		So(policy.RepositoryScoped(), ShouldBeFalse)

		Convey("never pulled images pushed in range are eligible", func() {
			img := types.ImageRecord{SizeBytes: 10, PushedAt: date(2024, time.January, 3)}

			result := policy.Classify(img, pctx)
			So(result.Eligible, ShouldBeTrue)
			So(result.Reason, ShouldEqual, eligibility.ReasonNeverPulled)
			So(result.ReferenceDate, ShouldEqual, img.PushedAt)
		})

		Convey("images pushed out of range are not eligible even if stale", func() {
			img := types.ImageRecord{
				SizeBytes: 10, PushedAt: date(2023, time.May, 3), LastPulledAt: ptr(date(2023, time.June, 1)),
			}

			result := policy.Classify(img, pctx)
			So(result.Eligible, ShouldBeFalse)
			So(result.Reason, ShouldEqual, eligibility.ReasonOutOfRange)
		})

		Convey("a pull time before the push time is accepted as is", func() {
			img := types.ImageRecord{
				SizeBytes: 10, PushedAt: date(2024, time.January, 3), LastPulledAt: ptr(date(2023, time.January, 1)),
			}

			result := policy.Classify(img, pctx)
			So(result.Eligible, ShouldBeTrue)
			So(result.Reason, ShouldEqual, eligibility.ReasonStalePull)
			So(result.DaysSincePull, ShouldBeGreaterThan, 0)
		})

		Convey("a pull time in the future yields zero days, never negative", func() {
			img := types.ImageRecord{
				SizeBytes: 10, PushedAt: date(2024, time.January, 3), LastPulledAt: ptr(now.Add(48 * time.Hour)),
			}

			result := policy.Classify(img, pctx)
			So(result.Eligible, ShouldBeFalse)
			So(result.Reason, ShouldEqual, eligibility.ReasonRecentPull)
			So(result.DaysSincePull, ShouldEqual, 0)
		})
	})

	Convey("Repository recency", t, func() {
		pctx := mustContext(t, "2024-01-01", "2024-01-31", eligibility.DefaultCutoffDays, now)
		policy := eligibility.RepositoryRecency{}

		So(policy.RepositoryScoped(), ShouldBeTrue)

		Convey("ignores the image pull time in favour of the repository signal", func() {
			stale := ptr(date(2023, time.January, 1))
			recent := ptr(now.Add(-24 * time.Hour))

			img := types.ImageRecord{SizeBytes: 10, PushedAt: date(2024, time.January, 3), LastPulledAt: stale}

			result := policy.Classify(img, pctx.WithRepositoryLastPull(recent))
			So(result.Eligible, ShouldBeFalse)
			So(result.Reason, ShouldEqual, eligibility.ReasonRecentPull)
			So(result.DaysSincePull, ShouldEqual, 1)
		})

		Convey("a repository never pulled makes every image in range eligible", func() {
			img := types.ImageRecord{SizeBytes: 10, PushedAt: date(2024, time.January, 3)}

			result := policy.Classify(img, pctx)
			So(result.Eligible, ShouldBeTrue)
			So(result.Reason, ShouldEqual, eligibility.ReasonNeverPulled)
		})
	})
}

func TestReasonConsistency(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	Convey("Every classification is total and consistent", t, func() {
		pctx := mustContext(t, "2024-01-01", "2024-12-31", 90, now)

		images := []types.ImageRecord{
			{SizeBytes: 1, PushedAt: date(2024, time.March, 1)},
			{SizeBytes: 1, PushedAt: date(2024, time.March, 1), LastPulledAt: ptr(date(2024, time.April, 1))},
			{SizeBytes: 1, PushedAt: date(2024, time.March, 1), LastPulledAt: ptr(now.Add(-time.Hour))},
			{SizeBytes: 1, PushedAt: date(2022, time.March, 1)},
			{SizeBytes: -5, PushedAt: date(2024, time.March, 1)},
		}

		for _, variant := range eligibility.Variants() {
			policy, err := eligibility.NewPolicy(variant)
			So(err, ShouldBeNil)
			So(policy.Variant(), ShouldEqual, variant)

			repoCtx := pctx.WithRepositoryLastPull(eligibility.RepositoryLastPull(images))

			for _, img := range images {
				result := policy.Classify(img, repoCtx)

				switch result.Reason {
				case eligibility.ReasonNeverPulled, eligibility.ReasonStalePull:
					So(result.Eligible, ShouldBeTrue)
				case eligibility.ReasonRecentPull, eligibility.ReasonOutOfRange:
					So(result.Eligible, ShouldBeFalse)
				default:
					t.Fatalf("unexpected reason %q", result.Reason)
				}

				if result.Reason == eligibility.ReasonNeverPulled && variant != eligibility.RepositoryRecencyVariant {
					So(img.LastPulledAt, ShouldBeNil)
				}
			}
		}
	})
}

func TestContext(t *testing.T) {
	Convey("Dates", t, func() {
		parsed, err := eligibility.ParseDate("2024-02-29")
		So(err, ShouldBeNil)
		So(parsed, ShouldEqual, date(2024, time.February, 29))

		_, err = eligibility.ParseDate("29/02/2024")
		So(errors.Is(err, zerr.ErrInvalidDate), ShouldBeTrue)
	})

	Convey("An inverted range is rejected up front", t, func() {
		_, err := eligibility.NewContext(date(2024, time.February, 1), date(2024, time.January, 1), 365, time.Now())
		So(errors.Is(err, zerr.ErrInvalidDateRange), ShouldBeTrue)
		So(errors.Is(err, zerr.ErrBadConfig), ShouldBeTrue)
	})

	Convey("A single day range is valid", t, func() {
		pctx, err := eligibility.NewContext(date(2024, time.January, 1), date(2024, time.January, 1), 365, time.Now())
		So(err, ShouldBeNil)
		So(pctx.InRange(time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
	})

	Convey("A negative cutoff is rejected", t, func() {
		_, err := eligibility.NewContext(date(2024, time.January, 1), date(2024, time.January, 2), -1, time.Now())
		So(errors.Is(err, zerr.ErrBadConfig), ShouldBeTrue)
	})

	Convey("Repository last pull ignores images never pulled", t, func() {
		So(eligibility.RepositoryLastPull(nil), ShouldBeNil)
		So(eligibility.RepositoryLastPull([]types.ImageRecord{{}, {}}), ShouldBeNil)

		latest := date(2024, time.May, 1)
		images := []types.ImageRecord{
			{LastPulledAt: ptr(date(2024, time.January, 1))},
			{},
			{LastPulledAt: ptr(latest)},
		}

		So(*eligibility.RepositoryLastPull(images), ShouldEqual, latest)
	})

	Convey("Unknown variants are rejected", t, func() {
		_, err := eligibility.NewPolicy("sometimes")
		So(errors.Is(err, zerr.ErrUnknownPolicy), ShouldBeTrue)

		variant, err := eligibility.ParseVariant("imageRecency")
		So(err, ShouldBeNil)
		So(variant, ShouldEqual, eligibility.ImageRecencyVariant)
	})
}

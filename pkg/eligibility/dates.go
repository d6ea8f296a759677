package eligibility

import (
	"fmt"
	"time"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/inventory/types"
)

const (
	DateLayout = "2006-01-02"

	day = 24 * time.Hour

	DefaultCutoffDays = 365
)

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", zerr.ErrInvalidDate, value, err)
	}

	return date, nil
}

// NewContext validates the date range and computes the recency cutoff relative to now.
func NewContext(start, end time.Time, cutoffDays int, now time.Time) (Context, error) {
	start = truncateToDay(start)
	end = truncateToDay(end)

	if start.After(end) {
		return Context{}, fmt.Errorf("%w: %w: %s > %s", zerr.ErrBadConfig, zerr.ErrInvalidDateRange,
			start.Format(DateLayout), end.Format(DateLayout))
	}

	if cutoffDays < 0 {
		return Context{}, fmt.Errorf("%w: negative cutoff days %d", zerr.ErrBadConfig, cutoffDays)
	}

	now = now.UTC()

	return Context{
		Start:  start,
		End:    end,
		Cutoff: now.Add(-time.Duration(cutoffDays) * day),
		Now:    now,
	}, nil
}

// WithRepositoryLastPull returns a copy of the context carrying the repository level signal.
func (c Context) WithRepositoryLastPull(lastPull *time.Time) Context {
	c.RepositoryLastPull = lastPull

	return c
}

// InRange reports whether t falls on a day between Start and End, both inclusive.
func (c Context) InRange(t time.Time) bool {
	t = t.UTC()

	return !t.Before(c.Start) && t.Before(c.End.Add(day))
}

// IsStale reports whether a pull happened strictly before the cutoff.
func (c Context) IsStale(pull time.Time) bool {
	return pull.UTC().Before(c.Cutoff)
}

// DaysSince returns the whole days elapsed between t and Now, never negative.
func (c Context) DaysSince(t time.Time) int {
	elapsed := c.Now.Sub(t.UTC())
	if elapsed < 0 {
		return 0
	}

	return int(elapsed / day)
}

// RepositoryLastPull returns the most recent pull across images, ignoring images never pulled.
func RepositoryLastPull(images []types.ImageRecord) *time.Time {
	var latest *time.Time

	for idx := range images {
		pull := images[idx].LastPulledAt
		if pull == nil {
			continue
		}

		if latest == nil || pull.After(*latest) {
			value := pull.UTC()
			latest = &value
		}
	}

	return latest
}

func truncateToDay(t time.Time) time.Time {
	year, month, dayOfMonth := t.UTC().Date()

	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

package estimate

// DefaultThroughputMBps is the sustained copy rate observed for registry to object storage transfers.
const DefaultThroughputMBps = 1.33

const (
	mebibyte       = 1024 * 1024
	secondsPerMin  = 60
	minutesPerHour = 60
	hoursPerDay    = 24
)

// Duration is one transfer time expressed in several units, none of them rounded.
type Duration struct {
	Seconds float64 `json:"seconds"`
	Minutes float64 `json:"minutes"`
	Hours   float64 `json:"hours"`
	Days    float64 `json:"days"`
}

func (d Duration) IsZero() bool {
	return d.Seconds == 0
}

// SpansDays reports whether the estimate is long enough to be worth printing in days.
func (d Duration) SpansDays() bool {
	return d.Hours >= hoursPerDay
}

// Estimate converts a byte count into a transfer time at throughputMBps (MiB per second).
// Zero or negative sizes and a non positive throughput give a zero duration.
func Estimate(totalBytes int64, throughputMBps float64) Duration {
	if totalBytes <= 0 || throughputMBps <= 0 {
		return Duration{}
	}

	seconds := float64(totalBytes) / mebibyte / throughputMBps
	minutes := seconds / secondsPerMin
	hours := minutes / minutesPerHour

	return Duration{
		Seconds: seconds,
		Minutes: minutes,
		Hours:   hours,
		Days:    hours / hoursPerDay,
	}
}

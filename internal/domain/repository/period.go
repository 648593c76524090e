package repository

import "time"

// Period is a lookback in calendar days used when fetching history.
type Period int

const (
	Period6M Period = 182
	Period1Y Period = 365
	Period2Y Period = 730
	Period5Y Period = 1825
)

// IsValidPeriod reports whether p is within the supported range.
func IsValidPeriod(p Period) bool { return p >= 30 && p <= 7300 }

// DefaultPeriod is the lookback used by analyze and scan.
func DefaultPeriod() Period { return Period1Y }

// NormalizePeriod returns p when valid, otherwise the default.
func NormalizePeriod(days int) Period {
	p := Period(days)
	if IsValidPeriod(p) {
		return p
	}
	return DefaultPeriod()
}

// Range converts a period into a [from, to] window ending at now.
func (p Period) Range(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -int(p)), now
}

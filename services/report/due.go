package report

import (
	"time"

	"smallbiznis-reputation/services/business"
)

// NeverGenerated is the day count used when a business has no prior report.
const NeverGenerated = 999

// WindowDays is the look-back window a report of the given cadence covers.
func WindowDays(freq business.ReportFrequency) int {
	if freq == business.ReportMonthly {
		return 30
	}
	return 7
}

// IsDue reports whether a report of cadence freq is due at now, given the
// generation time of the last report of that cadence. Days are whole
// elapsed days.
func IsDue(freq business.ReportFrequency, last *time.Time, now time.Time) (bool, int) {
	days := NeverGenerated
	if last != nil {
		days = int(now.Sub(*last).Hours() / 24)
	}

	switch freq {
	case business.ReportWeekly:
		return days >= 7, days
	case business.ReportMonthly:
		return days >= 30, days
	default:
		return false, days
	}
}

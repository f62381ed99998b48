package ledger

import (
	"fmt"

	"github.com/mkendrick/loanledger/pkg/models"
)

// ParseFrequency validates a cadence string from the outside world.
func ParseFrequency(s string) (models.Frequency, error) {
	switch models.Frequency(s) {
	case models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyHalfYearly:
		return models.Frequency(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

// PeriodsPerYear returns how many compounding or payment periods the cadence
// produces in a year.
func PeriodsPerYear(f models.Frequency) (int, error) {
	switch f {
	case models.FrequencyMonthly:
		return 12, nil
	case models.FrequencyQuarterly:
		return 4, nil
	case models.FrequencyHalfYearly:
		return 2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
}

// monthsPerPeriod returns the calendar-month length of one period.
func monthsPerPeriod(f models.Frequency) (int, error) {
	switch f {
	case models.FrequencyMonthly:
		return 1, nil
	case models.FrequencyQuarterly:
		return 3, nil
	case models.FrequencyHalfYearly:
		return 6, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
}

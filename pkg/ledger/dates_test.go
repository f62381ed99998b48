package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceByPeriod_Regular(t *testing.T) {
	got := AdvanceByPeriod(date(2025, time.January, 15), 1)
	assert.Equal(t, date(2025, time.February, 15), got)

	got = AdvanceByPeriod(date(2025, time.January, 15), 3)
	assert.Equal(t, date(2025, time.April, 15), got)

	got = AdvanceByPeriod(date(2025, time.August, 15), 6)
	assert.Equal(t, date(2026, time.February, 15), got)
}

func TestAdvanceByPeriod_ClampsToMonthEnd(t *testing.T) {
	// Jan 31 + 1 month lands on the last day of February.
	got := AdvanceByPeriod(date(2025, time.January, 31), 1)
	assert.Equal(t, date(2025, time.February, 28), got)

	// Leap year.
	got = AdvanceByPeriod(date(2024, time.January, 31), 1)
	assert.Equal(t, date(2024, time.February, 29), got)

	got = AdvanceByPeriod(date(2025, time.March, 31), 1)
	assert.Equal(t, date(2025, time.April, 30), got)

	// Quarterly and half-yearly advances clamp the same way.
	got = AdvanceByPeriod(date(2025, time.January, 31), 3)
	assert.Equal(t, date(2025, time.April, 30), got)

	got = AdvanceByPeriod(date(2025, time.August, 31), 6)
	assert.Equal(t, date(2026, time.February, 28), got)
}

func TestAdvanceByPeriod_ClampDoesNotCatchUp(t *testing.T) {
	// Once clamped to Feb 28, further advances track the 28th.
	feb := AdvanceByPeriod(date(2025, time.January, 31), 1)
	got := AdvanceByPeriod(feb, 1)
	assert.Equal(t, date(2025, time.March, 28), got)
}

func TestWholeMonthsBetween(t *testing.T) {
	assert.Equal(t, 12, wholeMonthsBetween(date(2025, time.January, 1), date(2026, time.January, 1)))
	assert.Equal(t, 0, wholeMonthsBetween(date(2025, time.January, 15), date(2025, time.February, 14)))
	assert.Equal(t, 1, wholeMonthsBetween(date(2025, time.January, 15), date(2025, time.February, 15)))
	assert.Equal(t, 0, wholeMonthsBetween(date(2025, time.February, 1), date(2025, time.January, 1)))
}

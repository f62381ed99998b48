package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/mkendrick/loanledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ComputePayment derives the fixed periodic payment for a loan using the
// standard annuity formula. The nominal annual rate is first converted to an
// effective annual rate at the compounding cadence, then to a rate per payment
// period, so that compounding and payment cadences may differ.
//
// The power calculations use float64 (decimal has no fractional exponent);
// the result is converted back to decimal and rounded to 2 places, matching
// how money is rounded everywhere else at storage boundaries.
func ComputePayment(principal, annualRatePct decimal.Decimal, compounding, payment models.Frequency, numberOfPayments int) (decimal.Decimal, error) {
	if numberOfPayments < 1 {
		return decimal.Zero, fmt.Errorf("%w: number of payments must be at least 1", ErrInvalidTerms)
	}

	compoundsPerYear, err := PeriodsPerYear(compounding)
	if err != nil {
		return decimal.Zero, err
	}
	paymentsPerYear, err := PeriodsPerYear(payment)
	if err != nil {
		return decimal.Zero, err
	}

	// Zero-interest loans split the principal evenly; the annuity formula
	// would divide by zero.
	if annualRatePct.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(numberOfPayments))).Round(2), nil
	}

	ratePerCompound := annualRatePct.InexactFloat64() / 100 / float64(compoundsPerYear)
	effectiveAnnual := math.Pow(1+ratePerCompound, float64(compoundsPerYear)) - 1
	ratePerPayment := math.Pow(1+effectiveAnnual, 1/float64(paymentsPerYear)) - 1

	// A rate tiny enough to vanish in float64 would make the annuity
	// formula divide by zero; such loans degrade to the even split.
	if ratePerPayment == 0 {
		return principal.Div(decimal.NewFromInt(int64(numberOfPayments))).Round(2), nil
	}

	n := float64(numberOfPayments)
	factor := math.Pow(1+ratePerPayment, n)
	pay := principal.InexactFloat64() * ratePerPayment * factor / (factor - 1)

	return decimal.NewFromFloat(pay).Round(2), nil
}

// CountPayments derives how many scheduled payments fit between two dates at
// the given payment cadence. Partial months are floored and the result is
// never below 1.
func CountPayments(startDate, endDate time.Time, payment models.Frequency) (int, error) {
	months, err := monthsPerPeriod(payment)
	if err != nil {
		return 0, err
	}
	n := wholeMonthsBetween(startDate, endDate) / months
	if n < 1 {
		n = 1
	}
	return n, nil
}

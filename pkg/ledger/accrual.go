package ledger

import (
	"math"
	"time"

	"github.com/mkendrick/loanledger/pkg/models"
	"github.com/shopspring/decimal"
)

const daysInYear = 365.0

// AccruedInterest computes compound interest on a balance between two
// arbitrary dates. Elapsed time is measured in fractional compounding periods
// on an actual/365 basis, so accrual works for irregular gaps between
// payments, not just whole periods.
//
// Note this is deliberately a different model from ComputePayment: the
// schedule uses discrete per-period compounding while accrual compounds
// continuously over fractional periods. The two disagree slightly for the
// same span; keep them separate.
func AccruedInterest(balance, annualRatePct decimal.Decimal, from, to time.Time, compounding models.Frequency) (decimal.Decimal, error) {
	periodsPerYear, err := PeriodsPerYear(compounding)
	if err != nil {
		return decimal.Zero, err
	}
	if annualRatePct.IsZero() || !to.After(from) {
		return decimal.Zero, nil
	}

	ratePerPeriod := annualRatePct.InexactFloat64() / 100 / float64(periodsPerYear)
	days := to.Sub(from).Hours() / 24
	elapsedPeriods := days / (daysInYear / float64(periodsPerYear))

	interest := balance.InexactFloat64() * (math.Pow(1+ratePerPeriod, elapsedPeriods) - 1)
	return decimal.NewFromFloat(interest).Round(2), nil
}

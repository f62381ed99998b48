package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidTerms is returned for bad loan inputs: non-positive principal,
	// an end date not after the start date, or a rate outside 0-100.
	ErrInvalidTerms = errors.New("invalid loan terms")

	// ErrLoanClosed is returned when a payment, revision or payoff is
	// attempted on a loan that has already been closed.
	ErrLoanClosed = errors.New("loan is closed")

	// ErrInvalidFrequency indicates an unrecognized cadence string. Cadences
	// are validated at the boundary, so hitting this deeper in the engine is
	// a programming error rather than user input.
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// PaymentTooLargeError rejects a payment exceeding 110% of the balance due.
// Suggested carries the exact amount that would settle the loan.
type PaymentTooLargeError struct {
	Suggested decimal.Decimal
}

func (e *PaymentTooLargeError) Error() string {
	return fmt.Sprintf("payment exceeds balance due; suggested payment is %s", e.Suggested.StringFixed(2))
}

package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mkendrick/loanledger/pkg/models"
	"github.com/mkendrick/loanledger/pkg/store"
	"github.com/shopspring/decimal"
)

var (
	// Balances at or below this are considered fully repaid.
	closeThreshold = decimal.NewFromFloat(0.01)

	// Payments above 110% of the balance due are rejected as likely typos.
	overpaymentTolerance = decimal.NewFromFloat(1.1)
)

// Ledger handles the business logic for loans: creation, payment allocation,
// mid-term revision and payoff. All money figures are rounded to 2 decimal
// places only when written back to storage or returned to the caller;
// intermediate math carries full precision.
type Ledger struct {
	storage store.Storage
	now     func() time.Time // Injectable clock for tests
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{
		storage: s,
		now:     time.Now,
	}
}

// LoanTerms are the caller-supplied parameters for opening or revising a loan.
type LoanTerms struct {
	Principal            decimal.Decimal
	AnnualRate           decimal.Decimal // Percent, 0-100
	StartDate            time.Time
	EndDate              time.Time
	PaymentFrequency     models.Frequency
	CompoundingFrequency models.Frequency
	NumberOfPayments     int // Optional override; 0 means derive from the dates
	Notes                string
}

func validateTerms(terms LoanTerms) error {
	if terms.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidTerms)
	}
	if !terms.EndDate.After(terms.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidTerms)
	}
	if terms.AnnualRate.IsNegative() || terms.AnnualRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: annual rate must be between 0 and 100", ErrInvalidTerms)
	}
	if _, err := PeriodsPerYear(terms.PaymentFrequency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTerms, err)
	}
	if _, err := PeriodsPerYear(terms.CompoundingFrequency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTerms, err)
	}
	if terms.NumberOfPayments < 0 {
		return fmt.Errorf("%w: number of payments cannot be negative", ErrInvalidTerms)
	}
	return nil
}

// CreateLoan opens a new loan for an owner. The payment count is derived from
// the term dates unless explicitly supplied, and the fixed periodic payment is
// computed from the annuity formula.
func (l *Ledger) CreateLoan(ownerID string, terms LoanTerms) (*models.Loan, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	numberOfPayments := terms.NumberOfPayments
	if numberOfPayments == 0 {
		n, err := CountPayments(terms.StartDate, terms.EndDate, terms.PaymentFrequency)
		if err != nil {
			return nil, err
		}
		numberOfPayments = n
	}

	paymentAmount, err := ComputePayment(terms.Principal, terms.AnnualRate, terms.CompoundingFrequency, terms.PaymentFrequency, numberOfPayments)
	if err != nil {
		return nil, err
	}

	paymentMonths, err := monthsPerPeriod(terms.PaymentFrequency)
	if err != nil {
		return nil, err
	}
	nextDue := AdvanceByPeriod(terms.StartDate, paymentMonths)
	now := l.now()

	loan := &models.Loan{
		ID:                   uuid.New(),
		OwnerID:              ownerID,
		Principal:            terms.Principal.Round(2),
		AnnualRate:           terms.AnnualRate,
		StartDate:            terms.StartDate,
		EndDate:              terms.EndDate,
		PaymentFrequency:     terms.PaymentFrequency,
		CompoundingFrequency: terms.CompoundingFrequency,
		NumberOfPayments:     numberOfPayments,
		PaymentAmount:        paymentAmount,
		AmountPaid:           decimal.Zero,
		RemainingBalance:     terms.Principal.Round(2),
		LastPaymentDate:      terms.StartDate,
		NextDueDate:          &nextDue,
		Status:               models.LoanStatusActive,
		Notes:                terms.Notes,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	// Record disbursement
	disbursement := &models.Payment{
		ID:        uuid.New(),
		LoanID:    loan.ID,
		Amount:    loan.Principal,
		Interest:  decimal.Zero,
		Principal: loan.Principal,
		Type:      models.PaymentTypeDisbursement,
		Date:      terms.StartDate,
	}
	if err := l.storage.CreatePayment(disbursement); err != nil {
		return nil, fmt.Errorf("failed to store disbursement: %w", err)
	}

	return loan, nil
}

// PaymentOptions carries the optional inputs to ApplyPayment. A nil Amount
// defaults to the loan's fixed periodic payment; a nil Date defaults to now.
type PaymentOptions struct {
	Amount *decimal.Decimal
	Date   *time.Time
}

// PaymentDetails is the breakdown of a single recorded payment.
type PaymentDetails struct {
	Amount    decimal.Decimal `json:"amount"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
	Date      time.Time       `json:"date"`
}

// PaymentProgress reports where the loan stands after a payment. These values
// are computed on the fly, never stored.
type PaymentProgress struct {
	EstimatedTotal    decimal.Decimal `json:"estimated_total"` // Scheduled payments times payment amount
	AmountRemaining   decimal.Decimal `json:"amount_remaining"`
	PaymentsRemaining int             `json:"payments_remaining"`
}

// PaymentResult bundles the updated loan with its payment breakdown.
type PaymentResult struct {
	Loan     *models.Loan    `json:"loan"`
	Details  PaymentDetails  `json:"payment_details"`
	Progress PaymentProgress `json:"payment_progress"`
}

// ApplyPayment records a scheduled or manual payment against an active loan.
// Interest accrued since the last payment is paid first; the remainder reduces
// the principal balance. The full next state is computed before anything is
// written, so a rejected payment never mutates the loan.
func (l *Ledger) ApplyPayment(loanID uuid.UUID, ownerID string, opts PaymentOptions) (*PaymentResult, error) {
	loan, err := l.storage.GetLoan(loanID, ownerID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusActive {
		return nil, ErrLoanClosed
	}

	paymentDate := l.now()
	if opts.Date != nil {
		paymentDate = *opts.Date
	}
	if paymentDate.Before(loan.LastPaymentDate) {
		return nil, fmt.Errorf("%w: payment date precedes the last recorded payment", ErrInvalidTerms)
	}

	amount := loan.PaymentAmount
	if opts.Amount != nil {
		amount = *opts.Amount
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidTerms)
	}

	accrued, err := AccruedInterest(loan.RemainingBalance, loan.AnnualRate, loan.LastPaymentDate, paymentDate, loan.CompoundingFrequency)
	if err != nil {
		return nil, err
	}

	balanceDue := loan.RemainingBalance.Add(accrued)
	if amount.GreaterThan(balanceDue.Mul(overpaymentTolerance)) {
		return nil, &PaymentTooLargeError{Suggested: balanceDue.Round(2)}
	}

	interestPaid := decimal.Min(accrued, amount)
	principalPaid := amount.Sub(interestPaid)

	next := *loan
	next.AmountPaid = loan.AmountPaid.Add(amount).Round(2)
	next.RemainingBalance = decimal.Max(decimal.Zero, loan.RemainingBalance.Sub(principalPaid)).Round(2)
	next.LastPaymentDate = paymentDate
	next.UpdatedAt = l.now()

	if next.RemainingBalance.LessThanOrEqual(closeThreshold) {
		next.RemainingBalance = decimal.Zero
		next.Status = models.LoanStatusClosed
		next.NextDueDate = nil
	} else {
		paymentMonths, err := monthsPerPeriod(loan.PaymentFrequency)
		if err != nil {
			return nil, err
		}
		due := AdvanceByPeriod(paymentDate, paymentMonths)
		next.NextDueDate = &due
	}

	if err := l.storage.UpdateLoan(&next); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	record := &models.Payment{
		ID:        uuid.New(),
		LoanID:    loan.ID,
		Amount:    amount.Round(2),
		Interest:  interestPaid.Round(2),
		Principal: principalPaid.Round(2),
		Type:      models.PaymentTypeScheduled,
		Date:      paymentDate,
	}
	if err := l.storage.CreatePayment(record); err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	if next.Status == models.LoanStatusClosed {
		if err := l.storage.DeleteUnreadReminders(loan.ID); err != nil {
			return nil, fmt.Errorf("failed to clear reminders: %w", err)
		}
	}

	return &PaymentResult{
		Loan: &next,
		Details: PaymentDetails{
			Amount:    record.Amount,
			Interest:  record.Interest,
			Principal: record.Principal,
			Date:      paymentDate,
		},
		Progress: l.progress(&next),
	}, nil
}

func (l *Ledger) progress(loan *models.Loan) PaymentProgress {
	estimatedTotal := loan.PaymentAmount.Mul(decimal.NewFromInt(int64(loan.NumberOfPayments))).Round(2)

	// A closed loan owes nothing, even when an early settlement came in
	// under the scheduled total.
	remaining := decimal.Zero
	paymentsRemaining := 0
	if loan.Status == models.LoanStatusActive {
		remaining = decimal.Max(decimal.Zero, estimatedTotal.Sub(loan.AmountPaid)).Round(2)
		if loan.PaymentAmount.IsPositive() {
			paymentsRemaining = int(remaining.Div(loan.PaymentAmount).Ceil().IntPart())
		}
	}

	return PaymentProgress{
		EstimatedTotal:    estimatedTotal,
		AmountRemaining:   remaining,
		PaymentsRemaining: paymentsRemaining,
	}
}

// ReviseLoan replaces a loan's terms mid-flight. Repayment progress carries
// over proportionally: the fraction of the old principal already paid down is
// applied to the new principal, so a borrower 20% through the old loan stays
// 20% through the new one. Accrued interest up to now is settled into the
// carried-over fraction first.
func (l *Ledger) ReviseLoan(loanID uuid.UUID, ownerID string, terms LoanTerms) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(loanID, ownerID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusActive {
		return nil, ErrLoanClosed
	}
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	now := l.now()
	newBalance := loan.RemainingBalance
	if !loan.Principal.IsZero() && !terms.Principal.Equal(loan.Principal) {
		accrued, err := AccruedInterest(loan.RemainingBalance, loan.AnnualRate, loan.LastPaymentDate, now, loan.CompoundingFrequency)
		if err != nil {
			return nil, err
		}
		principalPaid := loan.Principal.Sub(loan.RemainingBalance.Sub(accrued))
		percentagePaid := principalPaid.Div(loan.Principal)
		newBalance = terms.Principal.Mul(decimal.NewFromInt(1).Sub(percentagePaid))
	}

	numberOfPayments := terms.NumberOfPayments
	if numberOfPayments == 0 {
		n, err := CountPayments(terms.StartDate, terms.EndDate, terms.PaymentFrequency)
		if err != nil {
			return nil, err
		}
		numberOfPayments = n
	}
	paymentAmount, err := ComputePayment(terms.Principal, terms.AnnualRate, terms.CompoundingFrequency, terms.PaymentFrequency, numberOfPayments)
	if err != nil {
		return nil, err
	}
	paymentMonths, err := monthsPerPeriod(terms.PaymentFrequency)
	if err != nil {
		return nil, err
	}

	next := *loan
	next.Principal = terms.Principal.Round(2)
	next.AnnualRate = terms.AnnualRate
	next.StartDate = terms.StartDate
	next.EndDate = terms.EndDate
	next.PaymentFrequency = terms.PaymentFrequency
	next.CompoundingFrequency = terms.CompoundingFrequency
	next.NumberOfPayments = numberOfPayments
	next.PaymentAmount = paymentAmount
	next.RemainingBalance = decimal.Max(decimal.Zero, newBalance).Round(2)
	next.AmountPaid = next.Principal.Sub(next.RemainingBalance).Round(2)
	next.LastPaymentDate = now
	next.UpdatedAt = now
	if terms.Notes != "" {
		next.Notes = terms.Notes
	}

	if next.RemainingBalance.LessThanOrEqual(closeThreshold) {
		next.RemainingBalance = decimal.Zero
		next.Status = models.LoanStatusClosed
		next.NextDueDate = nil
	} else {
		due := AdvanceByPeriod(now, paymentMonths)
		next.NextDueDate = &due
	}

	if err := l.storage.UpdateLoan(&next); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	if next.Status == models.LoanStatusClosed {
		if err := l.storage.DeleteUnreadReminders(loan.ID); err != nil {
			return nil, fmt.Errorf("failed to clear reminders: %w", err)
		}
	}

	return &next, nil
}

// PayoffDetails is the breakdown of an early full settlement.
type PayoffDetails struct {
	FinalPayment decimal.Decimal `json:"final_payment"`
	Interest     decimal.Decimal `json:"interest"`
	Savings      decimal.Decimal `json:"savings"` // Versus paying the full original compound schedule
	Date         time.Time       `json:"date"`
}

// PayoffResult bundles the closed loan with its payoff breakdown.
type PayoffResult struct {
	Loan    *models.Loan  `json:"loan"`
	Details PayoffDetails `json:"payoff_details"`
}

// Payoff settles the remaining balance plus interest accrued to now and closes
// the loan. The reported savings compare the total actually paid against the
// original principal compounded over the full term.
func (l *Ledger) Payoff(loanID uuid.UUID, ownerID string) (*PayoffResult, error) {
	loan, err := l.storage.GetLoan(loanID, ownerID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusActive {
		return nil, ErrLoanClosed
	}

	now := l.now()
	accrued, err := AccruedInterest(loan.RemainingBalance, loan.AnnualRate, loan.LastPaymentDate, now, loan.CompoundingFrequency)
	if err != nil {
		return nil, err
	}
	finalPayment := loan.RemainingBalance.Add(accrued).Round(2)

	next := *loan
	next.AmountPaid = loan.AmountPaid.Add(finalPayment).Round(2)
	next.RemainingBalance = decimal.Zero
	next.Status = models.LoanStatusClosed
	next.NextDueDate = nil
	next.LastPaymentDate = now
	next.UpdatedAt = now

	savings, err := l.payoffSavings(&next)
	if err != nil {
		return nil, err
	}

	if err := l.storage.UpdateLoan(&next); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	record := &models.Payment{
		ID:        uuid.New(),
		LoanID:    loan.ID,
		Amount:    finalPayment,
		Interest:  accrued.Round(2),
		Principal: loan.RemainingBalance.Round(2),
		Type:      models.PaymentTypePayoff,
		Date:      now,
	}
	if err := l.storage.CreatePayment(record); err != nil {
		return nil, fmt.Errorf("failed to store payoff payment: %w", err)
	}

	if err := l.storage.DeleteUnreadReminders(loan.ID); err != nil {
		return nil, fmt.Errorf("failed to clear reminders: %w", err)
	}

	return &PayoffResult{
		Loan: &next,
		Details: PayoffDetails{
			FinalPayment: finalPayment,
			Interest:     accrued.Round(2),
			Savings:      savings,
			Date:         now,
		},
	}, nil
}

// payoffSavings estimates what paying the full original compound schedule
// would have cost beyond what was actually paid.
func (l *Ledger) payoffSavings(loan *models.Loan) (decimal.Decimal, error) {
	if loan.AnnualRate.IsZero() {
		return decimal.Zero, nil
	}
	compoundsPerYear, err := PeriodsPerYear(loan.CompoundingFrequency)
	if err != nil {
		return decimal.Zero, err
	}
	totalPeriods, err := CountPayments(loan.StartDate, loan.EndDate, loan.CompoundingFrequency)
	if err != nil {
		return decimal.Zero, err
	}

	ratePerPeriod := decimal.NewFromInt(1).Add(loan.AnnualRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(compoundsPerYear))))
	fullCost := loan.Principal.Mul(ratePerPeriod.Pow(decimal.NewFromInt(int64(totalPeriods))))
	return fullCost.Sub(loan.AmountPaid).Round(2), nil
}

// DueLoans returns a snapshot of active loans whose next due date falls within
// the given window (or is already past). The caller must not assume the loans
// stay current; payments may land concurrently.
func (l *Ledger) DueLoans(within time.Duration) ([]*models.Loan, error) {
	loans, err := l.storage.GetAllActiveLoans()
	if err != nil {
		return nil, err
	}

	cutoff := l.now().Add(within)
	var due []*models.Loan
	for _, loan := range loans {
		if loan.NextDueDate != nil && !loan.NextDueDate.After(cutoff) {
			due = append(due, loan)
		}
	}
	return due, nil
}

// GetLoan retrieves a loan by its ID for an owner.
func (l *Ledger) GetLoan(id uuid.UUID, ownerID string) (*models.Loan, error) {
	return l.storage.GetLoan(id, ownerID)
}

// GetLoansByOwner retrieves all loans belonging to an owner.
func (l *Ledger) GetLoansByOwner(ownerID string) ([]*models.Loan, error) {
	return l.storage.GetLoansByOwner(ownerID)
}

// GetPayments retrieves the payment history for a loan, oldest first.
func (l *Ledger) GetPayments(loanID uuid.UUID, ownerID string) ([]*models.Payment, error) {
	if _, err := l.storage.GetLoan(loanID, ownerID); err != nil {
		return nil, err
	}
	return l.storage.GetPaymentsForLoan(loanID)
}

// DeleteLoan removes a loan along with its payments and reminders.
func (l *Ledger) DeleteLoan(id uuid.UUID, ownerID string) error {
	return l.storage.DeleteLoan(id, ownerID)
}

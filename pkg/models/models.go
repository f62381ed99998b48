package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is a repayment or compounding cadence. Only the three values below
// are valid; anything else is rejected by the ledger.
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyHalfYearly Frequency = "half-yearly"
)

const (
	LoanStatusActive = "active"
	LoanStatusClosed = "closed"
)

type Loan struct {
	ID                   uuid.UUID       `json:"id"`
	OwnerID              string          `json:"owner_id"` // Link to external user system
	Principal            decimal.Decimal `json:"principal"`
	AnnualRate           decimal.Decimal `json:"annual_rate"` // Nominal annual rate in percent (0-100)
	StartDate            time.Time       `json:"start_date"`
	EndDate              time.Time       `json:"end_date"`
	PaymentFrequency     Frequency       `json:"payment_frequency"`
	CompoundingFrequency Frequency       `json:"compounding_frequency"`
	NumberOfPayments     int             `json:"number_of_payments"`
	PaymentAmount        decimal.Decimal `json:"payment_amount"` // Fixed periodic payment, derived
	AmountPaid           decimal.Decimal `json:"amount_paid"`
	RemainingBalance     decimal.Decimal `json:"remaining_balance"`
	LastPaymentDate      time.Time       `json:"last_payment_date"`       // Start date until a payment is made
	NextDueDate          *time.Time      `json:"next_due_date,omitempty"` // Nil once the loan is closed
	Status               string          `json:"status"`                  // "active" or "closed"
	Notes                string          `json:"notes,omitempty"`
	Version              int             `json:"version"` // Optimistic concurrency token
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type PaymentType string

const (
	PaymentTypeDisbursement PaymentType = "disbursement"
	PaymentTypeScheduled    PaymentType = "payment"
	PaymentTypePayoff       PaymentType = "payoff"
)

// Payment is an immutable ledger entry for money moving against a loan.
type Payment struct {
	ID        uuid.UUID       `json:"id"`
	LoanID    uuid.UUID       `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Interest  decimal.Decimal `json:"interest"`  // Portion allocated to accrued interest
	Principal decimal.Decimal `json:"principal"` // Portion allocated to the balance
	Type      PaymentType     `json:"type"`
	Date      time.Time       `json:"date"`
}

// Notification is a due-date reminder surfaced to the loan owner. Unread
// reminders are cleared when the loan closes or is deleted.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	LoanID    uuid.UUID `json:"loan_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

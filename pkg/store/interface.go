package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mkendrick/loanledger/pkg/models"
)

var (
	// ErrNotFound is returned when a loan or notification does not exist for
	// the given id and owner.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by UpdateLoan when the loan was modified
	// since it was read. Callers should re-read and retry.
	ErrVersionConflict = errors.New("loan version conflict")
)

// Storage defines the interface for database operations related to loans,
// payments and reminder notifications.
type Storage interface {
	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID, ownerID string) (*models.Loan, error)
	// UpdateLoan writes the loan only if its Version matches the stored row
	// (compare-and-swap), then increments the version.
	UpdateLoan(loan *models.Loan) error
	DeleteLoan(id uuid.UUID, ownerID string) error
	GetLoansByOwner(ownerID string) ([]*models.Loan, error)
	GetAllActiveLoans() ([]*models.Loan, error)

	CreatePayment(payment *models.Payment) error
	GetPaymentsForLoan(loanID uuid.UUID) ([]*models.Payment, error)

	CreateNotification(n *models.Notification) error
	GetNotificationsForOwner(ownerID string) ([]*models.Notification, error)
	MarkNotificationRead(id uuid.UUID, ownerID string) error
	HasUnreadReminder(loanID uuid.UUID) (bool, error)
	DeleteUnreadReminders(loanID uuid.UUID) error

	Close() error
}

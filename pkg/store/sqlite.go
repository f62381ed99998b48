package store

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/mkendrick/loanledger/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		payment_frequency TEXT NOT NULL,
		compounding_frequency TEXT NOT NULL,
		number_of_payments INTEGER NOT NULL,
		payment_amount TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		remaining_balance TEXT NOT NULL,
		last_payment_date DATETIME NOT NULL,
		next_due_date DATETIME,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest TEXT NOT NULL DEFAULT '0',
		principal TEXT NOT NULL DEFAULT '0',
		type TEXT NOT NULL,
		date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		loan_id TEXT NOT NULL,
		message TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_loans_owner ON loans(owner_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_loan ON notifications(loan_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const loanColumns = `id, owner_id, principal, annual_rate, start_date, end_date,
	payment_frequency, compounding_frequency, number_of_payments, payment_amount,
	amount_paid, remaining_balance, last_payment_date, next_due_date, status, notes,
	version, created_at, updated_at`

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	var nextDue sql.NullTime
	if loan.NextDueDate != nil {
		nextDue = sql.NullTime{Time: *loan.NextDueDate, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.OwnerID, loan.Principal, loan.AnnualRate,
		loan.StartDate, loan.EndDate, string(loan.PaymentFrequency), string(loan.CompoundingFrequency),
		loan.NumberOfPayments, loan.PaymentAmount, loan.AmountPaid, loan.RemainingBalance,
		loan.LastPaymentDate, nextDue, loan.Status, loan.Notes,
		loan.Version, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func scanLoan(row interface{ Scan(...any) error }) (*models.Loan, error) {
	var loan models.Loan
	var idStr, paymentFreq, compoundingFreq string
	var nextDue sql.NullTime
	err := row.Scan(&idStr, &loan.OwnerID, &loan.Principal, &loan.AnnualRate,
		&loan.StartDate, &loan.EndDate, &paymentFreq, &compoundingFreq,
		&loan.NumberOfPayments, &loan.PaymentAmount, &loan.AmountPaid, &loan.RemainingBalance,
		&loan.LastPaymentDate, &nextDue, &loan.Status, &loan.Notes,
		&loan.Version, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	loan.PaymentFrequency = models.Frequency(paymentFreq)
	loan.CompoundingFrequency = models.Frequency(compoundingFreq)
	if nextDue.Valid {
		t := nextDue.Time
		loan.NextDueDate = &t
	}
	return &loan, nil
}

// GetLoan retrieves a loan by its ID, scoped to an owner.
func (s *SQLiteStore) GetLoan(id uuid.UUID, ownerID string) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ? AND owner_id = ?`,
		id.String(), ownerID)
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan writes the loan back only if the stored version still matches,
// then bumps both the row's version and loan.Version.
func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	var nextDue sql.NullTime
	if loan.NextDueDate != nil {
		nextDue = sql.NullTime{Time: *loan.NextDueDate, Valid: true}
	}
	result, err := s.db.Exec(
		`UPDATE loans SET principal = ?, annual_rate = ?, start_date = ?, end_date = ?,
			payment_frequency = ?, compounding_frequency = ?, number_of_payments = ?,
			payment_amount = ?, amount_paid = ?, remaining_balance = ?, last_payment_date = ?,
			next_due_date = ?, status = ?, notes = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		loan.Principal, loan.AnnualRate, loan.StartDate, loan.EndDate,
		string(loan.PaymentFrequency), string(loan.CompoundingFrequency), loan.NumberOfPayments,
		loan.PaymentAmount, loan.AmountPaid, loan.RemainingBalance, loan.LastPaymentDate,
		nextDue, loan.Status, loan.Notes, loan.UpdatedAt,
		loan.ID.String(), loan.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(1) FROM loans WHERE id = ?`, loan.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check loan existence: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("loan %s: %w", loan.ID, ErrNotFound)
		}
		return fmt.Errorf("loan %s: %w", loan.ID, ErrVersionConflict)
	}
	loan.Version++
	return nil
}

// DeleteLoan removes a loan with its payments and notifications within a
// transaction.
func (s *SQLiteStore) DeleteLoan(id uuid.UUID, ownerID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM notifications WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM payments WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loans WHERE id = ? AND owner_id = ?`, id.String(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("loan %s: %w", id, ErrNotFound)
	}

	return tx.Commit()
}

// GetLoansByOwner retrieves all loans for an owner.
func (s *SQLiteStore) GetLoansByOwner(ownerID string) ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE owner_id = ? ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for owner: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetAllActiveLoans retrieves all active loans across owners.
func (s *SQLiteStore) GetAllActiveLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreatePayment inserts a new payment record.
func (s *SQLiteStore) CreatePayment(payment *models.Payment) error {
	_, err := s.db.Exec(
		`INSERT INTO payments (id, loan_id, amount, interest, principal, type, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.LoanID.String(), payment.Amount, payment.Interest,
		payment.Principal, string(payment.Type), payment.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentsForLoan retrieves all payments for a given loan ID, oldest first.
func (s *SQLiteStore) GetPaymentsForLoan(loanID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.Query(`SELECT id, loan_id, amount, interest, principal, type, date
		FROM payments WHERE loan_id = ? ORDER BY date ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var payment models.Payment
		var idStr, loanIDStr, typeStr string
		if err := rows.Scan(&idStr, &loanIDStr, &payment.Amount, &payment.Interest,
			&payment.Principal, &typeStr, &payment.Date); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payment.ID = uuid.MustParse(idStr)
		payment.LoanID = uuid.MustParse(loanIDStr)
		payment.Type = models.PaymentType(typeStr)
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during payment rows iteration: %w", err)
	}
	return payments, nil
}

// CreateNotification inserts a reminder notification.
func (s *SQLiteStore) CreateNotification(n *models.Notification) error {
	_, err := s.db.Exec(
		`INSERT INTO notifications (id, owner_id, loan_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.OwnerID, n.LoanID.String(), n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetNotificationsForOwner retrieves an owner's notifications, newest first.
func (s *SQLiteStore) GetNotificationsForOwner(ownerID string) ([]*models.Notification, error) {
	rows, err := s.db.Query(`SELECT id, owner_id, loan_id, message, read, created_at
		FROM notifications WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var idStr, loanIDStr string
		if err := rows.Scan(&idStr, &n.OwnerID, &loanIDStr, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		n.ID = uuid.MustParse(idStr)
		n.LoanID = uuid.MustParse(loanIDStr)
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during notification rows iteration: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags a notification as read.
func (s *SQLiteStore) MarkNotificationRead(id uuid.UUID, ownerID string) error {
	result, err := s.db.Exec(`UPDATE notifications SET read = 1 WHERE id = ? AND owner_id = ?`,
		id.String(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// HasUnreadReminder reports whether the loan already has a pending reminder,
// so the due-date scan does not pile up duplicates.
func (s *SQLiteStore) HasUnreadReminder(loanID uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM notifications WHERE loan_id = ? AND read = 0`,
		loanID.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check reminders: %w", err)
	}
	return count > 0, nil
}

// DeleteUnreadReminders drops pending reminders for a loan. Called when the
// loan closes so stale due-date nags disappear.
func (s *SQLiteStore) DeleteUnreadReminders(loanID uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM notifications WHERE loan_id = ? AND read = 0`, loanID.String()); err != nil {
		return fmt.Errorf("failed to delete reminders: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

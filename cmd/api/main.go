package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mkendrick/loanledger/pkg/ledger"
	"github.com/mkendrick/loanledger/pkg/models"
	"github.com/mkendrick/loanledger/pkg/store"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Direct access for notifications and the reminder scan
}

func NewServer(s store.Storage) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
	}
}

// ownerID pulls the authenticated user from the request. Authentication
// itself happens upstream; we only require the header to be present.
func ownerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps ledger and store errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var tooLarge *ledger.PaymentTooLargeError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":             tooLarge.Error(),
			"suggested_payment": tooLarge.Suggested.StringFixed(2),
		})
	case errors.Is(err, ledger.ErrInvalidTerms), errors.Is(err, ledger.ErrInvalidFrequency):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrLoanClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Loan not found", http.StatusNotFound)
	case errors.Is(err, store.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type loanTermsRequest struct {
	Principal            decimal.Decimal `json:"principal"`
	AnnualRate           decimal.Decimal `json:"annual_rate"`
	StartDate            string          `json:"start_date"`
	EndDate              string          `json:"end_date"`
	PaymentFrequency     string          `json:"payment_frequency"`
	CompoundingFrequency string          `json:"compounding_frequency"`
	NumberOfPayments     int             `json:"number_of_payments,omitempty"`
	Notes                string          `json:"notes,omitempty"`
}

func (req loanTermsRequest) toTerms() (ledger.LoanTerms, error) {
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return ledger.LoanTerms{}, fmt.Errorf("%w: start date must be YYYY-MM-DD", ledger.ErrInvalidTerms)
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return ledger.LoanTerms{}, fmt.Errorf("%w: end date must be YYYY-MM-DD", ledger.ErrInvalidTerms)
	}
	paymentFreq, err := ledger.ParseFrequency(req.PaymentFrequency)
	if err != nil {
		return ledger.LoanTerms{}, fmt.Errorf("%w: %v", ledger.ErrInvalidTerms, err)
	}
	compoundingFreq, err := ledger.ParseFrequency(req.CompoundingFrequency)
	if err != nil {
		return ledger.LoanTerms{}, fmt.Errorf("%w: %v", ledger.ErrInvalidTerms, err)
	}
	return ledger.LoanTerms{
		Principal:            req.Principal,
		AnnualRate:           req.AnnualRate,
		StartDate:            startDate,
		EndDate:              endDate,
		PaymentFrequency:     paymentFreq,
		CompoundingFrequency: compoundingFreq,
		NumberOfPayments:     req.NumberOfPayments,
		Notes:                req.Notes,
	}, nil
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	var req loanTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	terms, err := req.toTerms()
	if err != nil {
		writeError(w, err)
		return
	}

	loan, err := s.ledger.CreateLoan(owner, terms)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.GetLoan(loanID, owner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	loans, err := s.ledger.GetLoansByOwner(owner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) reviseLoanHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req loanTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	terms, err := req.toTerms()
	if err != nil {
		writeError(w, err)
		return
	}

	loan, err := s.ledger.ReviseLoan(loanID, owner, terms)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	if err := s.ledger.DeleteLoan(loanID, owner); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount *decimal.Decimal `json:"amount,omitempty"`
		Date   *string          `json:"date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := ledger.PaymentOptions{Amount: req.Amount}
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			http.Error(w, "Payment date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		opts.Date = &date
	}

	result, err := s.ledger.ApplyPayment(loanID, owner, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) payoffHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	result, err := s.ledger.Payoff(loanID, owner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	payments, err := s.ledger.GetPayments(loanID, owner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	notifications, err := s.storage.GetNotificationsForOwner(owner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		http.Error(w, "Missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	notificationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}

	if err := s.storage.MarkNotificationRead(notificationID, owner); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// scanDueLoans creates a reminder notification for every active loan whose
// next due date is inside the window, skipping loans that already have a
// pending reminder. The loan list is a snapshot; a payment landing while the
// scan runs just means the reminder gets cleared on the next close.
func (s *Server) scanDueLoans(window time.Duration) {
	due, err := s.ledger.DueLoans(window)
	if err != nil {
		log.Printf("Error scanning due loans: %v", err)
		return
	}

	for _, loan := range due {
		pending, err := s.storage.HasUnreadReminder(loan.ID)
		if err != nil {
			log.Printf("Error checking reminders for loan %s: %v", loan.ID, err)
			continue
		}
		if pending {
			continue
		}

		n := &models.Notification{
			ID:      uuid.New(),
			OwnerID: loan.OwnerID,
			LoanID:  loan.ID,
			Message: fmt.Sprintf("Loan payment of %s due on %s",
				loan.PaymentAmount.StringFixed(2), loan.NextDueDate.Format(dateLayout)),
			Read:      false,
			CreatedAt: time.Now(),
		}
		if err := s.storage.CreateNotification(n); err != nil {
			log.Printf("Error creating reminder for loan %s: %v", loan.ID, err)
			continue
		}
		log.Printf("Created due reminder for loan %s", loan.ID)
	}
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.reviseLoanHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/payments", s.listPaymentsHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", s.applyPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/payoff", s.payoffHandler).Methods("POST")
	router.HandleFunc("/notifications", s.listNotificationsHandler).Methods("GET")
	router.HandleFunc("/notifications/{id}/read", s.markNotificationReadHandler).Methods("POST")

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
	}))

	return router
}

func main() {
	dbPath := os.Getenv("LOANLEDGER_DB")
	if dbPath == "" {
		dbPath = "loanledger.db"
	}

	// Initialize SQLite Store
	sqliteStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore)
	router := server.routes()

	// Background scan for loans with approaching or past due dates
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			log.Println("Running due-date reminder scan...")
			server.scanDueLoans(48 * time.Hour)
			log.Println("Due-date reminder scan complete.")
		}
	}()

	log.Println("Server starting on :8080")
	log.Fatal(http.ListenAndServe(":8080", router))
}

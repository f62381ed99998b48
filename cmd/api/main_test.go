package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mkendrick/loanledger/pkg/models"
	"github.com/mkendrick/loanledger/pkg/store"
)

func setupTestServer(t *testing.T) *Server {
	dbFile := "test_api_loans.db"
	os.Remove(dbFile)
	t.Cleanup(func() { os.Remove(dbFile) })

	s, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewServer(s)
}

func doRequest(router http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createTestLoan(t *testing.T, router http.Handler, owner string) models.Loan {
	rr := doRequest(router, "POST", "/loans", owner, map[string]any{
		"principal":             12000,
		"annual_rate":           12,
		"start_date":            "2025-01-01",
		"end_date":              "2026-01-01",
		"payment_frequency":     "monthly",
		"compounding_frequency": "monthly",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var loan models.Loan
	json.Unmarshal(rr.Body.Bytes(), &loan)
	return loan
}

func TestAPI_CreateAndGetLoan(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := createTestLoan(t, router, "user-1")

	if loan.PaymentAmount.StringFixed(2) != "1066.19" {
		t.Errorf("Expected payment amount 1066.19, got %s", loan.PaymentAmount.StringFixed(2))
	}
	if loan.NumberOfPayments != 12 {
		t.Errorf("Expected 12 payments, got %d", loan.NumberOfPayments)
	}

	rr := doRequest(router, "GET", "/loans/"+loan.ID.String(), "user-1", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	var fetched models.Loan
	json.Unmarshal(rr.Body.Bytes(), &fetched)
	if fetched.ID != loan.ID {
		t.Errorf("Expected ID %s, got %s", loan.ID, fetched.ID)
	}

	// Another user cannot read it.
	rr = doRequest(router, "GET", "/loans/"+loan.ID.String(), "user-2", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for wrong owner, got %d", rr.Code)
	}
}

func TestAPI_RequiresUserHeader(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	rr := doRequest(router, "GET", "/loans", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestAPI_CreateLoanValidation(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	rr := doRequest(router, "POST", "/loans", "user-1", map[string]any{
		"principal":             -100,
		"annual_rate":           12,
		"start_date":            "2025-01-01",
		"end_date":              "2026-01-01",
		"payment_frequency":     "monthly",
		"compounding_frequency": "monthly",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative principal, got %d", rr.Code)
	}

	rr = doRequest(router, "POST", "/loans", "user-1", map[string]any{
		"principal":             100,
		"annual_rate":           12,
		"start_date":            "2025-01-01",
		"end_date":              "2026-01-01",
		"payment_frequency":     "weekly",
		"compounding_frequency": "monthly",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad frequency, got %d", rr.Code)
	}
}

func TestAPI_ApplyPayment(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := createTestLoan(t, router, "user-1")

	rr := doRequest(router, "POST", "/loans/"+loan.ID.String()+"/payments", "user-1", map[string]any{
		"date": "2025-02-01",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var result struct {
		Loan    models.Loan `json:"loan"`
		Details struct {
			Interest  string `json:"interest"`
			Principal string `json:"principal"`
		} `json:"payment_details"`
	}
	json.Unmarshal(rr.Body.Bytes(), &result)

	if result.Loan.RemainingBalance.StringFixed(2) != "11056.12" {
		t.Errorf("Expected balance 11056.12, got %s", result.Loan.RemainingBalance.StringFixed(2))
	}
	if result.Loan.Status != models.LoanStatusActive {
		t.Errorf("Expected loan still active, got %s", result.Loan.Status)
	}
}

func TestAPI_PaymentTooLarge(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := createTestLoan(t, router, "user-1")

	rr := doRequest(router, "POST", "/loans/"+loan.ID.String()+"/payments", "user-1", map[string]any{
		"amount": 50000,
		"date":   "2025-02-01",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["suggested_payment"] == "" {
		t.Error("Expected a suggested payment in the response")
	}

	// Balance untouched.
	rr = doRequest(router, "GET", "/loans/"+loan.ID.String(), "user-1", nil)
	var fetched models.Loan
	json.Unmarshal(rr.Body.Bytes(), &fetched)
	if fetched.RemainingBalance.StringFixed(2) != "12000.00" {
		t.Errorf("Expected balance unchanged at 12000.00, got %s", fetched.RemainingBalance.StringFixed(2))
	}
}

func TestAPI_Payoff(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := createTestLoan(t, router, "user-1")

	rr := doRequest(router, "POST", "/loans/"+loan.ID.String()+"/payoff", "user-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var result struct {
		Loan models.Loan `json:"loan"`
	}
	json.Unmarshal(rr.Body.Bytes(), &result)
	if result.Loan.Status != models.LoanStatusClosed {
		t.Errorf("Expected status closed, got %s", result.Loan.Status)
	}
	if !result.Loan.RemainingBalance.IsZero() {
		t.Errorf("Expected balance 0, got %s", result.Loan.RemainingBalance)
	}

	// Second payoff is rejected.
	rr = doRequest(router, "POST", "/loans/"+loan.ID.String()+"/payoff", "user-1", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 on closed loan, got %d", rr.Code)
	}
}

func TestAPI_DeleteLoan(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := createTestLoan(t, router, "user-1")

	rr := doRequest(router, "DELETE", "/loans/"+loan.ID.String(), "user-1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}

	rr = doRequest(router, "GET", "/loans/"+loan.ID.String(), "user-1", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tindapos/backend/internal/domain"
	"tindapos/backend/internal/service"
	"tindapos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, 60)
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleCheckout_EndToEnd(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.CheckoutRequest{
		CartItems: []domain.CartItem{{SKU: "SKU-KAPE-01", Qty: 3}},
		CashCents: 10000,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if resp.Transaction.ReceiptNum == "" {
		t.Fatalf("expected receipt number on committed sale")
	}
	if resp.Transaction.TotalCents != 3600 {
		t.Fatalf("expected total 3600, got %d", resp.Transaction.TotalCents)
	}
	if resp.Transaction.ChangeCents != 6400 {
		t.Fatalf("expected change 6400, got %d", resp.Transaction.ChangeCents)
	}
	if resp.Duplicate {
		t.Fatalf("fresh checkout must not be flagged duplicate")
	}
}

func TestHandleCheckout_InsufficientStockConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.CheckoutRequest{
		CartItems: []domain.CartItem{{SKU: "SKU-KAPE-01", Qty: 100000}},
		CashCents: 1000000000,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleReceiptLookup(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.CheckoutRequest{
		CartItems: []domain.CartItem{{SKU: "SKU-KAPE-01", Qty: 1}},
		CashCents: 5000,
	})
	checkoutReq := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	checkoutReq.Header.Set("Content-Type", "application/json")
	checkoutReq.Header.Set("Authorization", "Bearer "+token)
	checkoutReq.Header.Set("X-CSRF-Token", csrf)
	checkoutRec := httptest.NewRecorder()
	handler.ServeHTTP(checkoutRec, checkoutReq)

	if checkoutRec.Code != http.StatusOK {
		t.Fatalf("checkout failed: %d %s", checkoutRec.Code, checkoutRec.Body.String())
	}
	var checkout domain.CheckoutResponse
	if err := json.NewDecoder(checkoutRec.Body).Decode(&checkout); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/receipts/"+checkout.Transaction.ReceiptNum, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	lookupMissing := httptest.NewRequest(http.MethodGet, "/api/v1/receipts/OR-NO-SUCH", nil)
	lookupMissing.Header.Set("Authorization", "Bearer "+token)
	missingRec := httptest.NewRecorder()
	handler.ServeHTTP(missingRec, lookupMissing)
	if missingRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown receipt, got %d", missingRec.Code)
	}
}

func TestHandleRefunds_RequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.RefundRequest{
		ReceiptNum: "OR-ANY",
		SKU:        "SKU-KAPE-01",
		Qty:        1,
		Reason:     "damaged",
		ManagerPIN: "000000",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong manager pin, got %d", rec.Code)
	}
}

func TestHandleDailyReport_CSV(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Fatalf("expected csv content type, got %q", got)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("section,key,value")) {
		t.Fatalf("expected csv header row, got %s", rec.Body.String())
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}

package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitializeSendsMinorUnitsAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.example/abc",
				"access_code":       "ac_123",
				"reference":         "ref-1",
			},
		})
	}))
	defer server.Close()

	client := mustClient(t, server.URL)

	result, err := client.Initialize(context.Background(), InitializeInput{
		AmountMinor: 100000,
		Currency:    "ngn",
		Email:       "buyer@example.com",
		Reference:   "ref-1",
		CallbackURL: "https://app.example/checkout/success",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if gotAuth != "Bearer sk_test_secret" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
	if gotBody["amount"] != float64(100000) {
		t.Fatalf("expected minor-unit amount 100000, got %v", gotBody["amount"])
	}
	if gotBody["currency"] != "NGN" {
		t.Fatalf("expected uppercased currency, got %v", gotBody["currency"])
	}
	if result.AuthorizationURL != "https://checkout.example/abc" {
		t.Fatalf("unexpected authorization url: %q", result.AuthorizationURL)
	}
	if result.Reference != "ref-1" {
		t.Fatalf("unexpected reference: %q", result.Reference)
	}
}

func TestInitializeNon2xxIsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Invalid key",
		})
	}))
	defer server.Close()

	client := mustClient(t, server.URL)

	_, err := client.Initialize(context.Background(), InitializeInput{
		AmountMinor: 500,
		Email:       "buyer@example.com",
		Reference:   "ref-2",
	})
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}

func TestVerifyReportsGatewayStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-3" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":    "success",
				"amount":    250000,
				"currency":  "NGN",
				"reference": "ref-3",
				"paid_at":   "2026-08-30T12:30:00Z",
			},
		})
	}))
	defer server.Close()

	client := mustClient(t, server.URL)

	result, err := client.Verify(context.Background(), "ref-3")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success status, got %q", result.Status)
	}
	if result.AmountMinor != 250000 {
		t.Fatalf("unexpected amount: %d", result.AmountMinor)
	}
	if result.PaidAt.IsZero() {
		t.Fatal("expected parsed paid_at")
	}
}

func TestVerifyFailedTransactionIsNotSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":    "abandoned",
				"amount":    1000,
				"currency":  "NGN",
				"reference": "ref-4",
			},
		})
	}))
	defer server.Close()

	client := mustClient(t, server.URL)

	result, err := client.Verify(context.Background(), "ref-4")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Success() {
		t.Fatal("abandoned transaction must not verify as success")
	}
}

func mustClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: baseURL, SecretKey: "sk_test_secret"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

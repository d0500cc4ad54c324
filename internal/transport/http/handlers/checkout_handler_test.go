package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/creatorhub/backend/internal/gateway/paystack"
	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	authsvc "github.com/creatorhub/backend/internal/services/auth"
	checkoutsvc "github.com/creatorhub/backend/internal/services/checkout"
	feesvc "github.com/creatorhub/backend/internal/services/fees"
	"github.com/creatorhub/backend/internal/validate"
)

type checkoutTemplatesStub struct {
	byID map[string]pgrepo.TemplateRecord
}

func (s checkoutTemplatesStub) FindByID(_ context.Context, id string) (pgrepo.TemplateRecord, error) {
	rec, ok := s.byID[id]
	if !ok {
		return pgrepo.TemplateRecord{}, pgrepo.ErrTemplateNotFound
	}
	return rec, nil
}

type checkoutPurchasesStub struct {
	pending int
}

func (s *checkoutPurchasesStub) CreatePending(_ context.Context, spec pgrepo.PurchaseSpec) (pgrepo.PurchaseRecord, error) {
	s.pending++
	return pgrepo.PurchaseRecord{
		ID:           "purchase-1",
		Reference:    spec.Reference,
		Status:       pgrepo.StatusPending,
		Amount:       spec.Amount,
		PlatformFee:  spec.PlatformFee,
		SellerAmount: spec.SellerAmount,
		Currency:     spec.Currency,
	}, nil
}

func (s *checkoutPurchasesStub) CreateCompletedWithToken(
	_ context.Context,
	spec pgrepo.PurchaseSpec,
	paidAt time.Time,
	tokenTTL time.Duration,
	_ []pgrepo.NotificationSpec,
) (pgrepo.PurchaseRecord, pgrepo.DownloadTokenRecord, error) {
	return pgrepo.PurchaseRecord{
			ID:        "purchase-free",
			Reference: spec.Reference,
			Status:    pgrepo.StatusCompleted,
			Currency:  spec.Currency,
		}, pgrepo.DownloadTokenRecord{
			Token:     "token-free",
			ExpiresAt: paidAt.Add(tokenTTL),
		}, nil
}

type checkoutGatewayStub struct{}

func (checkoutGatewayStub) Initialize(_ context.Context, in paystack.InitializeInput) (paystack.InitializeResult, error) {
	return paystack.InitializeResult{
		AuthorizationURL: "https://pay.example/session",
		Reference:        in.Reference,
	}, nil
}

func newCheckoutHandler(t *testing.T) (*CheckoutHandler, *checkoutPurchasesStub) {
	t.Helper()

	calc, err := feesvc.NewCalculator(1000)
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	purchases := &checkoutPurchasesStub{}
	svc := checkoutsvc.NewService(checkoutsvc.Dependencies{
		Templates: checkoutTemplatesStub{byID: map[string]pgrepo.TemplateRecord{
			"2f0c5f0e-4fb3-4aa7-9d2f-8f2f0a8f6f31": {
				ID:       "2f0c5f0e-4fb3-4aa7-9d2f-8f2f0a8f6f31",
				SellerID: "seller-1",
				Name:     "Landing Page Kit",
				Price:    5000,
				Currency: "NGN",
			},
		}},
		Purchases: purchases,
		Gateway:   checkoutGatewayStub{},
		Fees:      calc,
	}, checkoutsvc.Config{Currency: "NGN", MaxDownloads: 5, TokenTTL: 24 * time.Hour})

	return NewCheckoutHandler(svc, nil, nil, validate.New()), purchases
}

func checkoutRequest(t *testing.T, body map[string]any, identity *authsvc.Identity) *http.Request {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(raw))
	if identity != nil {
		req = req.WithContext(authsvc.WithIdentity(context.Background(), *identity))
	}
	return req
}

func TestCheckoutRejectsAnonymousRequests(t *testing.T) {
	h, purchases := newCheckoutHandler(t)

	rr := httptest.NewRecorder()
	h.Start(rr, checkoutRequest(t, map[string]any{
		"template_id": "2f0c5f0e-4fb3-4aa7-9d2f-8f2f0a8f6f31",
		"quantity":    1,
	}, nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
	if purchases.pending != 0 {
		t.Fatalf("an anonymous request must not create purchases")
	}
}

func TestCheckoutStartsHostedSession(t *testing.T) {
	h, _ := newCheckoutHandler(t)

	identity := authsvc.Identity{BuyerID: "buyer-1", Email: "buyer@example.com"}
	rr := httptest.NewRecorder()
	h.Start(rr, checkoutRequest(t, map[string]any{
		"template_id": "2f0c5f0e-4fb3-4aa7-9d2f-8f2f0a8f6f31",
		"quantity":    2,
	}, &identity))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var payload struct {
		CheckoutURL  string `json:"checkout_url"`
		Amount       int64  `json:"amount"`
		PlatformFee  int64  `json:"platform_fee"`
		SellerAmount int64  `json:"seller_amount"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.CheckoutURL != "https://pay.example/session" {
		t.Fatalf("unexpected checkout url %q", payload.CheckoutURL)
	}
	if payload.Amount != 10000 || payload.PlatformFee != 1000 || payload.SellerAmount != 9000 {
		t.Fatalf("unexpected split: %+v", payload)
	}
}

func TestCheckoutValidatesTemplateID(t *testing.T) {
	h, _ := newCheckoutHandler(t)

	identity := authsvc.Identity{BuyerID: "buyer-1", Email: "buyer@example.com"}
	rr := httptest.NewRecorder()
	h.Start(rr, checkoutRequest(t, map[string]any{
		"template_id": "not-a-uuid",
		"quantity":    1,
	}, &identity))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code %q", payload.Code)
	}
}

func TestCheckoutUnknownTemplateIs404(t *testing.T) {
	h, _ := newCheckoutHandler(t)

	identity := authsvc.Identity{BuyerID: "buyer-1", Email: "buyer@example.com"}
	rr := httptest.NewRecorder()
	h.Start(rr, checkoutRequest(t, map[string]any{
		"template_id": "7e9f2c44-0b55-4de0-8f1d-3a2a3c6c8a01",
		"quantity":    1,
	}, &identity))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

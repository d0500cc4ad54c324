package downloads

import (
	"context"
	"errors"
	"testing"
	"time"

	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	authsvc "github.com/creatorhub/backend/internal/services/auth"
)

// stubPurchases reproduces the quota and token semantics of the postgres
// repo in memory so the service can be exercised without a database.
type stubPurchases struct {
	purchase pgrepo.PurchaseRecord
	token    *pgrepo.DownloadTokenRecord
	redeems  int
}

func (s *stubPurchases) FindByIDForBuyer(_ context.Context, purchaseID, buyerID string) (pgrepo.PurchaseRecord, error) {
	if s.purchase.ID != purchaseID || s.purchase.BuyerID != buyerID {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return s.purchase, nil
}

func (s *stubPurchases) RedeemDownload(_ context.Context, purchaseID, buyerID, token string, now time.Time) (pgrepo.PurchaseRecord, error) {
	if s.purchase.ID != purchaseID || s.purchase.BuyerID != buyerID {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	if !s.purchase.Completed() {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotCompleted
	}
	if s.purchase.DownloadCount >= s.purchase.MaxDownloads {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrDownloadLimitReached
	}
	if token != "" {
		if s.token == nil || s.token.Token != token {
			return pgrepo.PurchaseRecord{}, pgrepo.ErrTokenNotFound
		}
		if now.After(s.token.ExpiresAt) {
			return pgrepo.PurchaseRecord{}, pgrepo.ErrTokenExpired
		}
		if s.token.Used {
			return pgrepo.PurchaseRecord{}, pgrepo.ErrTokenUsed
		}
		s.token.Used = true
	}
	s.purchase.DownloadCount++
	s.purchase.LastDownloadAt = &now
	s.redeems++
	return s.purchase, nil
}

type stubTemplates struct {
	template pgrepo.TemplateRecord
}

func (s *stubTemplates) FindByID(_ context.Context, id string) (pgrepo.TemplateRecord, error) {
	if s.template.ID != id {
		return pgrepo.TemplateRecord{}, pgrepo.ErrTemplateNotFound
	}
	return s.template, nil
}

type stubStorage struct {
	url      string
	err      error
	presigns int
}

func (s *stubStorage) PresignDownload(_ context.Context, key, filename string, ttl time.Duration) (string, error) {
	s.presigns++
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

func completedPurchase() pgrepo.PurchaseRecord {
	paidAt := time.Now().Add(-time.Hour)
	return pgrepo.PurchaseRecord{
		ID:           "purchase-1",
		Reference:    "ref-1",
		TemplateID:   "tpl-1",
		TemplateName: "Landing Page Kit",
		BuyerID:      "buyer-1",
		SellerID:     "seller-1",
		Status:       pgrepo.StatusCompleted,
		Amount:       10000,
		PlatformFee:  1000,
		SellerAmount: 9000,
		Currency:     "NGN",
		MaxDownloads: 5,
		PaidAt:       &paidAt,
	}
}

func fixtures() (*stubPurchases, *stubTemplates, *stubStorage) {
	purchases := &stubPurchases{
		purchase: completedPurchase(),
		token: &pgrepo.DownloadTokenRecord{
			Token:      "token-1",
			PurchaseID: "purchase-1",
			ExpiresAt:  time.Now().Add(24 * time.Hour),
		},
	}
	templates := &stubTemplates{template: pgrepo.TemplateRecord{
		ID:       "tpl-1",
		SellerID: "seller-1",
		Name:     "Landing Page Kit",
		Price:    10000,
		Currency: "NGN",
		FileKey:  "templates/tpl-1/archive.zip",
	}}
	storage := &stubStorage{url: "https://s3.example/signed"}
	return purchases, templates, storage
}

func buyer() authsvc.Identity {
	return authsvc.Identity{BuyerID: "buyer-1", Email: "buyer@example.com"}
}

func TestRedeemHappyPath(t *testing.T) {
	purchases, templates, store := fixtures()
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	res, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1", Token: "token-1"})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.DownloadURL != "https://s3.example/signed" {
		t.Fatalf("unexpected url %q", res.DownloadURL)
	}
	if res.DownloadCount != 1 || res.RemainingDownloads != 4 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	if !purchases.token.Used {
		t.Fatalf("token must be consumed on success")
	}
}

func TestRedeemTokenIsSingleUse(t *testing.T) {
	purchases, templates, store := fixtures()
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	if _, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1", Token: "token-1"}); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1", Token: "token-1"})
	if !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Fatalf("expected ErrTokenAlreadyUsed, got %v", err)
	}
	if purchases.purchase.DownloadCount != 1 {
		t.Fatalf("a rejected token must not consume quota, count=%d", purchases.purchase.DownloadCount)
	}
}

func TestRedeemExpiredToken(t *testing.T) {
	purchases, templates, store := fixtures()
	purchases.token.ExpiresAt = time.Now().Add(-time.Minute)
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	_, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1", Token: "token-1"})
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRedeemWithoutTokenUsesQuotaOnly(t *testing.T) {
	purchases, templates, store := fixtures()
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	res, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1"})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.DownloadCount != 1 {
		t.Fatalf("expected the quota slot to be consumed, got %+v", res)
	}
	if purchases.token.Used {
		t.Fatalf("a token-less redeem must not touch the token")
	}
}

func TestRedeemQuotaExhausted(t *testing.T) {
	purchases, templates, store := fixtures()
	purchases.purchase.DownloadCount = purchases.purchase.MaxDownloads
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	_, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1"})
	if !errors.Is(err, ErrDownloadLimitExceeded) {
		t.Fatalf("expected ErrDownloadLimitExceeded, got %v", err)
	}
	if store.presigns != 0 {
		t.Fatalf("an exhausted purchase must not presign anything")
	}
}

func TestRedeemPendingPurchase(t *testing.T) {
	purchases, templates, store := fixtures()
	purchases.purchase.Status = pgrepo.StatusPending
	purchases.purchase.PaidAt = nil
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	_, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1"})
	if !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}
}

func TestRedeemOtherBuyersPurchase(t *testing.T) {
	purchases, templates, store := fixtures()
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	other := authsvc.Identity{BuyerID: "buyer-2", Email: "other@example.com"}
	_, err := svc.Redeem(context.Background(), other, RedeemInput{PurchaseID: "purchase-1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("another buyer's purchase must report ErrNotFound, got %v", err)
	}
}

func TestRedeemStorageFailureConsumesNothing(t *testing.T) {
	purchases, templates, store := fixtures()
	store.err = errors.New("presign refused")
	svc := NewService(Dependencies{Purchases: purchases, Templates: templates, Storage: store}, 2*time.Hour)

	_, err := svc.Redeem(context.Background(), buyer(), RedeemInput{PurchaseID: "purchase-1", Token: "token-1"})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if purchases.redeems != 0 || purchases.token.Used {
		t.Fatalf("a failed presign must leave quota and token untouched")
	}
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creatorhub/backend/internal/gateway/paystack"
	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	authsvc "github.com/creatorhub/backend/internal/services/auth"
	cartsvc "github.com/creatorhub/backend/internal/services/cart"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("purchase not found")
	ErrVerificationFailed     = errors.New("payment verification failed")
	ErrGateway                = errors.New("payment gateway unavailable")
)

type PurchaseStore interface {
	FindByReferenceForBuyer(ctx context.Context, reference, buyerID string) (pgrepo.PurchaseRecord, error)
	CompleteWithToken(
		ctx context.Context,
		purchaseID string,
		paidAt time.Time,
		tokenTTL time.Duration,
		notes []pgrepo.NotificationSpec,
	) (pgrepo.PurchaseRecord, pgrepo.DownloadTokenRecord, bool, error)
}

type PaymentGateway interface {
	Verify(ctx context.Context, reference string) (paystack.VerifyResult, error)
}

type CartStore interface {
	Remove(ctx context.Context, buyerID, itemID string) ([]cartsvc.Item, error)
}

// Service settles pending purchases against the gateway's view of a
// transaction. Verify is safe to call any number of times for the same
// reference; only the first successful call transitions the purchase.
type Service struct {
	purchases PurchaseStore
	gateway   PaymentGateway
	carts     CartStore
	tokenTTL  time.Duration
	now       func() time.Time
}

type Dependencies struct {
	Purchases PurchaseStore
	Gateway   PaymentGateway
	Carts     CartStore
}

type Result struct {
	PurchaseID         string
	Reference          string
	Status             string
	TemplateID         string
	TemplateName       string
	Amount             int64
	Currency           string
	DownloadToken      string
	TokenExpiresAt     time.Time
	RemainingDownloads int
	AlreadyCompleted   bool
}

func NewService(deps Dependencies, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		purchases: deps.Purchases,
		gateway:   deps.Gateway,
		carts:     deps.Carts,
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// Verify confirms a purchase reference with the gateway and completes the
// purchase. The lookup is scoped to the calling buyer, so a reference owned
// by someone else reports ErrNotFound rather than leaking its existence.
func (s *Service) Verify(ctx context.Context, buyer authsvc.Identity, reference string) (Result, error) {
	if !buyer.Valid() {
		return Result{}, ErrAuthenticationRequired
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Result{}, fmt.Errorf("%w: reference is required", ErrValidation)
	}
	if s.purchases == nil || s.gateway == nil {
		return Result{}, fmt.Errorf("reconcile dependencies are not configured")
	}

	purchase, err := s.purchases.FindByReferenceForBuyer(ctx, reference, buyer.BuyerID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return Result{}, ErrNotFound
		}
		return Result{}, fmt.Errorf("load purchase: %w", err)
	}

	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if !verification.Success() {
		return Result{}, fmt.Errorf("%w: gateway status %q", ErrVerificationFailed, verification.Status)
	}
	if verification.AmountMinor != purchase.Amount {
		return Result{}, fmt.Errorf("%w: gateway amount %d does not match purchase amount %d",
			ErrVerificationFailed, verification.AmountMinor, purchase.Amount)
	}

	paidAt := verification.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now().UTC()
	}

	notes := []pgrepo.NotificationSpec{
		{
			UserID: purchase.BuyerID,
			Kind:   "purchase_completed",
			Title:  "Download ready",
			Body:   fmt.Sprintf("%s is ready to download.", purchase.TemplateName),
			Metadata: map[string]any{
				"purchase_id": purchase.ID,
				"template_id": purchase.TemplateID,
				"amount":      purchase.Amount,
			},
		},
		{
			UserID: purchase.SellerID,
			Kind:   "template_sold",
			Title:  "You made a sale",
			Body:   fmt.Sprintf("%s was purchased.", purchase.TemplateName),
			Metadata: map[string]any{
				"purchase_id":   purchase.ID,
				"template_id":   purchase.TemplateID,
				"seller_amount": purchase.SellerAmount,
			},
		},
	}

	completed, token, changed, err := s.purchases.CompleteWithToken(ctx, purchase.ID, paidAt, s.tokenTTL, notes)
	if err != nil {
		return Result{}, fmt.Errorf("complete purchase: %w", err)
	}

	// A settled line leaves the cart. The cart is a cache, not the
	// transaction of record: the purchase is already completed, so a failed
	// removal never unwinds it.
	if changed && s.carts != nil {
		_, _ = s.carts.Remove(ctx, buyer.BuyerID, completed.TemplateID)
	}

	return Result{
		PurchaseID:         completed.ID,
		Reference:          completed.Reference,
		Status:             completed.Status,
		TemplateID:         completed.TemplateID,
		TemplateName:       completed.TemplateName,
		Amount:             completed.Amount,
		Currency:           completed.Currency,
		DownloadToken:      token.Token,
		TokenExpiresAt:     token.ExpiresAt,
		RemainingDownloads: completed.RemainingDownloads(),
		AlreadyCompleted:   !changed,
	}, nil
}

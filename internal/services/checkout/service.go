package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creatorhub/backend/internal/gateway/paystack"
	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	authsvc "github.com/creatorhub/backend/internal/services/auth"
	cartsvc "github.com/creatorhub/backend/internal/services/cart"
	feesvc "github.com/creatorhub/backend/internal/services/fees"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrValidation             = errors.New("validation error")
	ErrTemplateNotFound       = errors.New("template not found")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrGateway                = errors.New("checkout failed at payment gateway")
)

type TemplateStore interface {
	FindByID(ctx context.Context, templateID string) (pgrepo.TemplateRecord, error)
}

type PurchaseStore interface {
	CreatePending(ctx context.Context, spec pgrepo.PurchaseSpec) (pgrepo.PurchaseRecord, error)
	CreateCompletedWithToken(
		ctx context.Context,
		spec pgrepo.PurchaseSpec,
		paidAt time.Time,
		tokenTTL time.Duration,
		notes []pgrepo.NotificationSpec,
	) (pgrepo.PurchaseRecord, pgrepo.DownloadTokenRecord, error)
}

type PaymentGateway interface {
	Initialize(ctx context.Context, in paystack.InitializeInput) (paystack.InitializeResult, error)
}

type CartStore interface {
	Remove(ctx context.Context, buyerID, itemID string) ([]cartsvc.Item, error)
}

type Service struct {
	templates TemplateStore
	purchases PurchaseStore
	gateway   PaymentGateway
	carts     CartStore
	fees      *feesvc.Calculator
	cfg       Config
	now       func() time.Time
}

type Dependencies struct {
	Templates TemplateStore
	Purchases PurchaseStore
	Gateway   PaymentGateway
	Carts     CartStore
	Fees      *feesvc.Calculator
}

type Config struct {
	Currency     string
	SuccessURL   string
	CancelURL    string
	MaxDownloads int
	TokenTTL     time.Duration
}

type StartInput struct {
	TemplateID string
	Quantity   int
	SuccessURL string
	CancelURL  string
}

type StartResult struct {
	PurchaseID    string
	Reference     string
	CheckoutURL   string
	Amount        int64
	PlatformFee   int64
	SellerAmount  int64
	Currency      string
	Free          bool
	DownloadToken string
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxDownloads < 1 {
		cfg.MaxDownloads = 5
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}

	return &Service{
		templates: deps.Templates,
		purchases: deps.Purchases,
		gateway:   deps.Gateway,
		carts:     deps.Carts,
		fees:      deps.Fees,
		cfg:       cfg,
		now:       time.Now,
	}
}

// StartFromCart runs checkout for whatever is in the buyer's cart. Only the
// first line is processed per invocation; remaining lines stay in the cart
// for follow-up checkouts. Single-line gateway sessions are a deliberate
// phase-1 limitation of the cart flow.
func (s *Service) StartFromCart(ctx context.Context, buyer authsvc.Identity, items []cartsvc.Item, in StartInput) (StartResult, error) {
	if !buyer.Valid() {
		return StartResult{}, ErrAuthenticationRequired
	}
	if len(items) == 0 {
		return StartResult{}, ErrEmptyCart
	}

	first := items[0]
	in.TemplateID = first.ID
	in.Quantity = first.Quantity
	return s.Start(ctx, buyer, in)
}

// Start computes the fee split for one template-quantity pair, records a
// pending purchase and opens a hosted gateway session. Nothing the buyer
// holds (cart included) is mutated, so a failed attempt can simply be
// retried.
func (s *Service) Start(ctx context.Context, buyer authsvc.Identity, in StartInput) (StartResult, error) {
	if !buyer.Valid() {
		return StartResult{}, ErrAuthenticationRequired
	}
	if s.templates == nil || s.purchases == nil || s.fees == nil {
		return StartResult{}, fmt.Errorf("checkout dependencies are not configured")
	}

	templateID := strings.TrimSpace(in.TemplateID)
	if templateID == "" {
		return StartResult{}, fmt.Errorf("%w: template id is required", ErrValidation)
	}
	if in.Quantity < 1 {
		return StartResult{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrTemplateNotFound) {
			return StartResult{}, ErrTemplateNotFound
		}
		return StartResult{}, fmt.Errorf("load template: %w", err)
	}

	subtotal, err := feesvc.LineSubtotal(template.Price, in.Quantity)
	if err != nil {
		return StartResult{}, wrapFeeError(err)
	}
	breakdown, err := s.fees.Split(subtotal)
	if err != nil {
		return StartResult{}, wrapFeeError(err)
	}

	currency := template.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	spec := pgrepo.PurchaseSpec{
		Reference:    uuid.NewString(),
		TemplateID:   template.ID,
		TemplateName: template.Name,
		BuyerID:      buyer.BuyerID,
		BuyerEmail:   buyer.Email,
		SellerID:     template.SellerID,
		Amount:       breakdown.Subtotal,
		PlatformFee:  breakdown.PlatformFee,
		SellerAmount: breakdown.SellerAmount,
		Currency:     currency,
		MaxDownloads: s.cfg.MaxDownloads,
	}

	if subtotal == 0 {
		return s.startFree(ctx, buyer, template, spec)
	}

	if s.gateway == nil {
		return StartResult{}, fmt.Errorf("payment gateway is not configured")
	}

	pending, err := s.purchases.CreatePending(ctx, spec)
	if err != nil {
		return StartResult{}, fmt.Errorf("create pending purchase: %w", err)
	}

	successURL := in.SuccessURL
	if successURL == "" {
		successURL = s.cfg.SuccessURL
	}
	cancelURL := in.CancelURL
	if cancelURL == "" {
		cancelURL = s.cfg.CancelURL
	}

	metadata := map[string]any{
		"purchase_id":   pending.ID,
		"template_id":   template.ID,
		"template_name": template.Name,
		"quantity":      in.Quantity,
	}
	// The gateway's initialize call has no first-class cancel field; the
	// hosted page reads it from metadata.
	if cancelURL != "" {
		metadata["cancel_url"] = cancelURL
	}

	session, err := s.gateway.Initialize(ctx, paystack.InitializeInput{
		AmountMinor: breakdown.Subtotal,
		Currency:    currency,
		Email:       buyer.Email,
		Reference:   pending.Reference,
		CallbackURL: successURL,
		Metadata:    metadata,
	})
	if err != nil {
		// The pending row stays behind; the buyer retries with a fresh
		// reference.
		return StartResult{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if strings.TrimSpace(session.AuthorizationURL) == "" {
		return StartResult{}, fmt.Errorf("%w: gateway returned no checkout url", ErrGateway)
	}

	return StartResult{
		PurchaseID:   pending.ID,
		Reference:    pending.Reference,
		CheckoutURL:  session.AuthorizationURL,
		Amount:       breakdown.Subtotal,
		PlatformFee:  breakdown.PlatformFee,
		SellerAmount: breakdown.SellerAmount,
		Currency:     currency,
		Free:         false,
	}, nil
}

func wrapFeeError(err error) error {
	if errors.Is(err, feesvc.ErrValidation) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}

// startFree records a zero-amount purchase as completed outright. No gateway
// session is opened and the download token is issued immediately.
func (s *Service) startFree(ctx context.Context, buyer authsvc.Identity, template pgrepo.TemplateRecord, spec pgrepo.PurchaseSpec) (StartResult, error) {
	paidAt := s.now().UTC()

	notes := []pgrepo.NotificationSpec{
		{
			UserID: buyer.BuyerID,
			Kind:   "purchase_completed",
			Title:  "Download ready",
			Body:   fmt.Sprintf("%s is ready to download.", template.Name),
			Metadata: map[string]any{
				"template_id": template.ID,
				"amount":      int64(0),
			},
		},
	}

	record, token, err := s.purchases.CreateCompletedWithToken(ctx, spec, paidAt, s.cfg.TokenTTL, notes)
	if err != nil {
		return StartResult{}, fmt.Errorf("create free purchase: %w", err)
	}

	// A free checkout settles immediately, so its line leaves the cart here.
	// Paid lines leave at verification. The cart is a cache; a failed
	// removal never unwinds the purchase.
	if s.carts != nil {
		_, _ = s.carts.Remove(ctx, buyer.BuyerID, template.ID)
	}

	return StartResult{
		PurchaseID:    record.ID,
		Reference:     record.Reference,
		Amount:        0,
		PlatformFee:   0,
		SellerAmount:  0,
		Currency:      record.Currency,
		Free:          true,
		DownloadToken: token.Token,
	}, nil
}

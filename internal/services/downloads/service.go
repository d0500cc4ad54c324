package downloads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	authsvc "github.com/creatorhub/backend/internal/services/auth"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("purchase not found")
	ErrNotCompleted           = errors.New("purchase is not completed")
	ErrDownloadLimitExceeded  = errors.New("download limit exceeded")
	ErrTokenExpired           = errors.New("download token expired")
	ErrTokenAlreadyUsed       = errors.New("download token already used")
	ErrStorageUnavailable     = errors.New("template storage unavailable")
)

type PurchaseStore interface {
	FindByIDForBuyer(ctx context.Context, purchaseID, buyerID string) (pgrepo.PurchaseRecord, error)
	RedeemDownload(ctx context.Context, purchaseID, buyerID, token string, now time.Time) (pgrepo.PurchaseRecord, error)
}

type TemplateStore interface {
	FindByID(ctx context.Context, templateID string) (pgrepo.TemplateRecord, error)
}

type ObjectStorage interface {
	PresignDownload(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
}

// Service exchanges a completed purchase (and optionally a single-use token)
// for a time-limited download URL while enforcing the per-purchase quota.
type Service struct {
	purchases PurchaseStore
	templates TemplateStore
	storage   ObjectStorage
	urlTTL    time.Duration
	now       func() time.Time
}

type Dependencies struct {
	Purchases PurchaseStore
	Templates TemplateStore
	Storage   ObjectStorage
}

type RedeemInput struct {
	PurchaseID string
	Token      string
}

type RedeemResult struct {
	DownloadURL        string
	TemplateName       string
	DownloadCount      int
	RemainingDownloads int
	URLExpiresAt       time.Time
}

func NewService(deps Dependencies, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = 2 * time.Hour
	}
	return &Service{
		purchases: deps.Purchases,
		templates: deps.Templates,
		storage:   deps.Storage,
		urlTTL:    urlTTL,
		now:       time.Now,
	}
}

// Redeem checks the buyer's entitlement, consumes the token and quota slot
// and returns a signed URL. The URL is presigned before the consuming
// update runs, so a buyer is never charged a download they did not receive.
func (s *Service) Redeem(ctx context.Context, buyer authsvc.Identity, in RedeemInput) (RedeemResult, error) {
	if !buyer.Valid() {
		return RedeemResult{}, ErrAuthenticationRequired
	}
	purchaseID := strings.TrimSpace(in.PurchaseID)
	if purchaseID == "" {
		return RedeemResult{}, fmt.Errorf("%w: purchase id is required", ErrValidation)
	}
	if s.purchases == nil || s.templates == nil {
		return RedeemResult{}, fmt.Errorf("download dependencies are not configured")
	}
	if s.storage == nil {
		return RedeemResult{}, ErrStorageUnavailable
	}

	purchase, err := s.purchases.FindByIDForBuyer(ctx, purchaseID, buyer.BuyerID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return RedeemResult{}, ErrNotFound
		}
		return RedeemResult{}, fmt.Errorf("load purchase: %w", err)
	}
	if !purchase.Completed() {
		return RedeemResult{}, ErrNotCompleted
	}
	if purchase.RemainingDownloads() <= 0 {
		return RedeemResult{}, ErrDownloadLimitExceeded
	}

	template, err := s.templates.FindByID(ctx, purchase.TemplateID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrTemplateNotFound) {
			return RedeemResult{}, fmt.Errorf("template %s is gone: %w", purchase.TemplateID, ErrNotFound)
		}
		return RedeemResult{}, fmt.Errorf("load template: %w", err)
	}
	if template.FileKey == "" {
		return RedeemResult{}, ErrStorageUnavailable
	}

	now := s.now().UTC()
	signedURL, err := s.storage.PresignDownload(ctx, template.FileKey, downloadFilename(template.Name), s.urlTTL)
	if err != nil {
		return RedeemResult{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	updated, err := s.purchases.RedeemDownload(ctx, purchaseID, buyer.BuyerID, strings.TrimSpace(in.Token), now)
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrPurchaseNotFound), errors.Is(err, pgrepo.ErrTokenNotFound):
			return RedeemResult{}, ErrNotFound
		case errors.Is(err, pgrepo.ErrPurchaseNotCompleted):
			return RedeemResult{}, ErrNotCompleted
		case errors.Is(err, pgrepo.ErrDownloadLimitReached):
			return RedeemResult{}, ErrDownloadLimitExceeded
		case errors.Is(err, pgrepo.ErrTokenExpired):
			return RedeemResult{}, ErrTokenExpired
		case errors.Is(err, pgrepo.ErrTokenUsed):
			return RedeemResult{}, ErrTokenAlreadyUsed
		}
		return RedeemResult{}, fmt.Errorf("redeem download: %w", err)
	}

	return RedeemResult{
		DownloadURL:        signedURL,
		TemplateName:       updated.TemplateName,
		DownloadCount:      updated.DownloadCount,
		RemainingDownloads: updated.RemainingDownloads(),
		URLExpiresAt:       now.Add(s.urlTTL),
	}, nil
}

func downloadFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "template.zip"
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
	if name == "" {
		return "template.zip"
	}
	return strings.ToLower(name) + ".zip"
}

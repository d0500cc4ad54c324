package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrPurchaseNotCompleted = errors.New("purchase is not completed")
	ErrDownloadLimitReached = errors.New("download limit reached")
	ErrTokenUsed            = errors.New("download token already used")
	ErrTokenExpired         = errors.New("download token expired")
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

// PurchaseRecord is the durable trail of a buyer's transaction. Rows are
// never deleted. All amounts are minor currency units. TemplateName is
// denormalized at purchase time so renames do not rewrite history.
type PurchaseRecord struct {
	ID             string
	Reference      string
	TemplateID     string
	TemplateName   string
	BuyerID        string
	BuyerEmail     string
	SellerID       string
	Amount         int64
	PlatformFee    int64
	SellerAmount   int64
	Currency       string
	Status         string
	DownloadCount  int
	MaxDownloads   int
	PaidAt         *time.Time
	LastDownloadAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p PurchaseRecord) Completed() bool {
	return p.Status == StatusCompleted
}

func (p PurchaseRecord) RemainingDownloads() int {
	remaining := p.MaxDownloads - p.DownloadCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

type PurchaseSpec struct {
	Reference    string
	TemplateID   string
	TemplateName string
	BuyerID      string
	BuyerEmail   string
	SellerID     string
	Amount       int64
	PlatformFee  int64
	SellerAmount int64
	Currency     string
	MaxDownloads int
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

const purchaseColumns = `id, reference, template_id, template_name, buyer_id, buyer_email, seller_id,
amount, platform_fee, seller_amount, currency, status, download_count, max_downloads,
paid_at, last_download_at, created_at, updated_at`

func (r *PurchaseRepo) CreatePending(ctx context.Context, spec PurchaseSpec) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if err := validateSpec(spec); err != nil {
		return PurchaseRecord{}, err
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
INSERT INTO purchases (
	id, reference, template_id, template_name, buyer_id, buyer_email, seller_id,
	amount, platform_fee, seller_amount, currency, status, download_count, max_downloads,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending', 0, $12, NOW(), NOW())
RETURNING `+purchaseColumns,
		uuid.NewString(), spec.Reference, spec.TemplateID, spec.TemplateName,
		spec.BuyerID, spec.BuyerEmail, spec.SellerID,
		spec.Amount, spec.PlatformFee, spec.SellerAmount,
		strings.ToUpper(spec.Currency), spec.MaxDownloads,
	))
	if err != nil {
		return PurchaseRecord{}, fmt.Errorf("create pending purchase: %w", err)
	}

	return record, nil
}

// CreateCompletedWithToken records a zero-amount purchase that skips the
// gateway: the row is born completed and the download token is issued in the
// same transaction.
func (r *PurchaseRepo) CreateCompletedWithToken(
	ctx context.Context,
	spec PurchaseSpec,
	paidAt time.Time,
	tokenTTL time.Duration,
	notes []NotificationSpec,
) (PurchaseRecord, DownloadTokenRecord, error) {
	if err := validateSpec(spec); err != nil {
		return PurchaseRecord{}, DownloadTokenRecord{}, err
	}

	var (
		record PurchaseRecord
		token  DownloadTokenRecord
	)
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		record, err = scanPurchase(tx.QueryRow(ctx, `
INSERT INTO purchases (
	id, reference, template_id, template_name, buyer_id, buyer_email, seller_id,
	amount, platform_fee, seller_amount, currency, status, download_count, max_downloads,
	paid_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'completed', 0, $12, $13, NOW(), NOW())
RETURNING `+purchaseColumns,
			uuid.NewString(), spec.Reference, spec.TemplateID, spec.TemplateName,
			spec.BuyerID, spec.BuyerEmail, spec.SellerID,
			spec.Amount, spec.PlatformFee, spec.SellerAmount,
			strings.ToUpper(spec.Currency), spec.MaxDownloads, paidAt,
		))
		if err != nil {
			return fmt.Errorf("create completed purchase: %w", err)
		}

		token, err = insertDownloadToken(ctx, tx, record.ID, paidAt, tokenTTL)
		if err != nil {
			return err
		}

		for _, note := range notes {
			if err := insertNotification(ctx, tx, note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseRecord{}, DownloadTokenRecord{}, err
	}

	return record, token, nil
}

// FindByReferenceForBuyer scopes the lookup to both reference and buyer, so a
// valid reference held by another buyer reads as not found.
func (r *PurchaseRepo) FindByReferenceForBuyer(ctx context.Context, reference, buyerID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	reference = strings.TrimSpace(reference)
	buyerID = strings.TrimSpace(buyerID)
	if reference == "" || buyerID == "" {
		return PurchaseRecord{}, fmt.Errorf("reference and buyer id are required")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE reference = $1
  AND buyer_id = $2
LIMIT 1
`, reference, buyerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by reference: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindByIDForBuyer(ctx context.Context, purchaseID, buyerID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	purchaseID = strings.TrimSpace(purchaseID)
	buyerID = strings.TrimSpace(buyerID)
	if purchaseID == "" || buyerID == "" {
		return PurchaseRecord{}, fmt.Errorf("purchase id and buyer id are required")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
  AND buyer_id = $2
LIMIT 1
`, purchaseID, buyerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]PurchaseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	buyerID = strings.TrimSpace(buyerID)
	if buyerID == "" {
		return nil, fmt.Errorf("buyer id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE buyer_id = $1
ORDER BY created_at DESC
LIMIT $2
`, buyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list purchases by buyer: %w", err)
	}
	defer rows.Close()

	records := make([]PurchaseRecord, 0, limit)
	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}

	return records, nil
}

// CompleteWithToken performs the pending->completed transition, issues the
// download token and writes the completion notifications as one transaction.
// The conditional UPDATE serializes concurrent calls on the row: exactly one
// caller observes changed=true; the others get the already-completed record
// and its existing token back.
func (r *PurchaseRepo) CompleteWithToken(
	ctx context.Context,
	purchaseID string,
	paidAt time.Time,
	tokenTTL time.Duration,
	notes []NotificationSpec,
) (PurchaseRecord, DownloadTokenRecord, bool, error) {
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return PurchaseRecord{}, DownloadTokenRecord{}, false, fmt.Errorf("purchase id is required")
	}

	var (
		record  PurchaseRecord
		token   DownloadTokenRecord
		changed bool
	)
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		updated, err := scanPurchase(tx.QueryRow(ctx, `
UPDATE purchases
SET
	status = 'completed',
	paid_at = $2,
	updated_at = NOW()
WHERE id = $1
  AND status = 'pending'
RETURNING `+purchaseColumns, purchaseID, paidAt))
		if err == nil {
			record = updated
			changed = true

			token, err = insertDownloadToken(ctx, tx, record.ID, paidAt, tokenTTL)
			if err != nil {
				return err
			}
			for _, note := range notes {
				if err := insertNotification(ctx, tx, note); err != nil {
					return err
				}
			}
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("mark purchase completed: %w", err)
		}

		// Lost the race or already completed earlier: read the terminal row.
		existing, err := scanPurchase(tx.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("read purchase after completion race: %w", err)
		}
		if !existing.Completed() {
			return fmt.Errorf("purchase did not transition to completed status")
		}

		record = existing
		changed = false

		existingToken, err := latestDownloadToken(ctx, tx, purchaseID)
		if err != nil {
			return fmt.Errorf("read token after completion race: %w", err)
		}
		token = existingToken
		return nil
	})
	if err != nil {
		return PurchaseRecord{}, DownloadTokenRecord{}, false, err
	}

	return record, token, changed, nil
}

// RedeemDownload consumes an optional token, increments the download counter
// and appends the audit entry atomically. The row lock keeps two concurrent
// downloads from both passing the quota check.
func (r *PurchaseRepo) RedeemDownload(
	ctx context.Context,
	purchaseID, buyerID, token string,
	now time.Time,
) (PurchaseRecord, error) {
	purchaseID = strings.TrimSpace(purchaseID)
	buyerID = strings.TrimSpace(buyerID)
	token = strings.TrimSpace(token)
	if purchaseID == "" || buyerID == "" {
		return PurchaseRecord{}, fmt.Errorf("purchase id and buyer id are required")
	}

	var record PurchaseRecord
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		current, err := scanPurchase(tx.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
  AND buyer_id = $2
FOR UPDATE
`, purchaseID, buyerID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("lock purchase for download: %w", err)
		}

		if !current.Completed() {
			return ErrPurchaseNotCompleted
		}
		if current.DownloadCount >= current.MaxDownloads {
			return ErrDownloadLimitReached
		}

		if token != "" {
			tokenRecord, err := scanDownloadToken(tx.QueryRow(ctx, `
SELECT token, purchase_id, expires_at, used, used_at, created_at
FROM download_tokens
WHERE token = $1
  AND purchase_id = $2
FOR UPDATE
`, token, purchaseID))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrTokenNotFound
				}
				return fmt.Errorf("lock download token: %w", err)
			}

			// Expiry wins over use state: an expired token is rejected even
			// if it was never redeemed.
			if tokenRecord.ExpiresAt.Before(now) {
				return ErrTokenExpired
			}
			if tokenRecord.Used {
				return ErrTokenUsed
			}

			if _, err := tx.Exec(ctx, `
UPDATE download_tokens
SET used = TRUE, used_at = $2
WHERE token = $1
`, token, now); err != nil {
				return fmt.Errorf("consume download token: %w", err)
			}
		}

		updated, err := scanPurchase(tx.QueryRow(ctx, `
UPDATE purchases
SET
	download_count = download_count + 1,
	last_download_at = $2,
	updated_at = NOW()
WHERE id = $1
RETURNING `+purchaseColumns, purchaseID, now))
		if err != nil {
			return fmt.Errorf("increment download count: %w", err)
		}
		record = updated

		audit := map[string]any{
			"download_count": record.DownloadCount,
			"token_used":     token != "",
		}
		auditJSON, err := json.Marshal(audit)
		if err != nil {
			return fmt.Errorf("marshal download audit metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO download_audit (
	purchase_id,
	buyer_id,
	metadata,
	occurred_at
) VALUES ($1, $2, $3::jsonb, $4)
`, purchaseID, buyerID, string(auditJSON), now); err != nil {
			return fmt.Errorf("insert download audit entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return PurchaseRecord{}, err
	}

	return record, nil
}

func validateSpec(spec PurchaseSpec) error {
	switch {
	case strings.TrimSpace(spec.Reference) == "",
		strings.TrimSpace(spec.TemplateID) == "",
		strings.TrimSpace(spec.BuyerID) == "",
		strings.TrimSpace(spec.SellerID) == "":
		return fmt.Errorf("invalid purchase spec: missing identifiers")
	case spec.Amount < 0 || spec.PlatformFee < 0 || spec.SellerAmount < 0:
		return fmt.Errorf("invalid purchase spec: negative amounts")
	case spec.PlatformFee+spec.SellerAmount != spec.Amount:
		return fmt.Errorf("invalid purchase spec: fee split does not partition amount")
	case spec.MaxDownloads < 1:
		return fmt.Errorf("invalid purchase spec: max downloads must be at least 1")
	}
	return nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var record PurchaseRecord
	if err := row.Scan(
		&record.ID,
		&record.Reference,
		&record.TemplateID,
		&record.TemplateName,
		&record.BuyerID,
		&record.BuyerEmail,
		&record.SellerID,
		&record.Amount,
		&record.PlatformFee,
		&record.SellerAmount,
		&record.Currency,
		&record.Status,
		&record.DownloadCount,
		&record.MaxDownloads,
		&record.PaidAt,
		&record.LastDownloadAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return record, nil
}

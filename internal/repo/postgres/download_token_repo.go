package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrTokenNotFound = errors.New("download token not found")

// DownloadTokenRecord is a single-use download credential. Rows are never
// deleted; a redeemed token stays behind as part of the audit trail.
type DownloadTokenRecord struct {
	Token      string
	PurchaseID string
	ExpiresAt  time.Time
	Used       bool
	UsedAt     *time.Time
	CreatedAt  time.Time
}

func insertDownloadToken(ctx context.Context, q queryRunner, purchaseID string, issuedAt time.Time, ttl time.Duration) (DownloadTokenRecord, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	record := DownloadTokenRecord{
		Token:      uuid.NewString(),
		PurchaseID: purchaseID,
		ExpiresAt:  issuedAt.Add(ttl),
	}

	err := q.QueryRow(ctx, `
INSERT INTO download_tokens (
	token,
	purchase_id,
	expires_at,
	used,
	created_at
) VALUES ($1, $2, $3, FALSE, NOW())
RETURNING created_at
`, record.Token, record.PurchaseID, record.ExpiresAt).Scan(&record.CreatedAt)
	if err != nil {
		return DownloadTokenRecord{}, fmt.Errorf("insert download token: %w", err)
	}

	return record, nil
}

// latestDownloadToken returns the most recently issued token for a purchase.
// Repeated verification calls use it to hand back the original token instead
// of minting a second one.
func latestDownloadToken(ctx context.Context, q queryRunner, purchaseID string) (DownloadTokenRecord, error) {
	record, err := scanDownloadToken(q.QueryRow(ctx, `
SELECT token, purchase_id, expires_at, used, used_at, created_at
FROM download_tokens
WHERE purchase_id = $1
ORDER BY created_at DESC
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DownloadTokenRecord{}, ErrTokenNotFound
		}
		return DownloadTokenRecord{}, fmt.Errorf("find latest token for purchase: %w", err)
	}

	return record, nil
}

func scanDownloadToken(row pgx.Row) (DownloadTokenRecord, error) {
	var record DownloadTokenRecord
	if err := row.Scan(
		&record.Token,
		&record.PurchaseID,
		&record.ExpiresAt,
		&record.Used,
		&record.UsedAt,
		&record.CreatedAt,
	); err != nil {
		return DownloadTokenRecord{}, err
	}
	return record, nil
}

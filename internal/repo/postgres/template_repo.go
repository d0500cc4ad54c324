package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTemplateNotFound = errors.New("template not found")

type TemplateRepo struct {
	pool *pgxpool.Pool
}

// TemplateRecord is the sellable item. Price is in minor currency units and
// is the authoritative price for checkout; client-submitted prices are never
// trusted. FileKey is the object key of the downloadable artifact.
type TemplateRecord struct {
	ID         string
	SellerID   string
	Name       string
	Price      int64
	Currency   string
	FileKey    string
	PreviewKey *string
	CreatedAt  time.Time
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

func (r *TemplateRepo) FindByID(ctx context.Context, templateID string) (TemplateRecord, error) {
	if r.pool == nil {
		return TemplateRecord{}, fmt.Errorf("postgres pool is nil")
	}
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return TemplateRecord{}, fmt.Errorf("template id is required")
	}

	var record TemplateRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, seller_id, name, price, currency, file_key, preview_key, created_at
FROM templates
WHERE id = $1
LIMIT 1
`, templateID).Scan(
		&record.ID,
		&record.SellerID,
		&record.Name,
		&record.Price,
		&record.Currency,
		&record.FileKey,
		&record.PreviewKey,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TemplateRecord{}, ErrTemplateNotFound
		}
		return TemplateRecord{}, fmt.Errorf("find template by id: %w", err)
	}

	return record, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

// NotificationSpec is an insert-only record addressed to a buyer or seller.
// Purchase completion writes one per party inside the completion transaction.
type NotificationSpec struct {
	UserID   string
	Kind     string
	Title    string
	Body     string
	Metadata map[string]any
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Insert(ctx context.Context, spec NotificationSpec) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	return insertNotification(ctx, r.pool, spec)
}

// DeleteOlderThan prunes notification rows past their retention. Purchases,
// tokens and the download audit are never pruned.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM notifications
WHERE created_at < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale notifications: %w", err)
	}

	return tag.RowsAffected(), nil
}

// insertNotification works against both the pool and an open transaction so
// the purchase repos can emit notifications atomically with the status
// transition.
func insertNotification(ctx context.Context, q queryRunner, spec NotificationSpec) error {
	spec.UserID = strings.TrimSpace(spec.UserID)
	spec.Kind = strings.TrimSpace(spec.Kind)
	if spec.UserID == "" || spec.Kind == "" {
		return fmt.Errorf("invalid notification payload")
	}

	metadata, err := marshalMetadata(spec.Metadata)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
INSERT INTO notifications (
	user_id,
	kind,
	title,
	body,
	metadata,
	created_at
) VALUES ($1, $2, $3, $4, $5::jsonb, NOW())
`, spec.UserID, spec.Kind, spec.Title, spec.Body, metadata)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal notification metadata: %w", err)
	}
	return string(raw), nil
}

// queryRunner is the subset of pgxpool.Pool and pgx.Tx the shared insert
// helpers need.
type queryRunner interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

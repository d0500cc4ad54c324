package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const cartPrefix = "cart:"

// CartRepo stores each buyer's cart as a single JSON blob under cart:<buyer>.
// Writes replace the whole blob, so concurrent writers are last-write-wins;
// the key TTL slides on every save.
type CartRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

type CartItemRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	ImageKey  string `json:"image_key,omitempty"`
}

func NewCartRepo(client *goredis.Client, ttl time.Duration) *CartRepo {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &CartRepo{client: client, ttl: ttl}
}

func (r *CartRepo) Get(ctx context.Context, buyerID string) ([]CartItemRecord, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key, err := cartKey(buyerID)
	if err != nil {
		return nil, err
	}

	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return []CartItemRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var items []CartItemRecord
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart payload: %w", err)
	}
	if items == nil {
		items = []CartItemRecord{}
	}
	return items, nil
}

func (r *CartRepo) Save(ctx context.Context, buyerID string, items []CartItemRecord) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key, err := cartKey(buyerID)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		return r.Clear(ctx, buyerID)
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart payload: %w", err)
	}

	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *CartRepo) Clear(ctx context.Context, buyerID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key, err := cartKey(buyerID)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func cartKey(buyerID string) (string, error) {
	buyerID = strings.TrimSpace(buyerID)
	if buyerID == "" {
		return "", fmt.Errorf("buyer id is required")
	}
	return cartPrefix + buyerID, nil
}

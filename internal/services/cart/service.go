package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redrepo "github.com/creatorhub/backend/internal/repo/redis"
)

var ErrValidation = errors.New("validation error")

type Store interface {
	Get(ctx context.Context, buyerID string) ([]redrepo.CartItemRecord, error)
	Save(ctx context.Context, buyerID string, items []redrepo.CartItemRecord) error
	Clear(ctx context.Context, buyerID string) error
}

// Item is one purchasable line in a buyer's cart. UnitPrice is in minor
// currency units. Quantity is always >= 1 for a stored line.
type Item struct {
	ID        string
	Name      string
	UnitPrice int64
	Quantity  int
	ImageKey  string
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, buyerID string) ([]Item, error) {
	if err := s.check(buyerID); err != nil {
		return nil, err
	}

	records, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// Add appends a line or, when the item is already present, sums quantities
// into the existing line.
func (s *Service) Add(ctx context.Context, buyerID string, item Item) ([]Item, error) {
	if err := s.check(buyerID); err != nil {
		return nil, err
	}
	item.ID = strings.TrimSpace(item.ID)
	item.Name = strings.TrimSpace(item.Name)
	if item.ID == "" || item.Name == "" {
		return nil, fmt.Errorf("%w: item id and name are required", ErrValidation)
	}
	if item.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if item.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	items, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range items {
		if items[i].ID == item.ID {
			items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, item)
	}

	if err := s.store.Save(ctx, buyerID, toRecords(items)); err != nil {
		return nil, err
	}
	return items, nil
}

// SetQuantity updates a line's quantity. Anything below 1 removes the line.
func (s *Service) SetQuantity(ctx context.Context, buyerID, itemID string, quantity int) ([]Item, error) {
	if err := s.check(buyerID); err != nil {
		return nil, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrValidation)
	}

	items, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	out := items[:0]
	found := false
	for _, it := range items {
		if it.ID != itemID {
			out = append(out, it)
			continue
		}
		found = true
		if quantity >= 1 {
			it.Quantity = quantity
			out = append(out, it)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: item is not in the cart", ErrValidation)
	}

	if err := s.store.Save(ctx, buyerID, toRecords(out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Remove(ctx context.Context, buyerID, itemID string) ([]Item, error) {
	return s.SetQuantity(ctx, buyerID, itemID, 0)
}

func (s *Service) Clear(ctx context.Context, buyerID string) error {
	if err := s.check(buyerID); err != nil {
		return err
	}
	return s.store.Clear(ctx, buyerID)
}

func (s *Service) check(buyerID string) error {
	if strings.TrimSpace(buyerID) == "" {
		return fmt.Errorf("%w: buyer id is required", ErrValidation)
	}
	if s.store == nil {
		return fmt.Errorf("cart store is nil")
	}
	return nil
}

func toRecords(items []Item) []redrepo.CartItemRecord {
	records := make([]redrepo.CartItemRecord, 0, len(items))
	for _, it := range items {
		records = append(records, redrepo.CartItemRecord{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			ImageKey:  it.ImageKey,
		})
	}
	return records
}

func fromRecords(records []redrepo.CartItemRecord) []Item {
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, Item{
			ID:        rec.ID,
			Name:      rec.Name,
			UnitPrice: rec.UnitPrice,
			Quantity:  rec.Quantity,
			ImageKey:  rec.ImageKey,
		})
	}
	return items
}

package fees

import (
	"errors"
	"fmt"
	"math"
)

var ErrValidation = errors.New("validation error")

const bpsDenominator = 10000

// Breakdown is the fee split for a checkout subtotal. All amounts are in the
// currency's minor unit. PlatformFee + SellerAmount always equals Subtotal.
type Breakdown struct {
	Subtotal     int64
	PlatformFee  int64
	SellerAmount int64
}

// Calculator splits subtotals by a fixed platform rate expressed in basis
// points. It is pure: no I/O, no clock, no state besides the rate.
type Calculator struct {
	rateBPS int64
}

func NewCalculator(rateBPS int) (*Calculator, error) {
	if rateBPS < 0 || rateBPS > bpsDenominator {
		return nil, fmt.Errorf("platform fee bps %d out of range [0, %d]", rateBPS, bpsDenominator)
	}
	return &Calculator{rateBPS: int64(rateBPS)}, nil
}

func (c *Calculator) RateBPS() int {
	return int(c.rateBPS)
}

// Split computes the platform fee as round(subtotal * rate), rounding to the
// nearest minor unit with ties away from zero, and the seller amount as the
// exact remainder. A negative subtotal is a precondition violation, never
// clamped.
func (c *Calculator) Split(subtotal int64) (Breakdown, error) {
	if subtotal < 0 {
		return Breakdown{}, fmt.Errorf("%w: subtotal must not be negative", ErrValidation)
	}
	if c.rateBPS != 0 && subtotal > (math.MaxInt64-bpsDenominator/2)/c.rateBPS {
		return Breakdown{}, fmt.Errorf("%w: subtotal too large to split", ErrValidation)
	}

	fee := (subtotal*c.rateBPS + bpsDenominator/2) / bpsDenominator

	return Breakdown{
		Subtotal:     subtotal,
		PlatformFee:  fee,
		SellerAmount: subtotal - fee,
	}, nil
}

// LineSubtotal multiplies a unit price by a quantity, guarding against
// negative inputs and int64 overflow.
func LineSubtotal(unitPrice int64, quantity int) (int64, error) {
	if unitPrice < 0 {
		return 0, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if quantity < 1 {
		return 0, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	qty := int64(quantity)
	if unitPrice != 0 && qty > (1<<62)/unitPrice {
		return 0, fmt.Errorf("%w: subtotal overflows", ErrValidation)
	}

	return unitPrice * qty, nil
}

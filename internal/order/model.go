package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrStatusNotFound    = errors.New("unknown or inactive status")
	ErrConfiguration     = errors.New("required status row is missing")
)

// Order is immutable after creation except for status, notes and updated_at.
// Rows are never deleted.
type Order struct {
	ID              string          `json:"id"`
	Number          string          `json:"order_number"`
	BuyerID         int64           `json:"buyer_id"`
	StatusID        int             `json:"status_id"`
	Status          string          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	Notes           string          `json:"notes,omitempty"`
	OrderDate       time.Time       `json:"order_date"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Line freezes price and title at purchase time, so historical orders stay
// accurate under later catalog edits.
type Line struct {
	OrderID      string          `json:"order_id"`
	ItemID       string          `json:"item_id"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
	ItemTitle    string          `json:"item_title"`
}

// CreatedLine carries the seller and commission terms captured from the
// locked item rows during checkout. Only the embedded Line is persisted;
// the rest feeds the derived marketplace summary.
type CreatedLine struct {
	Line
	SellerID       *int64
	CommissionRate *decimal.Decimal
	PlatformFee    *decimal.Decimal
}

type CheckoutInput struct {
	ShippingAddress string
	BillingAddress  string
	Notes           string
}

// LineError reports the first cart line that fails checkout validation.
// The whole checkout aborts; partial orders are never created.
type LineError struct {
	ItemID     string
	Title      string
	Violations []catalog.Violation
}

func (e *LineError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = string(v)
	}
	return fmt.Sprintf("item %q cannot be ordered: %s", e.Title, strings.Join(parts, ", "))
}

func (e *LineError) HasViolation(v catalog.Violation) bool {
	for _, got := range e.Violations {
		if got == v {
			return true
		}
	}
	return false
}

package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the catalog lifecycle value stored on an item row.
type ItemStatus string

const (
	StatusPending  ItemStatus = "Pending"
	StatusActive   ItemStatus = "Active"
	StatusRejected ItemStatus = "Rejected"
	StatusSold     ItemStatus = "Sold"
	StatusRemoved  ItemStatus = "Removed"
)

type Item struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	// SellerID is nil for platform-owned items.
	SellerID       *int64           `json:"seller_id,omitempty"`
	IsActive       bool             `json:"is_active"`
	IsApproved     bool             `json:"is_approved"`
	Status         ItemStatus       `json:"item_status"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty"`
	PlatformFee    *decimal.Decimal `json:"platform_fee,omitempty"`
	Category       string           `json:"category,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Purchasable reports whether the item can be bought right now.
func (it *Item) Purchasable() bool {
	return it.IsActive && it.IsApproved && it.Status == StatusActive && it.StockQuantity > 0
}

// Violation names one business rule a cart line breaks.
type Violation string

const (
	ViolationInactive          Violation = "item_inactive"
	ViolationNotApproved       Violation = "item_not_approved"
	ViolationStatusNotActive   Violation = "item_status_not_active"
	ViolationInsufficientStock Violation = "insufficient_stock"
	ViolationOwnItem           Violation = "own_item"
)

// CheckAvailability returns the availability rules the item breaks,
// independent of any particular buyer or quantity.
func CheckAvailability(it *Item) []Violation {
	var out []Violation
	if !it.IsActive {
		out = append(out, ViolationInactive)
	}
	if !it.IsApproved {
		out = append(out, ViolationNotApproved)
	}
	if it.Status != StatusActive {
		out = append(out, ViolationStatusNotActive)
	}
	return out
}

// CheckLine validates a requested (buyer, quantity) against the item. The
// same rules run in the cart manager and again inside the checkout
// transaction, against freshly locked rows.
func CheckLine(it *Item, buyerID int64, quantity int) []Violation {
	out := CheckAvailability(it)
	if it.SellerID != nil && *it.SellerID == buyerID {
		out = append(out, ViolationOwnItem)
	}
	if quantity > it.StockQuantity {
		out = append(out, ViolationInsufficientStock)
	}
	return out
}

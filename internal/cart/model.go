package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
)

var (
	ErrItemUnavailable   = errors.New("item is not available for purchase")
	ErrSelfPurchase      = errors.New("sellers cannot buy their own items")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrLineNotFound      = errors.New("cart line not found")
)

// Line is one (item, quantity) entry in a buyer's cart. Unique per
// (buyer, item): adding the same item again merges quantities.
type Line struct {
	BuyerID  int64     `json:"buyer_id"`
	ItemID   string    `json:"item_id"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

// LineWithItem joins a cart line with the live catalog row. Carts reference
// items live (not snapshotted) so the display always shows current price
// and stock.
type LineWithItem struct {
	Line
	Item catalog.Item `json:"item"`
}

// LineReport is the per-line outcome of Validate.
type LineReport struct {
	ItemID     string              `json:"item_id"`
	Title      string              `json:"title"`
	Quantity   int                 `json:"quantity"`
	UnitPrice  decimal.Decimal     `json:"unit_price"`
	LineTotal  decimal.Decimal     `json:"line_total"`
	Valid      bool                `json:"valid"`
	Violations []catalog.Violation `json:"violations,omitempty"`
}

// Report sums only the currently-valid lines.
type Report struct {
	Lines    []LineReport    `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	AllValid bool            `json:"all_valid"`
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
)

// Service owns the buyer's working set of cart lines and validates them
// against the live catalog. It never mutates items or stock; that happens
// only inside the order transaction.
type Service struct {
	lines Repository
	items catalog.Repository
}

func NewService(lines Repository, items catalog.Repository) *Service {
	return &Service{lines: lines, items: items}
}

// AddLine creates the line or merges quantities if the item is already in
// the cart. The combined quantity must fit the current stock.
func (s *Service) AddLine(ctx context.Context, buyerID int64, itemID string, quantity int) (*Line, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	it, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(catalog.CheckAvailability(it)) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, it.Title)
	}
	if it.SellerID != nil && *it.SellerID == buyerID {
		return nil, ErrSelfPurchase
	}

	line := &Line{BuyerID: buyerID, ItemID: itemID, Quantity: quantity, AddedAt: time.Now().UTC()}
	existing, err := s.lines.Get(ctx, buyerID, itemID)
	switch {
	case err == nil:
		line.Quantity += existing.Quantity
		line.AddedAt = existing.AddedAt
	case errors.Is(err, ErrLineNotFound):
		// first add
	default:
		return nil, err
	}
	if line.Quantity > it.StockQuantity {
		return nil, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, it.Title, it.StockQuantity)
	}
	if err := s.lines.Put(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateLine sets an absolute quantity. If the item has become unavailable
// since it was added, the line is dropped and removed=true is returned
// instead of an error, so stale carts heal themselves.
func (s *Service) UpdateLine(ctx context.Context, buyerID int64, itemID string, quantity int) (line *Line, removed bool, err error) {
	if quantity <= 0 {
		return nil, false, ErrInvalidQuantity
	}
	existing, err := s.lines.Get(ctx, buyerID, itemID)
	if err != nil {
		return nil, false, err
	}
	it, err := s.items.GetByID(ctx, itemID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, false, err
	}
	if errors.Is(err, catalog.ErrNotFound) || len(catalog.CheckAvailability(it)) > 0 {
		if _, derr := s.lines.Delete(ctx, buyerID, itemID); derr != nil {
			return nil, false, derr
		}
		return nil, true, nil
	}
	if quantity > it.StockQuantity {
		return nil, false, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, it.Title, it.StockQuantity)
	}
	existing.Quantity = quantity
	if err := s.lines.Put(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// RemoveLine deletes the line if present. Removing an absent line is not an
// error.
func (s *Service) RemoveLine(ctx context.Context, buyerID int64, itemID string) error {
	_, err := s.lines.Delete(ctx, buyerID, itemID)
	return err
}

// ClearCart drops every line and returns how many were removed.
func (s *Service) ClearCart(ctx context.Context, buyerID int64) (int64, error) {
	return s.lines.Clear(ctx, buyerID)
}

// List returns the cart joined with live item data for display.
func (s *Service) List(ctx context.Context, buyerID int64) ([]LineWithItem, error) {
	lines, err := s.lines.ListWithItems(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []LineWithItem{}
	}
	return lines, nil
}

// Validate inspects every line without mutating anything and reports, per
// line, which invariants it breaks. The total covers valid lines only, so
// checkout UIs can pre-flight before committing.
func (s *Service) Validate(ctx context.Context, buyerID int64) (*Report, error) {
	lines, err := s.lines.ListWithItems(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	rep := &Report{Lines: []LineReport{}, Total: decimal.Zero, AllValid: true}
	for _, lw := range lines {
		it := lw.Item
		lr := LineReport{
			ItemID:     lw.ItemID,
			Title:      it.Title,
			Quantity:   lw.Quantity,
			UnitPrice:  it.Price,
			LineTotal:  it.Price.Mul(decimal.NewFromInt(int64(lw.Quantity))),
			Violations: catalog.CheckLine(&it, buyerID, lw.Quantity),
		}
		lr.Valid = len(lr.Violations) == 0
		if lr.Valid {
			rep.Total = rep.Total.Add(lr.LineTotal)
		} else {
			rep.AllValid = false
		}
		rep.Lines = append(rep.Lines, lr)
	}
	return rep, nil
}

// Cleanup deletes every line Validate would flag, applying the same rule
// set, so a validate-then-cleanup pair always leaves a checkout-ready cart.
// Idempotent: a second pass finds nothing to remove.
func (s *Service) Cleanup(ctx context.Context, buyerID int64) (int64, error) {
	lines, err := s.lines.ListWithItems(ctx, buyerID)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, lw := range lines {
		it := lw.Item
		if len(catalog.CheckLine(&it, buyerID, lw.Quantity)) > 0 {
			stale = append(stale, lw.ItemID)
		}
	}
	return s.lines.DeleteMany(ctx, buyerID, stale)
}

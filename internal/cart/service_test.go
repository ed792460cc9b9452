package cart

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
)

type memLines struct {
	lines map[string]*Line
}

func key(buyerID int64, itemID string) string {
	return fmt.Sprintf("%d/%s", buyerID, itemID)
}

func newMemLines() *memLines { return &memLines{lines: map[string]*Line{}} }

func (m *memLines) Get(_ context.Context, buyerID int64, itemID string) (*Line, error) {
	l, ok := m.lines[key(buyerID, itemID)]
	if !ok {
		return nil, ErrLineNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLines) Put(_ context.Context, l *Line) error {
	cp := *l
	m.lines[key(l.BuyerID, l.ItemID)] = &cp
	return nil
}

func (m *memLines) Delete(_ context.Context, buyerID int64, itemID string) (bool, error) {
	k := key(buyerID, itemID)
	_, ok := m.lines[k]
	delete(m.lines, k)
	return ok, nil
}

func (m *memLines) Clear(_ context.Context, buyerID int64) (int64, error) {
	var n int64
	for k, l := range m.lines {
		if l.BuyerID == buyerID {
			delete(m.lines, k)
			n++
		}
	}
	return n, nil
}

func (m *memLines) DeleteMany(_ context.Context, buyerID int64, itemIDs []string) (int64, error) {
	var n int64
	for _, id := range itemIDs {
		ok, _ := m.Delete(nil, buyerID, id)
		if ok {
			n++
		}
	}
	return n, nil
}

type memItems struct {
	items map[string]*catalog.Item
}

func (m *memItems) GetByID(_ context.Context, id string) (*catalog.Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

// itemsJoin lets list-based operations run against the same stub maps.
type itemsJoin struct {
	*memLines
	items *memItems
}

func (j *itemsJoin) ListWithItems(_ context.Context, buyerID int64) ([]LineWithItem, error) {
	var out []LineWithItem
	for _, l := range j.lines {
		if l.BuyerID != buyerID {
			continue
		}
		it, _ := j.items.GetByID(nil, l.ItemID)
		out = append(out, LineWithItem{Line: *l, Item: *it})
	}
	return out, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed() (*Service, *memLines, *memItems) {
	seller := int64(7)
	items := &memItems{items: map[string]*catalog.Item{
		"item-a": {
			ID: "item-a", Title: "Teclado", Price: dec("10.00"), StockQuantity: 5,
			SellerID: &seller, IsActive: true, IsApproved: true, Status: catalog.StatusActive,
		},
		"item-b": {
			ID: "item-b", Title: "Mouse", Price: dec("4.50"), StockQuantity: 2,
			IsActive: true, IsApproved: true, Status: catalog.StatusActive,
		},
		"item-c": {
			ID: "item-c", Title: "Monitor", Price: dec("99.00"), StockQuantity: 1,
			IsActive: true, IsApproved: true, Status: catalog.StatusRejected,
		},
	}}
	lines := newMemLines()
	svc := NewService(&itemsJoin{memLines: lines, items: items}, items)
	return svc, lines, items
}

func TestAddLineMergesQuantities(t *testing.T) {
	svc, _, _ := seed()
	ctx := context.Background()

	first, err := svc.AddLine(ctx, 3, "item-a", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Quantity)

	merged, err := svc.AddLine(ctx, 3, "item-a", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Quantity)
	assert.Equal(t, first.AddedAt, merged.AddedAt)

	// still one row, not two
	cart, err := svc.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, cart, 1)
}

func TestAddLineRejectsOverMergedStock(t *testing.T) {
	svc, _, _ := seed()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, 3, "item-b", 2)
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, 3, "item-b", 1) // 2 existing + 1 > stock 2
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAddLineSelfPurchase(t *testing.T) {
	svc, _, _ := seed()

	_, err := svc.AddLine(context.Background(), 7, "item-a", 1)
	assert.ErrorIs(t, err, ErrSelfPurchase)
}

func TestAddLineUnavailableItem(t *testing.T) {
	svc, _, _ := seed()

	_, err := svc.AddLine(context.Background(), 3, "item-c", 1)
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestAddLineInvalidQuantity(t *testing.T) {
	svc, _, _ := seed()

	_, err := svc.AddLine(context.Background(), 3, "item-a", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateLineSelfHealing(t *testing.T) {
	svc, lines, items := seed()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, 3, "item-a", 1)
	require.NoError(t, err)

	// item becomes unapproved after it was added
	items.items["item-a"].IsApproved = false

	line, removed, err := svc.UpdateLine(ctx, 3, "item-a", 2)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, line)
	assert.Empty(t, lines.lines)
}

func TestUpdateLineSetsAbsoluteQuantity(t *testing.T) {
	svc, _, _ := seed()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, 3, "item-a", 1)
	require.NoError(t, err)

	line, removed, err := svc.UpdateLine(ctx, 3, "item-a", 4)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 4, line.Quantity)

	_, _, err = svc.UpdateLine(ctx, 3, "item-a", 6)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestValidateMixedCart(t *testing.T) {
	svc, lines, _ := seed()
	ctx := context.Background()

	// item-c is Rejected, item-b valid; insert c directly, it could never
	// pass AddLine
	require.NoError(t, lines.Put(ctx, &Line{BuyerID: 3, ItemID: "item-c", Quantity: 1, AddedAt: time.Now()}))
	_, err := svc.AddLine(ctx, 3, "item-b", 2)
	require.NoError(t, err)

	rep, err := svc.Validate(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rep.Lines, 2)
	assert.False(t, rep.AllValid)

	byItem := map[string]LineReport{}
	for _, lr := range rep.Lines {
		byItem[lr.ItemID] = lr
	}
	assert.False(t, byItem["item-c"].Valid)
	assert.Contains(t, byItem["item-c"].Violations, catalog.ViolationStatusNotActive)
	assert.True(t, byItem["item-b"].Valid)
	assert.True(t, rep.Total.Equal(dec("9.00")), "total=%s", rep.Total)
}

func TestCleanupIdempotent(t *testing.T) {
	svc, lines, _ := seed()
	ctx := context.Background()

	require.NoError(t, lines.Put(ctx, &Line{BuyerID: 3, ItemID: "item-c", Quantity: 1, AddedAt: time.Now()}))
	_, err := svc.AddLine(ctx, 3, "item-a", 1)
	require.NoError(t, err)

	n, err := svc.Cleanup(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = svc.Cleanup(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	cart, err := svc.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, cart, 1)
	assert.Equal(t, "item-a", cart[0].ItemID)
}

func TestCleanupRemovesEveryLineValidateFlags(t *testing.T) {
	svc, lines, items := seed()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, 3, "item-a", 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, 3, "item-b", 2)
	require.NoError(t, err)

	// stock on item-b drops below the cart quantity after the add
	items.items["item-b"].StockQuantity = 1

	rep, err := svc.Validate(ctx, 3)
	require.NoError(t, err)
	assert.False(t, rep.AllValid)

	n, err := svc.Cleanup(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// cleanup applied exactly the validate rule set
	rep, err = svc.Validate(ctx, 3)
	require.NoError(t, err)
	assert.True(t, rep.AllValid)

	cart, err := svc.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "item-a", cart[0].ItemID)
	_, ok := lines.lines[key(3, "item-b")]
	assert.False(t, ok)
}

func TestClearCart(t *testing.T) {
	svc, _, _ := seed()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, 3, "item-a", 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, 3, "item-b", 1)
	require.NoError(t, err)

	n, err := svc.ClearCart(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

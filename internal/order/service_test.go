package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
	"github.com/MikeMC777/mercado-mp/internal/metrics"
)

type stubRepo struct {
	order     *Order
	created   []CreatedLine
	createErr error
	cancelErr error
}

func (s *stubRepo) CreateFromCart(_ context.Context, buyerID int64, _ CheckoutInput) (*Order, []CreatedLine, error) {
	if s.createErr != nil {
		return nil, nil, s.createErr
	}
	return s.order, s.created, nil
}

func (s *stubRepo) GetByID(_ context.Context, buyerID int64, orderID string) (*Order, []Line, error) {
	if s.order == nil || s.order.ID != orderID || s.order.BuyerID != buyerID {
		return nil, nil, ErrNotFound
	}
	var lines []Line
	for _, cl := range s.created {
		lines = append(lines, cl.Line)
	}
	return s.order, lines, nil
}

func (s *stubRepo) ListByBuyer(_ context.Context, buyerID int64, _, _ int) ([]Order, error) {
	if s.order != nil && s.order.BuyerID == buyerID {
		return []Order{*s.order}, nil
	}
	return nil, nil
}

func (s *stubRepo) Cancel(_ context.Context, buyerID int64, orderID string) (*Order, error) {
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	s.order.Status = StatusCancelled
	return s.order, nil
}

func (s *stubRepo) UpdateStatus(_ context.Context, orderID, target string) (*Order, error) {
	if !CanTransition(s.order.Status, target) {
		return nil, ErrInvalidTransition
	}
	s.order.Status = target
	return s.order, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sellerLine(orderID string, sellerID int64, qty int, price string, rate, fee *string) CreatedLine {
	cl := CreatedLine{
		Line: Line{
			OrderID:      orderID,
			ItemID:       "item-a",
			Quantity:     qty,
			PriceAtOrder: dec(price),
			ItemTitle:    "Cafetera",
		},
		SellerID: &sellerID,
	}
	if rate != nil {
		d := dec(*rate)
		cl.CommissionRate = &d
	}
	if fee != nil {
		d := dec(*fee)
		cl.PlatformFee = &d
	}
	return cl
}

func strp(s string) *string { return &s }

func testOrder(total string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID: "ord-1", Number: "MP-20260830-ABCD1234", BuyerID: 3,
		Status: StatusPending, Total: dec(total), OrderDate: now, UpdatedAt: now,
	}
}

func TestCheckoutCommissionScenario(t *testing.T) {
	// item at 10.00, one unit, 10% commission, seller 7
	repo := &stubRepo{
		order:   testOrder("10.00"),
		created: []CreatedLine{sellerLine("ord-1", 7, 1, "10.00", strp("0.10"), strp("0.00"))},
	}
	svc := NewService(repo, nil, metrics.New(), dec("0.05"), dec("0.00"))

	res, err := svc.Checkout(context.Background(), 3, CheckoutInput{})
	require.NoError(t, err)

	// order total equals the sum over line snapshots
	lineSum := decimal.Zero
	for _, l := range res.Lines {
		lineSum = lineSum.Add(l.PriceAtOrder.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.True(t, lineSum.Equal(res.Order.Total))

	require.Len(t, res.Summary.SellerLines, 1)
	sl := res.Summary.SellerLines[0]
	assert.True(t, sl.Commission.Equal(dec("1.00")), "commission=%s", sl.Commission)
	assert.True(t, sl.NetToSeller.Equal(dec("9.00")), "net=%s", sl.NetToSeller)
	assert.True(t, res.Summary.TotalCommission.Equal(dec("1.00")))
}

func TestCheckoutAppliesDefaultTerms(t *testing.T) {
	// line carries no commission terms; service falls back to configured defaults
	repo := &stubRepo{
		order:   testOrder("20.00"),
		created: []CreatedLine{sellerLine("ord-1", 7, 2, "10.00", nil, nil)},
	}
	svc := NewService(repo, nil, metrics.New(), dec("0.10"), dec("0.50"))

	res, err := svc.Checkout(context.Background(), 3, CheckoutInput{})
	require.NoError(t, err)

	require.Len(t, res.Summary.SellerLines, 1)
	assert.True(t, res.Summary.TotalCommission.Equal(dec("2.00")))
	assert.True(t, res.Summary.TotalPlatformFees.Equal(dec("1.00")))
}

func TestCheckoutPlatformItemsEarnNoCommission(t *testing.T) {
	repo := &stubRepo{
		order: testOrder("15.00"),
		created: []CreatedLine{{
			Line: Line{OrderID: "ord-1", ItemID: "item-p", Quantity: 3, PriceAtOrder: dec("5.00"), ItemTitle: "Funda"},
		}},
	}
	svc := NewService(repo, nil, metrics.New(), dec("0.10"), dec("0.50"))

	res, err := svc.Checkout(context.Background(), 3, CheckoutInput{})
	require.NoError(t, err)

	assert.Empty(t, res.Summary.SellerLines)
	assert.True(t, res.Summary.TotalCommission.IsZero())
	assert.True(t, res.Summary.TotalPlatformFees.IsZero())
	assert.Nil(t, res.Sellers)
}

func TestCheckoutStockConflictCountsMetric(t *testing.T) {
	m := metrics.New()
	repo := &stubRepo{createErr: &LineError{
		ItemID: "item-a", Title: "Cafetera",
		Violations: []catalog.Violation{catalog.ViolationInsufficientStock},
	}}
	svc := NewService(repo, nil, m, dec("0.10"), dec("0.00"))

	_, err := svc.Checkout(context.Background(), 3, CheckoutInput{})
	var le *LineError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StockConflicts))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.OrdersCreated))
}

func TestCheckoutEmptyCart(t *testing.T) {
	repo := &stubRepo{createErr: ErrEmptyCart}
	svc := NewService(repo, nil, metrics.New(), dec("0.10"), dec("0.00"))

	_, err := svc.Checkout(context.Background(), 3, CheckoutInput{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutResolvesSellerNames(t *testing.T) {
	catalogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sellers/7" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(SellerDTO{ID: 7, DisplayName: "Taller Lopez"})
	}))
	defer catalogSrv.Close()

	repo := &stubRepo{
		order:   testOrder("10.00"),
		created: []CreatedLine{sellerLine("ord-1", 7, 1, "10.00", strp("0.10"), nil)},
	}
	svc := NewService(repo, NewExt(catalogSrv.URL), metrics.New(), dec("0.10"), dec("0.00"))

	res, err := svc.Checkout(context.Background(), 3, CheckoutInput{})
	require.NoError(t, err)
	assert.Equal(t, "Taller Lopez", res.Sellers[7])
}

func TestCancel(t *testing.T) {
	m := metrics.New()
	repo := &stubRepo{order: testOrder("10.00")}
	svc := NewService(repo, nil, m, dec("0.10"), dec("0.00"))

	o, err := svc.Cancel(context.Background(), 3, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrdersCancelled))
}

func TestCancelRejectedStateError(t *testing.T) {
	repo := &stubRepo{order: testOrder("10.00"), cancelErr: ErrInvalidTransition}
	svc := NewService(repo, nil, metrics.New(), dec("0.10"), dec("0.00"))

	_, err := svc.Cancel(context.Background(), 3, "ord-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListNeverReturnsNil(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, metrics.New(), dec("0.10"), dec("0.00"))

	orders, err := svc.List(context.Background(), 99, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

package order

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
	"github.com/MikeMC777/mercado-mp/internal/commission"
	"github.com/MikeMC777/mercado-mp/internal/metrics"
)

// CheckoutResult is the created order plus the derived marketplace view.
// The summary is computed from terms captured inside the transaction and
// is never persisted.
type CheckoutResult struct {
	Order   *Order             `json:"order"`
	Lines   []Line             `json:"lines"`
	Summary commission.Summary `json:"marketplace_summary"`
	// Sellers maps seller id to display name, filled best-effort from the
	// catalog collaborator after commit.
	Sellers map[int64]string `json:"sellers,omitempty"`
}

type Service struct {
	repo        Repository
	ext         *Ext
	m           *metrics.Metrics
	defaultRate decimal.Decimal
	defaultFee  decimal.Decimal
}

// NewService wires the coordinator. ext may be nil when no catalog
// collaborator is configured; summaries then carry ids only.
func NewService(repo Repository, ext *Ext, m *metrics.Metrics, defaultRate, defaultFee decimal.Decimal) *Service {
	return &Service{repo: repo, ext: ext, m: m, defaultRate: defaultRate, defaultFee: defaultFee}
}

func (s *Service) Checkout(ctx context.Context, buyerID int64, in CheckoutInput) (*CheckoutResult, error) {
	o, created, err := s.repo.CreateFromCart(ctx, buyerID, in)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			log.Printf("[order] ERROR checkout buyer=%d: %v", buyerID, err)
		}
		if stockConflict(err) {
			s.m.StockConflicts.Inc()
		}
		return nil, err
	}
	s.m.OrdersCreated.Inc()
	log.Printf("[order] created %s buyer=%d lines=%d total=%s", o.Number, buyerID, len(created), o.Total)

	res := &CheckoutResult{Order: o, Lines: make([]Line, 0, len(created))}
	revs := make([]commission.LineRevenue, 0, len(created))
	for _, cl := range created {
		res.Lines = append(res.Lines, cl.Line)
		revs = append(revs, commission.LineRevenue{
			ItemID:   cl.ItemID,
			SellerID: cl.SellerID,
			Split: commission.Calculate(cl.Quantity, cl.PriceAtOrder,
				orDefault(cl.CommissionRate, s.defaultRate),
				orDefault(cl.PlatformFee, s.defaultFee),
				cl.SellerID != nil),
		})
	}
	res.Summary = commission.Summarize(revs)
	res.Sellers = s.sellerNames(ctx, res.Summary.SellerLines)
	return res, nil
}

func (s *Service) Cancel(ctx context.Context, buyerID int64, orderID string) (*Order, error) {
	o, err := s.repo.Cancel(ctx, buyerID, orderID)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			log.Printf("[order] ERROR cancel order=%s: %v", orderID, err)
		}
		return nil, err
	}
	s.m.OrdersCancelled.Inc()
	log.Printf("[order] cancelled %s buyer=%d", o.Number, buyerID)
	return o, nil
}

func (s *Service) UpdateStatus(ctx context.Context, orderID, target string) (*Order, error) {
	o, err := s.repo.UpdateStatus(ctx, orderID, target)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			log.Printf("[order] ERROR status update order=%s: %v", orderID, err)
		}
		return nil, err
	}
	if target == StatusCancelled {
		s.m.OrdersCancelled.Inc()
	}
	log.Printf("[order] %s -> %s", o.Number, target)
	return o, nil
}

func (s *Service) Get(ctx context.Context, buyerID int64, orderID string) (*Order, []Line, error) {
	return s.repo.GetByID(ctx, buyerID, orderID)
}

func (s *Service) List(ctx context.Context, buyerID int64, limit, offset int) ([]Order, error) {
	orders, err := s.repo.ListByBuyer(ctx, buyerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// sellerNames resolves display names after commit; lookup failures only
// cost the name, never the order.
func (s *Service) sellerNames(ctx context.Context, lines []commission.LineRevenue) map[int64]string {
	if s.ext == nil || len(lines) == 0 {
		return nil
	}
	names := map[int64]string{}
	for _, l := range lines {
		if l.SellerID == nil {
			continue
		}
		if _, done := names[*l.SellerID]; done {
			continue
		}
		seller, err := s.ext.FetchSeller(ctx, *l.SellerID)
		if err != nil {
			log.Printf("[order] seller %d lookup failed: %v", *l.SellerID, err)
			continue
		}
		names[seller.ID] = seller.DisplayName
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

func stockConflict(err error) bool {
	if errors.Is(err, ErrInsufficientStock) {
		return true
	}
	var le *LineError
	return errors.As(err, &le) && le.HasViolation(catalog.ViolationInsufficientStock)
}

func orDefault(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v != nil {
		return *v
	}
	return def
}

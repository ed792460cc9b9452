package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("item not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (*Item, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, title, price::text, stock_quantity, seller_id,
		       is_active, is_approved, item_status,
		       commission_rate::text, platform_fee::text,
		       category, created_at, updated_at
		FROM catalog_items WHERE id=$1
	`, id)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return it, nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var (
		it        Item
		price     string
		status    string
		rate, fee *string
	)
	if err := row.Scan(&it.ID, &it.Title, &price, &it.StockQuantity, &it.SellerID,
		&it.IsActive, &it.IsApproved, &status, &rate, &fee,
		&it.Category, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if it.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	it.Status = ItemStatus(status)
	if it.CommissionRate, err = parseOptional(rate); err != nil {
		return nil, err
	}
	if it.PlatformFee, err = parseOptional(fee); err != nil {
		return nil, err
	}
	return &it, nil
}

func parseOptional(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

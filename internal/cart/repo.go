package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
)

type Repository interface {
	Get(ctx context.Context, buyerID int64, itemID string) (*Line, error)
	Put(ctx context.Context, l *Line) error
	Delete(ctx context.Context, buyerID int64, itemID string) (bool, error)
	Clear(ctx context.Context, buyerID int64) (int64, error)
	DeleteMany(ctx context.Context, buyerID int64, itemIDs []string) (int64, error)
	ListWithItems(ctx context.Context, buyerID int64) ([]LineWithItem, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Get(ctx context.Context, buyerID int64, itemID string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var l Line
	err := r.db.QueryRow(ctx, `
		SELECT buyer_id, item_id, quantity, added_at
		FROM cart_lines WHERE buyer_id=$1 AND item_id=$2
	`, buyerID, itemID).Scan(&l.BuyerID, &l.ItemID, &l.Quantity, &l.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Put upserts the line with an absolute quantity; merge math happens in the
// service before calling.
func (r *PGRepo) Put(ctx context.Context, l *Line) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_lines (buyer_id, item_id, quantity, added_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (buyer_id, item_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, l.BuyerID, l.ItemID, l.Quantity, l.AddedAt)
	return err
}

func (r *PGRepo) Delete(ctx context.Context, buyerID int64, itemID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		DELETE FROM cart_lines WHERE buyer_id=$1 AND item_id=$2
	`, buyerID, itemID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepo) Clear(ctx context.Context, buyerID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE buyer_id=$1`, buyerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepo) DeleteMany(ctx context.Context, buyerID int64, itemIDs []string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		DELETE FROM cart_lines WHERE buyer_id=$1 AND item_id = ANY($2)
	`, buyerID, itemIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepo) ListWithItems(ctx context.Context, buyerID int64) ([]LineWithItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT cl.buyer_id, cl.item_id, cl.quantity, cl.added_at,
		       i.id, i.title, i.price::text, i.stock_quantity, i.seller_id,
		       i.is_active, i.is_approved, i.item_status,
		       i.commission_rate::text, i.platform_fee::text,
		       i.category, i.created_at, i.updated_at
		FROM cart_lines cl
		JOIN catalog_items i ON i.id = cl.item_id
		WHERE cl.buyer_id=$1
		ORDER BY cl.added_at
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineWithItem
	for rows.Next() {
		var (
			lw        LineWithItem
			price     string
			status    string
			rate, fee *string
		)
		if err := rows.Scan(&lw.BuyerID, &lw.ItemID, &lw.Quantity, &lw.AddedAt,
			&lw.Item.ID, &lw.Item.Title, &price, &lw.Item.StockQuantity, &lw.Item.SellerID,
			&lw.Item.IsActive, &lw.Item.IsApproved, &status, &rate, &fee,
			&lw.Item.Category, &lw.Item.CreatedAt, &lw.Item.UpdatedAt); err != nil {
			return nil, err
		}
		if lw.Item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		lw.Item.Status = catalog.ItemStatus(status)
		if rate != nil {
			d, err := decimal.NewFromString(*rate)
			if err != nil {
				return nil, err
			}
			lw.Item.CommissionRate = &d
		}
		if fee != nil {
			d, err := decimal.NewFromString(*fee)
			if err != nil {
				return nil, err
			}
			lw.Item.PlatformFee = &d
		}
		out = append(out, lw)
	}
	return out, rows.Err()
}

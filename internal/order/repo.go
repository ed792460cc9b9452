package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mercado-mp/internal/catalog"
	"github.com/MikeMC777/mercado-mp/internal/fieldcrypt"
)

type Repository interface {
	CreateFromCart(ctx context.Context, buyerID int64, in CheckoutInput) (*Order, []CreatedLine, error)
	GetByID(ctx context.Context, buyerID int64, orderID string) (*Order, []Line, error)
	ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]Order, error)
	Cancel(ctx context.Context, buyerID int64, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID, target string) (*Order, error)
}

// PGRepo runs every multi-row mutation inside one serializable transaction.
// The codec encodes addresses and notes on write and decodes them on read;
// nothing inside the transactions branches on encryption.
type PGRepo struct {
	db    *pgxpool.Pool
	codec fieldcrypt.Codec
}

func NewPGRepo(db *pgxpool.Pool, codec fieldcrypt.Codec) *PGRepo {
	return &PGRepo{db: db, codec: codec}
}

// checkoutLine is a cart line joined with its locked item row.
type checkoutLine struct {
	quantity int
	item     catalog.Item
}

// CreateFromCart converts the buyer's whole cart into an order. Cart lines,
// item stock, the order and its lines commit together or not at all. Item
// rows are locked for the duration, and the stock decrement re-checks the
// available quantity in the same statement, so two buyers cannot both win
// the last unit.
func (r *PGRepo) CreateFromCart(ctx context.Context, buyerID int64, in CheckoutInput) (*Order, []CreatedLine, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines, err := loadCartForUpdate(ctx, tx, buyerID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, ErrEmptyCart
	}
	for _, cl := range lines {
		it := cl.item
		if viols := catalog.CheckLine(&it, buyerID, cl.quantity); len(viols) > 0 {
			return nil, nil, &LineError{ItemID: it.ID, Title: it.Title, Violations: viols}
		}
	}

	statusID, err := statusIDByName(ctx, tx, StatusPending)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		Number:          newOrderNumber(now),
		BuyerID:         buyerID,
		StatusID:        statusID,
		Status:          StatusPending,
		Total:           decimal.Zero,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Notes:           in.Notes,
		OrderDate:       now,
		UpdatedAt:       now,
	}
	created := make([]CreatedLine, 0, len(lines))
	for _, cl := range lines {
		o.Total = o.Total.Add(cl.item.Price.Mul(decimal.NewFromInt(int64(cl.quantity))))
	}

	ship, err := r.codec.Encode(in.ShippingAddress)
	if err != nil {
		return nil, nil, err
	}
	bill, err := r.codec.Encode(in.BillingAddress)
	if err != nil {
		return nil, nil, err
	}
	notes, err := r.codec.Encode(in.Notes)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, buyer_id, status_id, total,
		                    shipping_address, billing_address, notes, order_date, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
	`, o.ID, o.Number, o.BuyerID, o.StatusID, o.Total.String(), ship, bill, notes, now); err != nil {
		return nil, nil, err
	}

	for _, cl := range lines {
		it := cl.item
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, item_id, quantity, price_at_order, item_title)
			VALUES ($1,$2,$3,$4,$5)
		`, o.ID, it.ID, cl.quantity, it.Price.String(), it.Title); err != nil {
			return nil, nil, err
		}

		// guarded decrement: quantity check and write are one atomic statement
		tag, err := tx.Exec(ctx, `
			UPDATE catalog_items
			SET stock_quantity = stock_quantity - $2, updated_at = NOW()
			WHERE id = $1 AND stock_quantity >= $2
		`, it.ID, cl.quantity)
		if err != nil {
			return nil, nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrInsufficientStock, it.Title)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE catalog_items SET item_status = $2, updated_at = NOW()
			WHERE id = $1 AND stock_quantity = 0
		`, it.ID, string(catalog.StatusSold)); err != nil {
			return nil, nil, err
		}

		created = append(created, CreatedLine{
			Line: Line{
				OrderID:      o.ID,
				ItemID:       it.ID,
				Quantity:     cl.quantity,
				PriceAtOrder: it.Price,
				ItemTitle:    it.Title,
			},
			SellerID:       it.SellerID,
			CommissionRate: it.CommissionRate,
			PlatformFee:    it.PlatformFee,
		})
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE buyer_id=$1`, buyerID); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return o, created, nil
}

// Cancel restores stock for every line and moves the order to Cancelled,
// all in one transaction. Restoration adds back the ordered quantity, never
// overwrites absolute stock, so interim catalog edits survive.
func (r *PGRepo) Cancel(ctx context.Context, buyerID int64, orderID string) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, ErrNotFound
	}
	if !Cancellable(o.Status) {
		return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, o.Status)
	}
	if err := restoreStock(ctx, tx, orderID); err != nil {
		return nil, err
	}
	if err := r.setStatus(ctx, tx, o, StatusCancelled); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus applies one lifecycle transition. The target must exist in
// the statuses table and be active, and must be reachable from the current
// state. Cancelled restores stock; Delivered marks seller-owned line items
// Sold (idempotent).
func (r *PGRepo) UpdateStatus(ctx context.Context, orderID, target string) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	var active bool
	err = tx.QueryRow(ctx, `SELECT is_active FROM statuses WHERE name=$1`, target).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrStatusNotFound, target)
	}
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: %q", ErrStatusNotFound, target)
	}
	if !CanTransition(o.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	switch target {
	case StatusCancelled:
		if err := restoreStock(ctx, tx, orderID); err != nil {
			return nil, err
		}
	case StatusDelivered:
		if _, err := tx.Exec(ctx, `
			UPDATE catalog_items SET item_status = $2, updated_at = NOW()
			WHERE seller_id IS NOT NULL
			  AND id IN (SELECT item_id FROM order_lines WHERE order_id = $1)
		`, orderID, string(catalog.StatusSold)); err != nil {
			return nil, err
		}
	}

	if err := r.setStatus(ctx, tx, o, target); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PGRepo) GetByID(ctx context.Context, buyerID int64, orderID string) (*Order, []Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT o.id, o.order_number, o.buyer_id, o.status_id, s.name, o.total::text,
		       o.shipping_address, o.billing_address, o.notes, o.order_date, o.updated_at
		FROM orders o JOIN statuses s ON s.id = o.status_id
		WHERE o.id=$1 AND o.buyer_id=$2
	`, orderID, buyerID)
	o, err := r.scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT order_id, item_id, quantity, price_at_order::text, item_title
		FROM order_lines WHERE order_id=$1 ORDER BY item_id
	`, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var (
			l     Line
			price string
		)
		if err := rows.Scan(&l.OrderID, &l.ItemID, &l.Quantity, &price, &l.ItemTitle); err != nil {
			return nil, nil, err
		}
		if l.PriceAtOrder, err = decimal.NewFromString(price); err != nil {
			return nil, nil, err
		}
		lines = append(lines, l)
	}
	return o, lines, rows.Err()
}

func (r *PGRepo) ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT o.id, o.order_number, o.buyer_id, o.status_id, s.name, o.total::text,
		       o.shipping_address, o.billing_address, o.notes, o.order_date, o.updated_at
		FROM orders o JOIN statuses s ON s.id = o.status_id
		WHERE o.buyer_id=$1
		ORDER BY o.order_date DESC LIMIT $2 OFFSET $3
	`, buyerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// lockOrder loads the order row FOR UPDATE with its current status name.
func (r *PGRepo) lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*Order, error) {
	row := tx.QueryRow(ctx, `
		SELECT o.id, o.order_number, o.buyer_id, o.status_id, s.name, o.total::text,
		       o.shipping_address, o.billing_address, o.notes, o.order_date, o.updated_at
		FROM orders o JOIN statuses s ON s.id = o.status_id
		WHERE o.id=$1
		FOR UPDATE OF o
	`, orderID)
	o, err := r.scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (r *PGRepo) scanOrder(row pgx.Row) (*Order, error) {
	var (
		o     Order
		total string
	)
	if err := row.Scan(&o.ID, &o.Number, &o.BuyerID, &o.StatusID, &o.Status, &total,
		&o.ShippingAddress, &o.BillingAddress, &o.Notes, &o.OrderDate, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if o.ShippingAddress, err = r.codec.Decode(o.ShippingAddress); err != nil {
		return nil, err
	}
	if o.BillingAddress, err = r.codec.Decode(o.BillingAddress); err != nil {
		return nil, err
	}
	if o.Notes, err = r.codec.Decode(o.Notes); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepo) setStatus(ctx context.Context, tx pgx.Tx, o *Order, target string) error {
	statusID, err := statusIDByName(ctx, tx, target)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status_id=$2, updated_at=$3 WHERE id=$1
	`, o.ID, statusID, now); err != nil {
		return err
	}
	o.StatusID = statusID
	o.Status = target
	o.UpdatedAt = now
	return nil
}

func statusIDByName(ctx context.Context, tx pgx.Tx, name string) (int, error) {
	var id int
	err := tx.QueryRow(ctx, `SELECT id FROM statuses WHERE name=$1 AND is_active`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrConfiguration, name)
	}
	return id, err
}

// loadCartForUpdate joins the buyer's cart with item rows and locks the
// items. Stable item-id order keeps concurrent checkouts from deadlocking
// on overlapping carts.
func loadCartForUpdate(ctx context.Context, tx pgx.Tx, buyerID int64) ([]checkoutLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT cl.quantity,
		       i.id, i.title, i.price::text, i.stock_quantity, i.seller_id,
		       i.is_active, i.is_approved, i.item_status,
		       i.commission_rate::text, i.platform_fee::text
		FROM cart_lines cl
		JOIN catalog_items i ON i.id = cl.item_id
		WHERE cl.buyer_id=$1
		ORDER BY i.id
		FOR UPDATE OF i
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkoutLine
	for rows.Next() {
		var (
			cl        checkoutLine
			price     string
			status    string
			rate, fee *string
		)
		if err := rows.Scan(&cl.quantity,
			&cl.item.ID, &cl.item.Title, &price, &cl.item.StockQuantity, &cl.item.SellerID,
			&cl.item.IsActive, &cl.item.IsApproved, &status, &rate, &fee); err != nil {
			return nil, err
		}
		if cl.item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		cl.item.Status = catalog.ItemStatus(status)
		if rate != nil {
			d, err := decimal.NewFromString(*rate)
			if err != nil {
				return nil, err
			}
			cl.item.CommissionRate = &d
		}
		if fee != nil {
			d, err := decimal.NewFromString(*fee)
			if err != nil {
				return nil, err
			}
			cl.item.PlatformFee = &d
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

// restoreStock is the compensating half of CreateFromCart: it adds each
// line's quantity back and revives Sold items that have stock again.
func restoreStock(ctx context.Context, tx pgx.Tx, orderID string) error {
	rows, err := tx.Query(ctx, `
		SELECT item_id, quantity FROM order_lines WHERE order_id=$1 ORDER BY item_id
	`, orderID)
	if err != nil {
		return err
	}
	type restore struct {
		itemID string
		qty    int
	}
	var restores []restore
	for rows.Next() {
		var re restore
		if err := rows.Scan(&re.itemID, &re.qty); err != nil {
			rows.Close()
			return err
		}
		restores = append(restores, re)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, re := range restores {
		if _, err := tx.Exec(ctx, `
			UPDATE catalog_items
			SET stock_quantity = stock_quantity + $2, updated_at = NOW()
			WHERE id = $1
		`, re.itemID, re.qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE catalog_items SET item_status = $2, updated_at = NOW()
			WHERE id = $1 AND item_status = $3 AND stock_quantity > 0
		`, re.itemID, string(catalog.StatusActive), string(catalog.StatusSold)); err != nil {
			return err
		}
	}
	return nil
}

func newOrderNumber(t time.Time) string {
	return fmt.Sprintf("MP-%s-%s", t.Format("20060102"),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))
}

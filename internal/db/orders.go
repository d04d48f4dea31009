package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/promoshop/promoshop/internal/models"
)

type Order = models.Order

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrOrderNotFound           = errors.New("order not found")
)

const orderColumns = `
	id, customer_name, phone, address,
	campaign_id, campaign_title, campaign_slug,
	unit_price::text, original_price::text, quantity,
	status, payment_status, payment_method, notes,
	created_at, updated_at`

type OrderStore struct {
	conn DBTX
}

func NewOrderStore(conn DBTX) *OrderStore {
	return &OrderStore{conn: conn}
}

func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	if order == nil {
		return errors.New("order is required")
	}

	query := `
		INSERT INTO orders (
			id, customer_name, phone, address,
			campaign_id, campaign_title, campaign_slug,
			unit_price, original_price, quantity,
			status, payment_status, payment_method, notes,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8::text::numeric, $9::text::numeric, $10,
			$11, $12, $13, $14,
			$15, $16
		)
	`
	_, err := s.conn.Exec(ctx, query,
		order.ID, order.CustomerName, order.Phone, order.Address,
		order.CampaignID, order.CampaignTitle, order.CampaignSlug,
		order.UnitPrice.String(), order.OriginalPrice.String(), order.Quantity,
		string(order.Status), string(order.PaymentStatus), order.PaymentMethod, order.Notes,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(s.conn.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	return order, nil
}

// List returns one page of orders, newest first, plus the total row count.
func (s *OrderStore) List(ctx context.Context, limit, offset int) ([]*Order, int, error) {
	if limit <= 0 {
		return nil, 0, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("offset must not be negative, got %d", offset)
	}

	var total int
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := s.conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus moves an order from one status to another only if it is
// still in the expected prior status.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, from, to models.OrderStatus, now time.Time) (*Order, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + orderColumns
	order, err := scanOrder(s.conn.QueryRow(ctx, query, string(to), now.UTC(), orderID, string(from)))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	current, err := s.currentStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: expected %s, found %s", ErrInvalidStatusTransition, from, current)
}

func (s *OrderStore) UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus, now time.Time) (*Order, error) {
	query := `
		UPDATE orders
		SET payment_status = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + orderColumns
	order, err := scanOrder(s.conn.QueryRow(ctx, query, string(status), now.UTC(), orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	return order, nil
}

func (s *OrderStore) currentStatus(ctx context.Context, orderID string) (string, error) {
	var status string
	err := s.conn.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return "", fmt.Errorf("failed to read order status: %w", err)
	}
	return status, nil
}

type orderRow struct {
	ID            string
	CustomerName  string
	Phone         string
	Address       string
	CampaignID    string
	CampaignTitle string
	CampaignSlug  string
	UnitPrice     string
	OriginalPrice string
	Quantity      int32
	Status        string
	PaymentStatus string
	PaymentMethod string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func scanOrder(row pgx.Row) (*Order, error) {
	var r orderRow
	err := row.Scan(
		&r.ID, &r.CustomerName, &r.Phone, &r.Address,
		&r.CampaignID, &r.CampaignTitle, &r.CampaignSlug,
		&r.UnitPrice, &r.OriginalPrice, &r.Quantity,
		&r.Status, &r.PaymentStatus, &r.PaymentMethod, &r.Notes,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rowToOrder(r)
}

func rowToOrder(row orderRow) (*Order, error) {
	unitPrice, err := decimal.NewFromString(row.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s: invalid unit price %q: %w", row.ID, row.UnitPrice, err)
	}
	originalPrice, err := decimal.NewFromString(row.OriginalPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s: invalid original price %q: %w", row.ID, row.OriginalPrice, err)
	}

	status, ok := models.ParseOrderStatus(row.Status)
	if !ok {
		return nil, fmt.Errorf("order %s: unknown status %q", row.ID, row.Status)
	}
	paymentStatus, ok := models.ParsePaymentStatus(row.PaymentStatus)
	if !ok {
		return nil, fmt.Errorf("order %s: unknown payment status %q", row.ID, row.PaymentStatus)
	}

	return &Order{
		ID:            row.ID,
		CustomerName:  row.CustomerName,
		Phone:         row.Phone,
		Address:       row.Address,
		CampaignID:    row.CampaignID,
		CampaignTitle: row.CampaignTitle,
		CampaignSlug:  row.CampaignSlug,
		UnitPrice:     unitPrice,
		OriginalPrice: originalPrice,
		Quantity:      int(row.Quantity),
		Status:        status,
		PaymentStatus: paymentStatus,
		PaymentMethod: row.PaymentMethod,
		Notes:         row.Notes,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}, nil
}

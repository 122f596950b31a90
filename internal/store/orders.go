package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"
)

// CreateOrder records a completed order. The session marker carries a
// unique constraint so a replayed completion cannot insert twice.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (session_marker, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_marker) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, order, query,
		order.SessionMarker, order.AmountCents, order.Currency, order.Status)
	if err == sql.ErrNoRows {
		// Conflict: the marker was already recorded. Load the existing row.
		existing, lookupErr := s.GetOrderByMarker(ctx, order.SessionMarker)
		if lookupErr != nil {
			return lookupErr
		}
		*order = *existing
		return nil
	}
	return err
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByMarker retrieves an order by its session marker
func (s *Store) GetOrderByMarker(ctx context.Context, marker string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE session_marker = $1", marker)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order for marker %s: %w", marker, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// IsMarkerProcessed checks whether a completed-order marker already
// triggered a cart clear (recovery.MarkerStore).
func (s *Store) IsMarkerProcessed(ctx context.Context, marker string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_markers WHERE marker = $1)", marker)
	return exists, err
}

// MarkProcessed records a completed-order marker as handled.
func (s *Store) MarkProcessed(ctx context.Context, marker string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_markers (marker) VALUES ($1) ON CONFLICT (marker) DO NOTHING",
		marker)
	return err
}

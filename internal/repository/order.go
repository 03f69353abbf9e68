package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/GophShop/internal/models"
)

// ErrOutOfStock is returned when an order asks for more units than remain.
var ErrOutOfStock = errors.New("out of stock")

// PostgresOrderRepository places orders.
type PostgresOrderRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository using the provided *sql.DB.
func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{DB: db}
}

// CreateOrder stores the order, takes its items out of stock and empties
// the user's cart in a single transaction. Nothing is written when any item
// lacks stock.
func (s *PostgresOrderRepository) CreateOrder(ctx context.Context, o models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, it := range o.Items {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
			it.ProductID, it.Quantity)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("%w: %s", ErrOutOfStock, it.Title)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, method, address, phone, items, sub_total, paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.UserID, o.Method, o.Address, o.Phone, items, o.Total, o.Paid)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, o.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

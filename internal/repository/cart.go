package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/atinyakov/GophShop/internal/models"
)

// PostgresCartRepository persists cart lines and delivery addresses.
type PostgresCartRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresCartRepository creates a new PostgresCartRepository using the provided *sql.DB.
func NewPostgresCartRepository(db *sql.DB) *PostgresCartRepository {
	return &PostgresCartRepository{DB: db}
}

const cartLineQuery = `
	SELECT c.id, c.quantity,
		p.id, p.title, p.about, p.price, p.stock, p.category, p.images, p.created_at
	FROM cart_lines c JOIN products p ON p.id = c.product_id`

func scanCartLine(row rowScanner) (*models.CartLine, error) {
	var (
		l    models.CartLine
		urls []string
	)
	p := &l.Product
	if err := row.Scan(&l.ID, &l.Quantity,
		&p.ID, &p.Title, &p.About, &p.Price, &p.Stock, &p.Category, pq.Array(&urls), &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Images = make([]models.Image, 0, len(urls))
	for _, u := range urls {
		p.Images = append(p.Images, models.Image{URL: u})
	}
	return &l, nil
}

// CartLines returns the user's cart in insertion order.
func (s *PostgresCartRepository) CartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	rows, err := s.DB.QueryContext(ctx, cartLineQuery+` WHERE c.user_id = $1 ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("CartLines: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

// CartLineByID loads one of the user's cart lines together with its product.
func (s *PostgresCartRepository) CartLineByID(ctx context.Context, userID, lineID string) (*models.CartLine, error) {
	row := s.DB.QueryRowContext(ctx, cartLineQuery+` WHERE c.user_id = $1 AND c.id = $2`, userID, lineID)
	l, err := scanCartLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("CartLineByID: %w", err)
	}
	return l, nil
}

// AddCartLine adds quantity units of a product, merging with an existing
// line for the same product. It returns the resulting line quantity.
func (s *PostgresCartRepository) AddCartLine(ctx context.Context, userID, productID string, quantity int) (int, error) {
	var total int
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO cart_lines (id, user_id, product_id, quantity) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING quantity
	`, uuid.NewString(), userID, productID, quantity).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("AddCartLine: %w", err)
	}
	return total, nil
}

// UpdateCartLine sets the quantity of one of the user's cart lines.
func (s *PostgresCartRepository) UpdateCartLine(ctx context.Context, userID, lineID string, quantity int) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE cart_lines SET quantity = $3 WHERE user_id = $1 AND id = $2`, userID, lineID, quantity)
	if err != nil {
		return fmt.Errorf("UpdateCartLine: %w", err)
	}
	return expectRow(res)
}

// DeleteCartLine removes one of the user's cart lines.
func (s *PostgresCartRepository) DeleteCartLine(ctx context.Context, userID, lineID string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = $1 AND id = $2`, userID, lineID)
	if err != nil {
		return fmt.Errorf("DeleteCartLine: %w", err)
	}
	return expectRow(res)
}

// AddressByID loads one of the user's saved addresses.
func (s *PostgresCartRepository) AddressByID(ctx context.Context, userID, id string) (*models.Address, error) {
	var a models.Address
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, address, phone FROM addresses WHERE user_id = $1 AND id = $2`, userID, id,
	).Scan(&a.ID, &a.Address, &a.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("AddressByID: %w", err)
	}
	return &a, nil
}

// CreateAddress saves a new address for the user and returns it with its id.
func (s *PostgresCartRepository) CreateAddress(ctx context.Context, userID string, a models.Address) (*models.Address, error) {
	a.ID = uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO addresses (id, user_id, address, phone) VALUES ($1, $2, $3, $4)`,
		a.ID, userID, a.Address, a.Phone)
	if err != nil {
		return nil, fmt.Errorf("CreateAddress: %w", err)
	}
	return &a, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/GophShop/internal/models"
)

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Search   string
	Category string
	// Sort is "asc" or "desc" by price; anything else lists newest first.
	Sort   string
	Limit  int
	Offset int
}

// PostgresCatalogRepository reads and updates products.
type PostgresCatalogRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresCatalogRepository creates a new PostgresCatalogRepository using the provided *sql.DB.
func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{DB: db}
}

const productColumns = `id, title, about, price, stock, category, images, created_at`

const productFilter = `
	WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')
	AND ($2 = '' OR category = $2)`

func orderBy(sort string) string {
	switch sort {
	case "asc":
		return ` ORDER BY price ASC, created_at DESC`
	case "desc":
		return ` ORDER BY price DESC, created_at DESC`
	default:
		return ` ORDER BY created_at DESC`
	}
}

// ListProducts returns one page of matching products and the number of
// products matching the filter overall.
func (s *PostgresCatalogRepository) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int, error) {
	var total int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products`+productFilter, f.Search, f.Category,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListProducts count: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products`+productFilter+orderBy(f.Sort)+` LIMIT $3 OFFSET $4`,
		f.Search, f.Category, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListProducts: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// LatestProducts returns the n most recently created products.
func (s *PostgresCatalogRepository) LatestProducts(ctx context.Context, n int) ([]models.Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("LatestProducts: %w", err)
	}
	return scanProducts(rows)
}

// Categories lists the distinct product categories in alphabetical order.
func (s *PostgresCatalogRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("Categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ProductByID loads a single product.
func (s *PostgresCatalogRepository) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ProductByID: %w", err)
	}
	return p, nil
}

// RelatedProducts returns up to n other products from category.
func (s *PostgresCatalogRepository) RelatedProducts(ctx context.Context, category, excludeID string, n int) ([]models.Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE category = $1 AND id <> $2 ORDER BY created_at DESC LIMIT $3`,
		category, excludeID, n)
	if err != nil {
		return nil, fmt.Errorf("RelatedProducts: %w", err)
	}
	return scanProducts(rows)
}

// UpdateProduct overwrites the editable fields of a product.
func (s *PostgresCatalogRepository) UpdateProduct(ctx context.Context, id string, u models.ProductUpdate) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE products SET title = $2, about = $3, price = $4, stock = $5, category = $6
		WHERE id = $1
	`, id, u.Title, u.About, u.Price, u.Stock, u.Category)
	if err != nil {
		return fmt.Errorf("UpdateProduct: %w", err)
	}
	return expectRow(res)
}

// SetProductImages replaces the image URLs of a product.
func (s *PostgresCatalogRepository) SetProductImages(ctx context.Context, id string, urls []string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE products SET images = $2 WHERE id = $1`, id, pq.Array(urls))
	if err != nil {
		return fmt.Errorf("SetProductImages: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p    models.Product
		urls []string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.About, &p.Price, &p.Stock, &p.Category, pq.Array(&urls), &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Images = make([]models.Image, 0, len(urls))
	for _, u := range urls {
		p.Images = append(p.Images, models.Image{URL: u})
	}
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

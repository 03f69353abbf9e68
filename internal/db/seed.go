package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/atinyakov/GophShop/internal/models"
)

// DemoCatalog returns the products seeded into an empty sandbox database.
func DemoCatalog() []models.Product {
	p := func(title, about, price string, stock int, category string) models.Product {
		return models.Product{
			Title:    title,
			About:    about,
			Price:    decimal.RequireFromString(price),
			Stock:    stock,
			Category: category,
		}
	}
	return []models.Product{
		p("Stoneware Mug", "Hand glazed, 350 ml.", "12.00", 40, "Kitchen"),
		p("Pour-over Kettle", "Gooseneck spout, 1 l.", "39.90", 15, "Kitchen"),
		p("Chef Knife", "20 cm high-carbon steel.", "74.50", 10, "Kitchen"),
		p("Linen Apron", "Adjustable straps.", "24.00", 25, "Kitchen"),
		p("Gopher Hoodie", "Organic cotton fleece.", "49.00", 30, "Clothes"),
		p("Logo Cap", "One size.", "18.00", 50, "Clothes"),
		p("Wool Socks", "Pack of three.", "15.00", 60, "Clothes"),
		p("Rain Jacket", "Packable, taped seams.", "89.00", 12, "Clothes"),
		p("Mechanical Keyboard", "Tactile switches, USB-C.", "129.00", 8, "Electronics"),
		p("Noise Cancelling Headphones", "30 h battery.", "199.00", 6, "Electronics"),
		p("USB-C Hub", "7 ports, 100 W passthrough.", "45.00", 20, "Electronics"),
		p("Desk Lamp", "Dimmable LED.", "35.00", 18, "Electronics"),
		p("Notebook", "A5 dotted, 192 pages.", "9.50", 100, "Stationery"),
		p("Fountain Pen", "Fine nib, converter included.", "28.00", 22, "Stationery"),
		p("Sticker Pack", "Ten gopher stickers.", "5.00", 200, "Stationery"),
		p("Desk Mat", "Felt, 90 x 40 cm.", "27.00", 14, "Stationery"),
		p("Houseplant Pot", "Ceramic with drainage.", "19.00", 35, "Home"),
		p("Scented Candle", "Cedar and sage.", "16.00", 45, "Home"),
		p("Throw Blanket", "Recycled wool.", "59.00", 9, "Home"),
	}
}

// SeedCatalog inserts products when the products table is empty and reports
// how many were inserted. Creation times are spread so the newest-first order
// is deterministic.
func SeedCatalog(ctx context.Context, db *sql.DB, products []models.Product) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, title, about, price, stock, category, images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	base := time.Now().Add(-time.Duration(len(products)) * time.Minute)
	for i, p := range products {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		urls := make([]string, 0, len(p.Images))
		for _, img := range p.Images {
			urls = append(urls, img.URL)
		}
		created := base.Add(time.Duration(i) * time.Minute)
		if _, err := stmt.ExecContext(ctx, id, p.Title, p.About, p.Price, p.Stock, p.Category, pq.Array(urls), created); err != nil {
			return 0, fmt.Errorf("seed %q: %w", p.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(products), nil
}

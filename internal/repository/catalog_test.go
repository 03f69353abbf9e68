package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/models"
)

var productCols = []string{"id", "title", "about", "price", "stock", "category", "images", "created_at"}

func setupCatalogMock(t *testing.T) (*PostgresCatalogRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresCatalogRepository(db), mock
}

func TestListProducts(t *testing.T) {
	repo, mock := setupCatalogMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products`).
		WithArgs("mug", "Kitchen").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	mock.ExpectQuery(`SELECT id, title, about, price, stock, category, images, created_at FROM products.*ORDER BY price ASC.*LIMIT \$3 OFFSET \$4`).
		WithArgs("mug", "Kitchen", 8, 8).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p9", "Mug", "", "12.50", 4, "Kitchen", "{/uploads/a.png,/uploads/b.png}", now))

	products, total, err := repo.ListProducts(context.Background(), ProductFilter{
		Search: "mug", Category: "Kitchen", Sort: "asc", Limit: 8, Offset: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Mug", products[0].Title)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, []models.Image{{URL: "/uploads/a.png"}, {URL: "/uploads/b.png"}}, products[0].Images)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_CountError(t *testing.T) {
	repo, mock := setupCatalogMock(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("down"))

	_, _, err := repo.ListProducts(context.Background(), ProductFilter{Limit: 8})
	assert.Error(t, err)
}

func TestOrderBy(t *testing.T) {
	assert.Contains(t, orderBy("asc"), "price ASC")
	assert.Contains(t, orderBy("desc"), "price DESC")
	assert.Equal(t, " ORDER BY created_at DESC", orderBy(""))
	assert.Equal(t, " ORDER BY created_at DESC", orderBy("; DROP TABLE products"))
}

func TestLatestAndCategories(t *testing.T) {
	repo, mock := setupCatalogMock(t)

	mock.ExpectQuery(`FROM products ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p1", "Lamp", "", "35", 2, "Home", "{}", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT category FROM products ORDER BY category`)).
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Home").AddRow("Kitchen"))

	latest, err := repo.LatestProducts(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Empty(t, latest[0].Images)

	cats, err := repo.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Home", "Kitchen"}, cats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductByID(t *testing.T) {
	repo, mock := setupCatalogMock(t)

	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p1", "Lamp", "warm", "35", 2, "Home", "{}", time.Now()))
	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	p, err := repo.ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "warm", p.About)

	_, err = repo.ProductByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelatedProducts(t *testing.T) {
	repo, mock := setupCatalogMock(t)

	mock.ExpectQuery(`WHERE category = \$1 AND id <> \$2`).
		WithArgs("Home", "p1", 4).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p2", "Candle", "", "16", 5, "Home", "{}", time.Now()))

	related, err := repo.RelatedProducts(context.Background(), "Home", "p1", 4)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "p2", related[0].ID)
}

func TestUpdateProduct(t *testing.T) {
	repo, mock := setupCatalogMock(t)
	u := models.ProductUpdate{Title: "Lamp", Price: decimal.NewFromInt(40), Stock: 3, Category: "Home"}

	mock.ExpectExec(`UPDATE products SET title`).
		WithArgs("p1", "Lamp", "", sqlmock.AnyArg(), 3, "Home").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE products SET title`).
		WithArgs("gone", "Lamp", "", sqlmock.AnyArg(), 3, "Home").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateProduct(context.Background(), "p1", u))
	assert.ErrorIs(t, repo.UpdateProduct(context.Background(), "gone", u), ErrNotFound)
}

func TestSetProductImages(t *testing.T) {
	repo, mock := setupCatalogMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET images = $2 WHERE id = $1`)).
		WithArgs("p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetProductImages(context.Background(), "p1", []string{"/uploads/x.png"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

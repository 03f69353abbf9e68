package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/models"
)

func TestDemoCatalog(t *testing.T) {
	products := DemoCatalog()
	require.NotEmpty(t, products)

	categories := map[string]bool{}
	for _, p := range products {
		assert.NotEmpty(t, p.Title)
		assert.True(t, p.Price.IsPositive(), p.Title)
		assert.Greater(t, p.Stock, 0, p.Title)
		categories[p.Category] = true
	}
	assert.GreaterOrEqual(t, len(categories), 2)
}

func TestSeedCatalog_InsertsWhenEmpty(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	products := []models.Product{
		{ID: "p1", Title: "Mug", Price: decimal.NewFromInt(12), Stock: 3, Category: "Kitchen"},
		{Title: "Cap", Price: decimal.NewFromInt(18), Stock: 5, Category: "Clothes",
			Images: []models.Image{{URL: "/uploads/cap.png"}}},
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO products")
	prep.ExpectExec().
		WithArgs("p1", "Mug", "", sqlmock.AnyArg(), 3, "Kitchen", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "Cap", "", sqlmock.AnyArg(), 5, "Clothes", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := SeedCatalog(context.Background(), dbMock, products)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCatalog_SkipsWhenPopulated(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := SeedCatalog(context.Background(), dbMock, DemoCatalog())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCatalog_InsertFailureRollsBack(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO products").
		ExpectExec().
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err = SeedCatalog(context.Background(), dbMock, DemoCatalog()[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

package catalog

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

var productColumns = []string{
	"id", "lender_name", "product_name", "category", "country",
	"amount_min", "amount_max", "rate_min", "rate_max",
	"term_min_months", "term_max_months", "min_monthly_revenue",
	"required_documents", "excluded_industries", "active",
}

func productRow() []driverValue {
	return []driverValue{
		"prod-1", "Acme Capital", "Acme Term Loan", "term_loan", "US",
		int64(10000), int64(50000), 9.5, 24.0,
		6, 36, int64(5000),
		"{bank_statements}", "{cannabis}", true,
	}
}

type driverValue = driver.Value

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewStore(db, redisClient, 5*time.Minute, logger.NewNoOpLogger())
	return store, mock, mr
}

func TestActiveProducts_ReadsFromDatabaseAndPopulatesCache(t *testing.T) {
	store, mock, mr := newTestStore(t)

	mock.ExpectQuery("SELECT id, lender_name").
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(productRow()...))

	products, err := store.ActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "prod-1", products[0].ID)
	assert.Equal(t, models.CategoryTermLoan, products[0].Category)
	assert.Equal(t, []models.DocumentType{models.DocTypeBankStatements}, products[0].RequiredDocuments)

	assert.True(t, mr.Exists(activeProductsCacheKey))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveProducts_SecondReadServedFromCache(t *testing.T) {
	store, mock, _ := newTestStore(t)

	// Only one database round trip is expected across both calls.
	mock.ExpectQuery("SELECT id, lender_name").
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(productRow()...))

	_, err := store.ActiveProducts(context.Background())
	require.NoError(t, err)

	products, err := store.ActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "prod-1", products[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveProducts_CorruptCacheFallsBackToDatabase(t *testing.T) {
	store, mock, mr := newTestStore(t)
	require.NoError(t, mr.Set(activeProductsCacheKey, "{not json"))

	mock.ExpectQuery("SELECT id, lender_name").
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(productRow()...))

	products, err := store.ActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_RejectsInvalidProduct(t *testing.T) {
	store, mock, _ := newTestStore(t)

	err := store.Upsert(context.Background(), &models.LenderProduct{
		ID:        "prod-bad",
		Category:  models.CategoryTermLoan,
		Country:   models.CountryUS,
		AmountMin: 50000,
		AmountMax: 10000, // inverted range
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "invalid product must not reach the database")
}

func TestUpsert_WritesProduct(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectExec("INSERT INTO lender_products").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Upsert(context.Background(), &models.LenderProduct{
		ID:            "prod-1",
		LenderName:    "Acme Capital",
		ProductName:   "Acme Term Loan",
		Category:      models.CategoryTermLoan,
		Country:       models.CountryUS,
		AmountMin:     10000,
		AmountMax:     50000,
		RateMin:       9.5,
		RateMax:       24.0,
		TermMinMonths: 6,
		TermMaxMonths: 36,
		Active:        true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_UpsertsAndDeactivatesMissing(t *testing.T) {
	store, mock, mr := newTestStore(t)
	require.NoError(t, mr.Set(activeProductsCacheKey, "[]"))

	mock.ExpectExec("INSERT INTO lender_products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO lender_products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE lender_products SET active = false").WillReturnResult(sqlmock.NewResult(0, 3))

	data := []byte(`[
		{"id":"prod-1","lenderName":"Acme Capital","productName":"Term Loan","category":"term_loan","country":"US","amountMin":10000,"amountMax":50000,"rateMin":9.5,"rateMax":24,"termMinMonths":6,"termMaxMonths":36},
		{"id":"prod-2","lenderName":"North Lending","productName":"LOC","category":"line_of_credit","country":"CA","amountMin":5000,"amountMax":25000,"rateMin":8,"rateMax":19,"termMinMonths":3,"termMaxMonths":24},
		{"id":"prod-bad","lenderName":"Broken","productName":"Broken","category":"mystery","country":"US"}
	]`)

	summary, err := NewImporter(store).Import(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, int64(3), summary.Deactivated)
	require.Len(t, summary.Skipped, 1)
	assert.Contains(t, summary.Skipped[0], "prod-bad")

	assert.False(t, mr.Exists(activeProductsCacheKey), "import must invalidate the catalog cache")
	require.NoError(t, mock.ExpectationsWereMet())
}

package product_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcristin/stockguard/internal/lock/locktest"
	"github.com/pcristin/stockguard/internal/product"
	"github.com/pcristin/stockguard/internal/registry"
	"github.com/pcristin/stockguard/internal/stock/stocktest"
	"github.com/pcristin/stockguard/internal/svcerr"
)

func newHarness(t *testing.T) (*registry.Registry, sqlmock.Sqlmock, *stocktest.Fake, *product.Orchestrator) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := registry.FromDB(db)
	store := stocktest.New()
	locker := locktest.New()
	orch := product.New(reg, locker, store, time.Second)
	return reg, mock, store, orch
}

func TestCreate_HappyPath(t *testing.T) {
	_, mock, store, orch := newHarness(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	now := time.Now()
	mock.ExpectQuery("INSERT INTO products").
		WithArgs("widget", int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_minor_units", "stock", "created_at", "updated_at"}).
			AddRow(int64(1), "widget", int64(500), int64(0), now, now))

	p, err := orch.Create(context.Background(), product.Request{Name: "widget", PriceMinorUnits: 500, InitialStock: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, int64(20), store.MustRead(1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateNameSurfacesProductAlreadyExists(t *testing.T) {
	_, mock, _, orch := newHarness(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := orch.Create(context.Background(), product.Request{Name: "widget", PriceMinorUnits: 500, InitialStock: 20})
	require.Error(t, err)
	assert.Equal(t, svcerr.KindProductAlreadyExists, svcerr.KindOf(err))
}

func TestCreate_NameLockContendedSurfacesConcurrentCreationInProgress(t *testing.T) {
	_, _, _, orch := newHarness(t)

	locker := locktest.New()
	_, ok, err := locker.Acquire(context.Background(), "product:create:widget", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	contendedOrch := product.New(orch.Registry, locker, orch.Seeder, time.Second)
	_, err = contendedOrch.Create(context.Background(), product.Request{Name: "widget", PriceMinorUnits: 500, InitialStock: 20})
	require.Error(t, err)
	assert.Equal(t, svcerr.KindConcurrentCreationInProgress, svcerr.KindOf(err))
}

// TestCreate_SeedFailureCompensatesByDeletingRow covers a counter-seed
// failure after insert, which must delete the row.
func TestCreate_SeedFailureCompensatesByDeletingRow(t *testing.T) {
	_, mock, store, orch := newHarness(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	now := time.Now()
	mock.ExpectQuery("INSERT INTO products").
		WithArgs("widget", int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_minor_units", "stock", "created_at", "updated_at"}).
			AddRow(int64(7), "widget", int64(500), int64(0), now, now))

	// Pre-seed the counter under the same id so Seed reports !seeded,
	// forcing the compensation path.
	_, err := store.Seed(context.Background(), 7, 999)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM products").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = orch.Create(context.Background(), product.Request{Name: "widget", PriceMinorUnits: 500, InitialStock: 20})
	require.Error(t, err)
	assert.Equal(t, svcerr.KindInternal, svcerr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

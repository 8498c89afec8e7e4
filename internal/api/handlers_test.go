package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcristin/stockguard/internal/api"
	"github.com/pcristin/stockguard/internal/config"
	"github.com/pcristin/stockguard/internal/guard"
	"github.com/pcristin/stockguard/internal/lock/locktest"
	"github.com/pcristin/stockguard/internal/product"
	"github.com/pcristin/stockguard/internal/purchase"
	"github.com/pcristin/stockguard/internal/registry"
	"github.com/pcristin/stockguard/internal/stock/stocktest"
)

// newServer wires the full router over sqlmock and the in-memory fakes, so
// these tests cover the edge's error-kind to status-code mapping through
// the same middleware stack production runs.
func newServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock, *stocktest.Fake) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := registry.FromDB(db)
	store := stocktest.New()
	locker := locktest.New()
	g := guard.NewSingleNode(store, locker, time.Second, 3, time.Millisecond)

	cfg := config.New()
	purchaseOrch := purchase.New(reg, g)
	productOrch := product.New(reg, locker, g, time.Second)
	handler := api.NewHandler(cfg, reg, purchaseOrch, productOrch, g.Read, g.Seed)

	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, mock, store
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectProductRow(mock sqlmock.Sqlmock, id int64, price int64) {
	now := time.Now()
	mock.ExpectQuery("SELECT id, name, price_minor_units, stock, created_at, updated_at FROM products").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_minor_units", "stock", "created_at", "updated_at"}).
			AddRow(id, "widget", price, int64(10), now, now))
}

func TestCreatePurchase_UnknownProductReturns404(t *testing.T) {
	srv, mock, _ := newServer(t)

	mock.ExpectQuery("SELECT id, name, price_minor_units, stock, created_at, updated_at FROM products").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	resp := postJSON(t, srv.URL+"/purchases/", `{"buyer_id":1,"product_id":99,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "product_not_found", body.Kind)
	assert.NotEmpty(t, body.RequestID)
}

func TestCreatePurchase_InsufficientStockReturns400(t *testing.T) {
	srv, mock, store := newServer(t)
	_, err := store.Seed(context.Background(), 1, 1)
	require.NoError(t, err)

	expectProductRow(mock, 1, 2_500_000)
	mock.ExpectExec("INSERT INTO users").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

	resp := postJSON(t, srv.URL+"/purchases/", `{"buyer_id":1,"product_id":1,"quantity":5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "insufficient_stock", body.Kind)
}

func TestCreatePurchase_HappyPathReturns201(t *testing.T) {
	srv, mock, store := newServer(t)
	_, err := store.Seed(context.Background(), 1, 10)
	require.NoError(t, err)

	expectProductRow(mock, 1, 2_500_000)
	mock.ExpectExec("INSERT INTO users").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO purchases").
		WithArgs(int64(1), int64(1), int64(2), int64(5_000_000)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "buyer_id", "product_id", "quantity", "total_price_minor_units", "purchased_at"}).
			AddRow(int64(1), int64(1), int64(1), int64(2), int64(5_000_000), time.Now()))
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(int64(8), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	resp := postJSON(t, srv.URL+"/purchases/", `{"buyer_id":1,"product_id":1,"quantity":2}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body api.PurchaseResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(5_000_000), body.TotalPriceMinorUnits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePurchase_MalformedBodyReturns400(t *testing.T) {
	srv, _, _ := newServer(t)
	resp := postJSON(t, srv.URL+"/purchases/", `{"quantity":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateProduct_DuplicateNameReturns409(t *testing.T) {
	srv, mock, _ := newServer(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	resp := postJSON(t, srv.URL+"/products/", `{"name":"widget","price_minor_units":500,"initial_stock":10}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "product_already_exists", body.Kind)
}

func TestGetProductWithStock_ReportsSyncedView(t *testing.T) {
	srv, mock, store := newServer(t)
	_, err := store.Seed(context.Background(), 1, 10)
	require.NoError(t, err)

	expectProductRow(mock, 1, 2_500_000) // mirror stock 10 matches the hot counter

	resp, err := http.Get(srv.URL + "/products/1")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var view api.StockViewResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, int64(10), view.MirrorStock)
	assert.Equal(t, int64(10), view.HotStock)
	assert.True(t, view.Synced)
}

func TestGetProductWithStock_LazySeedsAbsentCounter(t *testing.T) {
	srv, mock, store := newServer(t)

	expectProductRow(mock, 1, 2_500_000) // mirror stock 10, no hot counter yet

	resp, err := http.Get(srv.URL + "/products/1")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var view api.StockViewResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, int64(10), view.HotStock, "hot counter seeded from the mirror")
	assert.True(t, view.Synced)
	assert.Equal(t, int64(10), store.MustRead(1))
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/log"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/validator"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type testLedger struct {
	store    *memoryStore
	images   *recordingImageService
	summary  *countingSummary
	products ProductService
	sales    SaleService
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()

	store := newMemoryStore()
	dbClient := &memoryDB{store: store}
	productRepo := &memoryProductRepo{store: store}
	saleRepo := &memorySaleRepo{store: store}
	outboxRepo := &memoryOutboxRepo{store: store}
	images := &recordingImageService{}
	summary := &countingSummary{}
	v := validator.MustNewDefaultValidator()
	metrics := NewLedgerMetrics(prometheus.NewRegistry())

	products := NewProductService(log.Discard(), dbClient, v, productRepo, saleRepo, outboxRepo, images)
	products.(*productService).now = func() time.Time { return testNow }

	sales := NewSaleService(log.Discard(), dbClient, v, productRepo, saleRepo, outboxRepo, summary, metrics)
	sales.(*saleService).now = func() time.Time { return testNow }

	return &testLedger{
		store:    store,
		images:   images,
		summary:  summary,
		products: products,
		sales:    sales,
	}
}

func (l *testLedger) mustCreateProduct(t *testing.T, title string, qty int, cost string) model.Product {
	t.Helper()

	p, err := l.products.CreateProduct(context.Background(), CreateProductParams{
		Title:         title,
		StockQuantity: qty,
		PurchaseCost:  decimal.RequireFromString(cost),
	})
	require.NoError(t, err)
	return p
}

func (l *testLedger) mustCreateSale(t *testing.T, productID int64, price, date string) model.Sale {
	t.Helper()

	sale, err := l.sales.CreateSale(context.Background(), CreateSaleParams{
		ProductID: productID,
		SalePrice: decimal.RequireFromString(price),
		SaleDate:  date,
		Channel:   model.ChannelMercadoLivre,
	})
	require.NoError(t, err)
	return sale
}

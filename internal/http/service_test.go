package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	apphttp "github.com/tuanvumaihuynh/stock-ledger/internal/http"
	"github.com/tuanvumaihuynh/stock-ledger/internal/log"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/correlationid"
)

var fixedTime = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeProducts struct {
	products   map[int64]model.Product
	lastCreate service.CreateProductParams
	lastList   service.ListProductsParams
}

func (f *fakeProducts) CreateProduct(_ context.Context, params service.CreateProductParams) (model.Product, error) {
	f.lastCreate = params
	return model.Product{
		ID:            7,
		Title:         params.Title,
		StockQuantity: params.StockQuantity,
		PurchaseCost:  params.PurchaseCost,
		Specs:         params.Specs,
		CreatedAt:     fixedTime,
		UpdatedAt:     fixedTime,
	}, nil
}

func (f *fakeProducts) GetProduct(_ context.Context, id int64) (model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return model.Product{}, apperr.ProductNotFoundErr
	}
	return p, nil
}

func (f *fakeProducts) ListProducts(_ context.Context, params service.ListProductsParams) ([]model.Product, error) {
	f.lastList = params
	products := make([]model.Product, 0, len(f.products))
	for _, p := range f.products {
		products = append(products, p)
	}
	return products, nil
}

func (f *fakeProducts) UpdateProduct(_ context.Context, id int64, _ service.UpdateProductParams) (model.Product, error) {
	return f.GetProduct(context.Background(), id)
}

func (f *fakeProducts) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := f.products[id]; !ok {
		return apperr.ProductNotFoundErr
	}
	delete(f.products, id)
	return nil
}

type fakeSales struct {
	sales map[int64]model.Sale
	stock int
}

func (f *fakeSales) CreateSale(_ context.Context, params service.CreateSaleParams) (model.Sale, error) {
	if f.stock <= 0 {
		return model.Sale{}, apperr.InsufficientStockErr
	}
	f.stock--
	productID := params.ProductID
	date, _ := time.Parse(model.SaleDateLayout, params.SaleDate)
	return model.Sale{
		ID:           1,
		ProductID:    &productID,
		ProductTitle: "Widget",
		SalePrice:    params.SalePrice,
		CostBasis:    decimal.RequireFromString("10"),
		SaleDate:     date,
		Channel:      params.Channel,
		CreatedAt:    fixedTime,
	}, nil
}

func (f *fakeSales) GetSale(_ context.Context, id int64) (model.Sale, error) {
	s, ok := f.sales[id]
	if !ok {
		return model.Sale{}, apperr.SaleNotFoundErr
	}
	return s, nil
}

func (f *fakeSales) ListSales(context.Context) ([]model.Sale, error) {
	sales := make([]model.Sale, 0, len(f.sales))
	for _, s := range f.sales {
		sales = append(sales, s)
	}
	return sales, nil
}

func (f *fakeSales) UpdateSale(ctx context.Context, id int64, _ service.UpdateSaleParams) (model.Sale, error) {
	return f.GetSale(ctx, id)
}

func (f *fakeSales) DeleteSale(_ context.Context, id int64) error {
	if _, ok := f.sales[id]; !ok {
		return apperr.SaleNotFoundErr
	}
	return nil
}

type fakeSummary struct{}

func (fakeSummary) InvalidateSummary(context.Context) error { return nil }

func (fakeSummary) GetSalesSummary(context.Context) (model.SalesSummary, error) {
	totals := model.SalesTotals{}.Add(1, decimal.RequireFromString("15"), decimal.RequireFromString("10"))
	channels := []model.ChannelSummary{{Channel: model.ChannelShopee, SalesTotals: totals}}
	return model.SalesSummary{
		Months:   []model.MonthSummary{{Month: "2024-01", SalesTotals: totals, Channels: channels}},
		Channels: channels,
		Totals:   totals,
	}, nil
}

type fakeImages struct{}

func (fakeImages) UploadImage(_ context.Context, params service.UploadImageParams) (string, error) {
	if len(params.Data) == 0 {
		return "", apperr.InvalidUploadErr.WithMsg("file is empty")
	}
	return "20240510_120000_" + params.Filename, nil
}

func (fakeImages) ReleaseImage(context.Context, string, int) {}

type fakeCSV struct {
	imported string
}

func (f *fakeCSV) ExportProducts(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(service.CSVColumns, ",")+"\n")
	return err
}

func (f *fakeCSV) ImportProducts(_ context.Context, r io.Reader) (service.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return service.ImportResult{}, err
	}
	f.imported = string(data)
	return service.ImportResult{Created: 1, Errors: []service.ImportRowError{}}, nil
}

type fakeHealth struct{ healthy bool }

func (f fakeHealth) IsHealthy(context.Context) (bool, error) { return f.healthy, nil }

type testServer struct {
	handler  http.Handler
	products *fakeProducts
	sales    *fakeSales
	csv      *fakeCSV
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		products: &fakeProducts{products: map[int64]model.Product{
			1: {ID: 1, Title: "Widget", StockQuantity: 2, PurchaseCost: decimal.RequireFromString("10.5"), Specs: "{}", CreatedAt: fixedTime, UpdatedAt: fixedTime},
		}},
		sales: &fakeSales{
			stock: 1,
			sales: map[int64]model.Sale{
				3: {
					ID:           3,
					ProductTitle: "Widget",
					SalePrice:    decimal.RequireFromString("15"),
					CostBasis:    decimal.RequireFromString("10"),
					SaleDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					Channel:      model.ChannelMercadoLivre,
					CreatedAt:    fixedTime,
				},
			},
		},
		csv: &fakeCSV{},
	}

	svc := apphttp.New(config.HTTP{
		Swagger:        true,
		MaxUploadBytes: 1 << 20,
		AllowedOrigins: []string{"*"},
	}, log.Discard(), prometheus.NewRegistry(), apphttp.Services{
		Products: ts.products,
		Sales:    ts.sales,
		Summary:  fakeSummary{},
		Images:   fakeImages{},
		CSV:      ts.csv,
		Health:   fakeHealth{healthy: true},
	})

	handler, err := svc.Handler(context.Background())
	require.NoError(t, err)
	ts.handler = handler

	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := httptest.NewRecorder()
	ts.handler.ServeHTTP(resp, req)
	return resp
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v))
	return v
}

func TestProductRoutes(t *testing.T) {
	t.Run("Should list products", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodGet, "/api/produtos?categoria=Casa", nil, "")

		require.Equal(t, http.StatusOK, resp.Code)
		body := decodeBody[[]map[string]any](t, resp)
		require.Len(t, body, 1)
		assert.Equal(t, "Widget", body[0]["titulo"])
		assert.Equal(t, 10.5, body[0]["valor_compra"])
		assert.Equal(t, "2024-05-10T12:00:00Z", body[0]["data_atualizacao"])
		require.NotNil(t, ts.products.lastList.Category)
		assert.Equal(t, "Casa", *ts.products.lastList.Category)
	})

	t.Run("Should create product with inline specs", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodPost, "/api/produtos",
			strings.NewReader(`{"titulo":"Caneca","quantidade":3,"valor_compra":4.5,"especificacoes":{"ml":300}}`),
			"application/json")

		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		assert.Equal(t, "Caneca", ts.products.lastCreate.Title)
		assert.Equal(t, 3, ts.products.lastCreate.StockQuantity)
		assert.JSONEq(t, `{"ml":300}`, ts.products.lastCreate.Specs)
		assert.True(t, decimal.RequireFromString("4.5").Equal(ts.products.lastCreate.PurchaseCost))
	})

	t.Run("Should reject product without title", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodPost, "/api/produtos", strings.NewReader(`{"quantidade":3}`), "application/json")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "VALIDATION_FAILED", decodeBody[map[string]any](t, resp)["code"])
	})

	t.Run("Should reject non numeric id", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodGet, "/api/produtos/abc", nil, "")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Should return not found", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodGet, "/api/produtos/99", nil, "")

		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, apperr.ProductNotFoundErrorCode, decodeBody[map[string]any](t, resp)["code"])
	})

	t.Run("Should delete product", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodDelete, "/api/produtos/1", nil, "")

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Empty(t, ts.products.products)
	})

	t.Run("Should export csv", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodGet, "/api/produtos/exportar", nil, "")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
		assert.Contains(t, resp.Header().Get("Content-Disposition"), "produtos.csv")
		assert.True(t, strings.HasPrefix(resp.Body.String(), "titulo,descricao"))
	})

	t.Run("Should import raw csv body", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodPost, "/api/produtos/importar", strings.NewReader("titulo\nA\n"), "text/csv")

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, float64(1), decodeBody[map[string]any](t, resp)["criados"])
		assert.Equal(t, "titulo\nA\n", ts.csv.imported)
	})

	t.Run("Should import multipart csv", func(t *testing.T) {
		ts := newTestServer(t)
		body, contentType := multipartFile(t, "arquivo", "produtos.csv", "titulo\nB\n")

		resp := ts.do(t, http.MethodPost, "/api/produtos/importar", body, contentType)

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, "titulo\nB\n", ts.csv.imported)
	})
}

func TestSaleRoutes(t *testing.T) {
	t.Run("Should create sale with profit fields", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodPost, "/api/vendas",
			strings.NewReader(`{"produto_id":1,"valor_venda":15,"data_venda":"2024-01-01","onde_vendeu":"mercado_livre"}`),
			"application/json")

		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		assert.JSONEq(t, `{
			"id": 1,
			"produto_id": 1,
			"produto_titulo": "Widget",
			"valor_venda": 15.00,
			"valor_compra": 10.00,
			"lucro": 5.00,
			"porcentagem_lucro": 50.00,
			"data_venda": "2024-01-01",
			"onde_vendeu": "mercado_livre",
			"observacoes": "",
			"data_criacao": "2024-05-10T12:00:00Z"
		}`, resp.Body.String())
		assert.Contains(t, resp.Body.String(), `"lucro":5.00`)
	})

	t.Run("Should report insufficient stock", func(t *testing.T) {
		ts := newTestServer(t)
		ts.sales.stock = 0

		resp := ts.do(t, http.MethodPost, "/api/vendas",
			strings.NewReader(`{"produto_id":1,"valor_venda":15,"data_venda":"2024-01-01","onde_vendeu":"shopee"}`),
			"application/json")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, apperr.InsufficientStockErrorCode, decodeBody[map[string]any](t, resp)["code"])
	})

	t.Run("Should reject unknown channel", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodPost, "/api/vendas",
			strings.NewReader(`{"produto_id":1,"valor_venda":15,"data_venda":"2024-01-01","onde_vendeu":"amazon"}`),
			"application/json")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, 1, ts.sales.stock)
	})

	t.Run("Should show deleted product placeholder", func(t *testing.T) {
		ts := newTestServer(t)
		sale := ts.sales.sales[3]
		sale.ProductTitle = ""
		ts.sales.sales[3] = sale

		resp := ts.do(t, http.MethodGet, "/api/vendas/3", nil, "")

		require.Equal(t, http.StatusOK, resp.Code)
		body := decodeBody[map[string]any](t, resp)
		assert.Equal(t, model.DeletedProductTitle, body["produto_titulo"])
		assert.Nil(t, body["produto_id"])
	})

	t.Run("Should route summary before id with portuguese keys", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodGet, "/api/vendas/resumo", nil, "")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{
			"meses": [{
				"mes": "2024-01",
				"quantidade": 1, "receita": 15.00, "custo": 10.00, "lucro": 5.00,
				"canais": [{"onde_vendeu": "shopee", "quantidade": 1, "receita": 15.00, "custo": 10.00, "lucro": 5.00}]
			}],
			"canais": [{"onde_vendeu": "shopee", "quantidade": 1, "receita": 15.00, "custo": 10.00, "lucro": 5.00}],
			"totais": {"quantidade": 1, "receita": 15.00, "custo": 10.00, "lucro": 5.00}
		}`, resp.Body.String())
		assert.Contains(t, resp.Body.String(), `"lucro":5.00`)
	})

	t.Run("Should return not found on delete", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(t, http.MethodDelete, "/api/vendas/42", nil, "")

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestUploadRoute(t *testing.T) {
	t.Run("Should upload image", func(t *testing.T) {
		ts := newTestServer(t)
		body, contentType := multipartFile(t, "imagem", "foto.png", "png-bytes")

		resp := ts.do(t, http.MethodPost, "/api/upload", body, contentType)

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, "20240510_120000_foto.png", decodeBody[map[string]any](t, resp)["imagem"])
	})

	t.Run("Should reject missing file", func(t *testing.T) {
		ts := newTestServer(t)
		body, contentType := multipartFile(t, "outro", "foto.png", "png-bytes")

		resp := ts.do(t, http.MethodPost, "/api/upload", body, contentType)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, apperr.InvalidUploadErrorCode, decodeBody[map[string]any](t, resp)["code"])
	})
}

func TestOperationalRoutes(t *testing.T) {
	ts := newTestServer(t)

	t.Run("Should report health", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/healthz", nil, "")

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
	})

	t.Run("Should expose metrics", func(t *testing.T) {
		ts.do(t, http.MethodGet, "/api/produtos", nil, "")

		resp := ts.do(t, http.MethodGet, "/metrics", nil, "")

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "stock_ledger_http_requests_total")
	})

	t.Run("Should echo correlation id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(correlationid.Header, "abc-123")
		resp := httptest.NewRecorder()

		ts.handler.ServeHTTP(resp, req)

		assert.Equal(t, "abc-123", resp.Header().Get(correlationid.Header))
		assert.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))
	})
}

func multipartFile(t *testing.T, field, filename, content string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

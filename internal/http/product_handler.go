package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

const csvImportField = "arquivo"

type productHandler struct {
	*responder

	productSvc     service.ProductService
	csvSvc         service.CSVService
	maxUploadBytes int64
}

func newProductHandler(
	resp *responder,
	productSvc service.ProductService,
	csvSvc service.CSVService,
	maxUploadBytes int64,
) *productHandler {
	return &productHandler{
		responder:      resp,
		productSvc:     productSvc,
		csvSvc:         csvSvc,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *productHandler) listProducts(w http.ResponseWriter, r *http.Request) error {
	var params service.ListProductsParams
	if category := r.URL.Query().Get("categoria"); category != "" {
		params.Category = &category
	}

	products, err := h.productSvc.ListProducts(r.Context(), params)
	if err != nil {
		return fmt.Errorf("product service list products: %w", err)
	}

	items := make([]productResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product))
	}

	return h.writeJSON(w, r, http.StatusOK, items)
}

func (h *productHandler) createProduct(w http.ResponseWriter, r *http.Request) error {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	product, err := h.productSvc.CreateProduct(r.Context(), req.toParams())
	if err != nil {
		return fmt.Errorf("product service create product: %w", err)
	}

	return h.writeJSON(w, r, http.StatusCreated, toProductResponse(product))
}

func (h *productHandler) getProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	product, err := h.productSvc.GetProduct(r.Context(), id)
	if err != nil {
		return fmt.Errorf("product service get product: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) updateProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	product, err := h.productSvc.UpdateProduct(r.Context(), id, req.toParams())
	if err != nil {
		return fmt.Errorf("product service update product: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	if err := h.productSvc.DeleteProduct(r.Context(), id); err != nil {
		return fmt.Errorf("product service delete product: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, messageResponse{Message: "Produto deletado com sucesso"})
}

func (h *productHandler) exportProducts(w http.ResponseWriter, r *http.Request) error {
	// Buffered so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.csvSvc.ExportProducts(r.Context(), &buf); err != nil {
		return fmt.Errorf("csv service export products: %w", err)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="produtos.csv"`)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(buf.Bytes())

	return nil
}

func (h *productHandler) importProducts(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	src, err := csvSource(r)
	if err != nil {
		return err
	}
	defer src.Close()

	result, err := h.csvSvc.ImportProducts(r.Context(), src)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.InvalidUploadErr.WithMsg(fmt.Sprintf("file exceeds %d bytes", maxErr.Limit))
		}
		return fmt.Errorf("csv service import products: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, result)
}

// csvSource returns the uploaded file of a multipart request or the raw body.
func csvSource(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	file, _, err := r.FormFile(csvImportField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile):
			return nil, apperr.InvalidUploadErr.WithMsg("no file sent in field " + csvImportField)
		case errors.As(err, &maxErr):
			return nil, apperr.InvalidUploadErr.WithMsg(fmt.Sprintf("file exceeds %d bytes", maxErr.Limit))
		default:
			return nil, apperr.InvalidUploadErr.WrapParent(err)
		}
	}

	return file, nil
}

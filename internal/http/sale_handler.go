package http

import (
	"fmt"
	"net/http"

	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

type saleHandler struct {
	*responder

	saleSvc    service.SaleService
	summarySvc service.SummaryService
}

func newSaleHandler(resp *responder, saleSvc service.SaleService, summarySvc service.SummaryService) *saleHandler {
	return &saleHandler{
		responder:  resp,
		saleSvc:    saleSvc,
		summarySvc: summarySvc,
	}
}

func (h *saleHandler) listSales(w http.ResponseWriter, r *http.Request) error {
	sales, err := h.saleSvc.ListSales(r.Context())
	if err != nil {
		return fmt.Errorf("sale service list sales: %w", err)
	}

	items := make([]saleResponse, 0, len(sales))
	for _, sale := range sales {
		items = append(items, toSaleResponse(sale))
	}

	return h.writeJSON(w, r, http.StatusOK, items)
}

func (h *saleHandler) createSale(w http.ResponseWriter, r *http.Request) error {
	var req createSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	sale, err := h.saleSvc.CreateSale(r.Context(), service.CreateSaleParams{
		ProductID: req.ProductID,
		SalePrice: req.SalePrice,
		SaleDate:  req.SaleDate,
		Channel:   req.Channel,
		Notes:     req.Notes,
	})
	if err != nil {
		return fmt.Errorf("sale service create sale: %w", err)
	}

	return h.writeJSON(w, r, http.StatusCreated, toSaleResponse(sale))
}

func (h *saleHandler) getSale(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	sale, err := h.saleSvc.GetSale(r.Context(), id)
	if err != nil {
		return fmt.Errorf("sale service get sale: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, toSaleResponse(sale))
}

func (h *saleHandler) updateSale(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	var req updateSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	sale, err := h.saleSvc.UpdateSale(r.Context(), id, service.UpdateSaleParams{
		SalePrice: req.SalePrice,
		SaleDate:  req.SaleDate,
		Channel:   req.Channel,
		Notes:     req.Notes,
	})
	if err != nil {
		return fmt.Errorf("sale service update sale: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, toSaleResponse(sale))
}

func (h *saleHandler) deleteSale(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	if err := h.saleSvc.DeleteSale(r.Context(), id); err != nil {
		return fmt.Errorf("sale service delete sale: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, messageResponse{Message: "Venda deletada com sucesso"})
}

func (h *saleHandler) salesSummary(w http.ResponseWriter, r *http.Request) error {
	summary, err := h.summarySvc.GetSalesSummary(r.Context())
	if err != nil {
		return fmt.Errorf("summary service get sales summary: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, toSalesSummaryResponse(summary))
}

package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
)

// money renders a decimal as a JSON number with two decimals.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

// specsField accepts specs either as a JSON encoded string or as an inline
// JSON object.
type specsField string

func (s *specsField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = specsField(str)
		return nil
	}
	*s = specsField(data)
	return nil
}

type productResponse struct {
	ID            int64  `json:"id"`
	Title         string `json:"titulo"`
	Description   string `json:"descricao"`
	Category      string `json:"categoria"`
	StockQuantity int    `json:"quantidade"`
	PurchaseCost  money  `json:"valor_compra"`
	ImageRef      string `json:"imagem"`
	Specs         string `json:"especificacoes"`
	CreatedAt     string `json:"data_criacao"`
	UpdatedAt     string `json:"data_atualizacao"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		Category:      p.Category,
		StockQuantity: p.StockQuantity,
		PurchaseCost:  money(p.PurchaseCost),
		ImageRef:      p.ImageRef,
		Specs:         p.Specs,
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type createProductRequest struct {
	Title         string           `json:"titulo"`
	Description   string           `json:"descricao"`
	Category      string           `json:"categoria"`
	StockQuantity *int             `json:"quantidade"`
	PurchaseCost  *decimal.Decimal `json:"valor_compra"`
	ImageRef      string           `json:"imagem"`
	Specs         specsField       `json:"especificacoes"`
}

func (req createProductRequest) toParams() service.CreateProductParams {
	return service.CreateProductParams{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		StockQuantity: ptr.ValueOr(req.StockQuantity, 0),
		PurchaseCost:  ptr.ValueOr(req.PurchaseCost, decimal.Zero),
		ImageRef:      req.ImageRef,
		Specs:         string(req.Specs),
	}
}

type updateProductRequest struct {
	Title         *string          `json:"titulo"`
	Description   *string          `json:"descricao"`
	Category      *string          `json:"categoria"`
	StockQuantity *int             `json:"quantidade"`
	PurchaseCost  *decimal.Decimal `json:"valor_compra"`
	ImageRef      *string          `json:"imagem"`
	Specs         *specsField      `json:"especificacoes"`
}

func (req updateProductRequest) toParams() service.UpdateProductParams {
	params := service.UpdateProductParams{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		StockQuantity: req.StockQuantity,
		PurchaseCost:  req.PurchaseCost,
		ImageRef:      req.ImageRef,
	}
	if req.Specs != nil {
		specs := string(*req.Specs)
		params.Specs = &specs
	}
	return params
}

type saleResponse struct {
	ID               int64         `json:"id"`
	ProductID        *int64        `json:"produto_id"`
	ProductTitle     string        `json:"produto_titulo"`
	SalePrice        money         `json:"valor_venda"`
	CostBasis        money         `json:"valor_compra"`
	Profit           money         `json:"lucro"`
	ProfitPercentage money         `json:"porcentagem_lucro"`
	SaleDate         string        `json:"data_venda"`
	Channel          model.Channel `json:"onde_vendeu"`
	Notes            string        `json:"observacoes"`
	CreatedAt        string        `json:"data_criacao"`
}

func toSaleResponse(s model.Sale) saleResponse {
	return saleResponse{
		ID:               s.ID,
		ProductID:        s.ProductID,
		ProductTitle:     s.DisplayTitle(),
		SalePrice:        money(s.SalePrice),
		CostBasis:        money(s.CostBasis),
		Profit:           money(s.Profit()),
		ProfitPercentage: money(s.ProfitPercentage()),
		SaleDate:         s.SaleDate.Format(model.SaleDateLayout),
		Channel:          s.Channel,
		Notes:            s.Notes,
		CreatedAt:        s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createSaleRequest struct {
	ProductID int64           `json:"produto_id"`
	SalePrice decimal.Decimal `json:"valor_venda"`
	SaleDate  string          `json:"data_venda"`
	Channel   model.Channel   `json:"onde_vendeu"`
	Notes     string          `json:"observacoes"`
}

type updateSaleRequest struct {
	SalePrice decimal.Decimal `json:"valor_venda"`
	SaleDate  string          `json:"data_venda"`
	Channel   model.Channel   `json:"onde_vendeu"`
	Notes     string          `json:"observacoes"`
}

type salesTotalsResponse struct {
	Count     int64 `json:"quantidade"`
	Revenue   money `json:"receita"`
	CostBasis money `json:"custo"`
	Profit    money `json:"lucro"`
}

func toSalesTotalsResponse(t model.SalesTotals) salesTotalsResponse {
	return salesTotalsResponse{
		Count:     t.Count,
		Revenue:   money(t.Revenue),
		CostBasis: money(t.CostBasis),
		Profit:    money(t.Profit),
	}
}

type channelSummaryResponse struct {
	Channel model.Channel `json:"onde_vendeu"`
	salesTotalsResponse
}

type monthSummaryResponse struct {
	Month string `json:"mes"`
	salesTotalsResponse
	Channels []channelSummaryResponse `json:"canais"`
}

type salesSummaryResponse struct {
	Months   []monthSummaryResponse   `json:"meses"`
	Channels []channelSummaryResponse `json:"canais"`
	Totals   salesTotalsResponse      `json:"totais"`
}

func toChannelSummaryResponses(channels []model.ChannelSummary) []channelSummaryResponse {
	res := make([]channelSummaryResponse, 0, len(channels))
	for _, c := range channels {
		res = append(res, channelSummaryResponse{
			Channel:             c.Channel,
			salesTotalsResponse: toSalesTotalsResponse(c.SalesTotals),
		})
	}
	return res
}

func toSalesSummaryResponse(s model.SalesSummary) salesSummaryResponse {
	months := make([]monthSummaryResponse, 0, len(s.Months))
	for _, m := range s.Months {
		months = append(months, monthSummaryResponse{
			Month:               m.Month,
			salesTotalsResponse: toSalesTotalsResponse(m.SalesTotals),
			Channels:            toChannelSummaryResponses(m.Channels),
		})
	}

	return salesSummaryResponse{
		Months:   months,
		Channels: toChannelSummaryResponses(s.Channels),
		Totals:   toSalesTotalsResponse(s.Totals),
	}
}

type messageResponse struct {
	Message string `json:"mensagem"`
}

type uploadResponse struct {
	ImageRef string `json:"imagem"`
	Message  string `json:"mensagem"`
}

type healthResponse struct {
	Status string `json:"status"`
}

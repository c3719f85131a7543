package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DeletedProductTitle is displayed for sales whose title can no longer be resolved.
const DeletedProductTitle = "Produto Deletado"

// SaleDateLayout is the calendar date format of Sale.SaleDate.
const SaleDateLayout = "2006-01-02"

// Channel is the marketplace a sale happened on.
type Channel string

const (
	ChannelMercadoLivre Channel = "mercado_livre"
	ChannelShopee       Channel = "shopee"
)

// Channels lists every supported channel.
var Channels = []Channel{ChannelMercadoLivre, ChannelShopee}

// Validate implements the "enum" validation tag.
func (c Channel) Validate() error {
	switch c {
	case ChannelMercadoLivre, ChannelShopee:
		return nil
	default:
		return fmt.Errorf("unknown channel: %q", string(c))
	}
}

type Sale struct {
	ID int64
	// ProductID is a weak reference: the product may no longer exist.
	ProductID *int64
	// ProductTitle is the title snapshot taken at sale time. Empty for legacy rows.
	ProductTitle string
	// LiveProductTitle is the current title of the referenced product, if it still exists.
	LiveProductTitle string
	SalePrice        decimal.Decimal
	// CostBasis is the product purchase cost snapshot taken at sale time.
	CostBasis decimal.Decimal
	SaleDate  time.Time
	Channel   Channel
	Notes     string
	CreatedAt time.Time
}

// DisplayTitle resolves the title to show: snapshot, then live product title, then placeholder.
func (s Sale) DisplayTitle() string {
	if s.ProductTitle != "" {
		return s.ProductTitle
	}
	if s.LiveProductTitle != "" {
		return s.LiveProductTitle
	}
	return DeletedProductTitle
}

// Profit is sale price minus cost basis, rounded to cents.
func (s Sale) Profit() decimal.Decimal {
	return s.SalePrice.Sub(s.CostBasis).Round(2)
}

// ProfitPercentage is profit over cost basis in percent, rounded to 2 decimals.
// It is zero when the cost basis is not positive.
func (s Sale) ProfitPercentage() decimal.Decimal {
	if !s.CostBasis.IsPositive() {
		return decimal.Zero
	}
	return s.SalePrice.Sub(s.CostBasis).
		Div(s.CostBasis).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

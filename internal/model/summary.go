package model

import "github.com/shopspring/decimal"

// SalesTotals aggregates a set of sales.
type SalesTotals struct {
	Count     int64           `json:"quantidade"`
	Revenue   decimal.Decimal `json:"receita"`
	CostBasis decimal.Decimal `json:"custo"`
	Profit    decimal.Decimal `json:"lucro"`
}

// Add accumulates count sales with the given revenue and cost basis.
func (t SalesTotals) Add(count int64, revenue, costBasis decimal.Decimal) SalesTotals {
	t.Count += count
	t.Revenue = t.Revenue.Add(revenue)
	t.CostBasis = t.CostBasis.Add(costBasis)
	t.Profit = t.Revenue.Sub(t.CostBasis)
	return t
}

type ChannelSummary struct {
	Channel Channel `json:"onde_vendeu"`
	SalesTotals
}

type MonthSummary struct {
	// Month is formatted as YYYY-MM.
	Month string `json:"mes"`
	SalesTotals
	Channels []ChannelSummary `json:"canais"`
}

// SalesSummary groups sales per month, most recent first.
type SalesSummary struct {
	Months   []MonthSummary   `json:"meses"`
	Channels []ChannelSummary `json:"canais"`
	Totals   SalesTotals      `json:"totais"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64
	Title         string
	Description   string
	Category      string
	StockQuantity int
	PurchaseCost  decimal.Decimal
	ImageRef      string
	// Specs is a JSON object kept as text.
	Specs     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

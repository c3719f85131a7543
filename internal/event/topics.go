package event

const (
	TopicProductCreated = "product.created"
	TopicProductDeleted = "product.deleted"
	TopicSaleCreated    = "sale.created"
	TopicSaleDeleted    = "sale.deleted"
)

type ProductCreatedEvent struct {
	ProductID     int64   `json:"product_id"`
	Title         string  `json:"titulo"`
	Category      string  `json:"categoria"`
	StockQuantity int     `json:"quantidade"`
	PurchaseCost  float64 `json:"valor_compra"`
}

type ProductDeletedEvent struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"titulo"`
	// BackfilledSales is the number of sales whose title snapshot was filled in
	// right before the product was removed.
	BackfilledSales int64 `json:"backfilled_sales"`
}

type SaleCreatedEvent struct {
	SaleID       int64   `json:"sale_id"`
	ProductID    int64   `json:"product_id"`
	ProductTitle string  `json:"produto_titulo"`
	SalePrice    float64 `json:"valor_venda"`
	CostBasis    float64 `json:"valor_compra"`
	SaleDate     string  `json:"data_venda"`
	Channel      string  `json:"onde_vendeu"`
}

type SaleDeletedEvent struct {
	SaleID    int64  `json:"sale_id"`
	ProductID *int64 `json:"product_id"`
	// StockRestored is false when the product no longer existed.
	StockRestored bool `json:"stock_restored"`
}

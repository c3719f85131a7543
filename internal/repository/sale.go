package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

const saleSelect = `
	SELECT v.id, v.produto_id, COALESCE(v.produto_titulo, ''), COALESCE(p.titulo, ''),
		v.valor_venda, v.valor_compra, v.data_venda, v.onde_vendeu, COALESCE(v.observacoes, ''), v.data_criacao
	FROM vendas AS v
	LEFT JOIN produtos AS p ON p.id = v.produto_id`

type CreateSaleParams struct {
	ProductID    int64
	ProductTitle string
	SalePrice    decimal.Decimal
	CostBasis    decimal.Decimal
	SaleDate     time.Time
	Channel      model.Channel
	Notes        string
	Now          time.Time
}

type UpdateSaleParams struct {
	SalePrice decimal.Decimal
	SaleDate  time.Time
	Channel   model.Channel
	Notes     string
}

// SaleSummaryRow aggregates the sales of one channel in one month.
type SaleSummaryRow struct {
	Month     string
	Channel   model.Channel
	Count     int64
	Revenue   decimal.Decimal
	CostBasis decimal.Decimal
}

type SaleRepository interface {
	WithDB(db db.DB) SaleRepository
	CreateSale(ctx context.Context, params CreateSaleParams) (model.Sale, error)
	GetSale(ctx context.Context, id int64) (model.Sale, error)
	ListSales(ctx context.Context) ([]model.Sale, error)
	UpdateSale(ctx context.Context, id int64, params UpdateSaleParams) error
	DeleteSale(ctx context.Context, id int64) error

	// BackfillProductTitle sets the title snapshot of the product's sales that have none.
	BackfillProductTitle(ctx context.Context, productID int64, title string) (int64, error)
	SummarizeSales(ctx context.Context) ([]SaleSummaryRow, error)
}

type saleRepository struct {
	db db.DB
}

func NewSaleRepository(db db.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r saleRepository) WithDB(db db.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r saleRepository) CreateSale(ctx context.Context, params CreateSaleParams) (model.Sale, error) {
	sale := model.Sale{
		ProductID:        &params.ProductID,
		ProductTitle:     params.ProductTitle,
		LiveProductTitle: params.ProductTitle,
		SalePrice:        params.SalePrice,
		CostBasis:        params.CostBasis,
		SaleDate:         params.SaleDate,
		Channel:          params.Channel,
		Notes:            params.Notes,
	}

	if err := r.db.QueryRow(ctx, `
		INSERT INTO vendas (produto_id, produto_titulo, valor_venda, valor_compra, data_venda, onde_vendeu, observacoes, data_criacao)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, data_criacao`,
		params.ProductID,
		params.ProductTitle,
		params.SalePrice,
		params.CostBasis,
		params.SaleDate,
		string(params.Channel),
		params.Notes,
		params.Now,
	).Scan(&sale.ID, &sale.CreatedAt); err != nil {
		return model.Sale{}, fmt.Errorf("insert sale: %w", err)
	}

	return sale, nil
}

func (r saleRepository) GetSale(ctx context.Context, id int64) (model.Sale, error) {
	sale, err := scanSale(r.db.QueryRow(ctx, saleSelect+` WHERE v.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return model.Sale{}, ErrNotFound
		}
		return model.Sale{}, fmt.Errorf("get sale: %w", err)
	}

	return sale, nil
}

func (r saleRepository) ListSales(ctx context.Context) ([]model.Sale, error) {
	rows, err := r.db.Query(ctx, saleSelect+` ORDER BY v.data_venda DESC, v.data_criacao DESC, v.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	sales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Sale, error) {
		return scanSale(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect sales: %w", err)
	}

	return sales, nil
}

func (r saleRepository) UpdateSale(ctx context.Context, id int64, params UpdateSaleParams) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE vendas
		SET valor_venda = $2, data_venda = $3, onde_vendeu = $4, observacoes = $5
		WHERE id = $1`,
		id,
		params.SalePrice,
		params.SaleDate,
		string(params.Channel),
		params.Notes,
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r saleRepository) DeleteSale(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vendas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r saleRepository) BackfillProductTitle(ctx context.Context, productID int64, title string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE vendas
		SET produto_titulo = $2
		WHERE produto_id = $1 AND (produto_titulo IS NULL OR produto_titulo = '')`,
		productID, title,
	)
	if err != nil {
		return 0, fmt.Errorf("backfill product title: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r saleRepository) SummarizeSales(ctx context.Context) ([]SaleSummaryRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(data_venda, 'YYYY-MM') AS mes, onde_vendeu, COUNT(*),
			COALESCE(SUM(valor_venda), 0), COALESCE(SUM(valor_compra), 0)
		FROM vendas
		GROUP BY mes, onde_vendeu
		ORDER BY mes DESC, onde_vendeu`)
	if err != nil {
		return nil, fmt.Errorf("summarize sales: %w", err)
	}

	summary, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SaleSummaryRow, error) {
		var (
			s       SaleSummaryRow
			channel string
		)
		err := row.Scan(&s.Month, &channel, &s.Count, &s.Revenue, &s.CostBasis)
		s.Channel = model.Channel(channel)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect sales summary: %w", err)
	}

	return summary, nil
}

func scanSale(row pgx.Row) (model.Sale, error) {
	var (
		s       model.Sale
		channel string
	)
	err := row.Scan(
		&s.ID,
		&s.ProductID,
		&s.ProductTitle,
		&s.LiveProductTitle,
		&s.SalePrice,
		&s.CostBasis,
		&s.SaleDate,
		&channel,
		&s.Notes,
		&s.CreatedAt,
	)
	s.Channel = model.Channel(channel)
	return s, err
}

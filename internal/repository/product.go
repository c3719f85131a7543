package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

const productColumns = `id, titulo, COALESCE(descricao, ''), COALESCE(categoria, ''), quantidade, valor_compra,
	COALESCE(imagem, ''), COALESCE(especificacoes, '{}'), data_criacao, data_atualizacao`

type CreateProductParams struct {
	Title         string
	Description   string
	Category      string
	StockQuantity int
	PurchaseCost  decimal.Decimal
	ImageRef      string
	Specs         string
	Now           time.Time
}

type ListProductsParams struct {
	Category *string
}

// ProductChangeSet holds the columns of a partial update. Nil fields are left untouched.
type ProductChangeSet struct {
	Title         *string
	Description   *string
	Category      *string
	StockQuantity *int
	PurchaseCost  *decimal.Decimal
	ImageRef      *string
	Specs         *string
}

func (c ProductChangeSet) toMap() map[string]any {
	m := map[string]any{}
	if c.Title != nil {
		m["titulo"] = *c.Title
	}
	if c.Description != nil {
		m["descricao"] = *c.Description
	}
	if c.Category != nil {
		m["categoria"] = *c.Category
	}
	if c.StockQuantity != nil {
		m["quantidade"] = *c.StockQuantity
	}
	if c.PurchaseCost != nil {
		m["valor_compra"] = *c.PurchaseCost
	}
	if c.ImageRef != nil {
		m["imagem"] = *c.ImageRef
	}
	if c.Specs != nil {
		m["especificacoes"] = *c.Specs
	}
	return m
}

// StockSnapshot is what a successful stock decrement reports about the product.
type StockSnapshot struct {
	Title        string
	PurchaseCost decimal.Decimal
}

type ProductRepository interface {
	WithDB(db db.DB) ProductRepository
	CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error)
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id int64, changeSet ProductChangeSet, now time.Time) (model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	CountProductsByImage(ctx context.Context, imageRef string, excludeID int64) (int, error)

	// DecrementStock takes one unit out of stock only when some is left. It
	// returns ErrNotFound when the product is missing or out of stock.
	DecrementStock(ctx context.Context, id int64, now time.Time) (StockSnapshot, error)
	// IncrementStock puts one unit back and reports whether the product exists.
	IncrementStock(ctx context.Context, id int64, now time.Time) (bool, error)
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r productRepository) WithDB(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r productRepository) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO produtos (titulo, descricao, categoria, quantidade, valor_compra, imagem, especificacoes, data_criacao, data_atualizacao)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+productColumns,
		params.Title,
		params.Description,
		params.Category,
		params.StockQuantity,
		params.PurchaseCost,
		params.ImageRef,
		params.Specs,
		params.Now,
	)

	product, err := scanProduct(row)
	if err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", err)
	}

	return product, nil
}

func (r productRepository) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM produtos WHERE id = $1`, id)

	product, err := scanProduct(row)
	if err != nil {
		if db.IsNoRows(err) {
			return model.Product{}, ErrNotFound
		}
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func (r productRepository) ListProducts(ctx context.Context, params ListProductsParams) ([]model.Product, error) {
	q := psql.Select(productColumns).
		From("produtos").
		OrderBy("data_atualizacao DESC", "id DESC")
	if params.Category != nil {
		q = q.Where(squirrel.Eq{"categoria": *params.Category})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect products: %w", err)
	}

	return products, nil
}

func (r productRepository) UpdateProduct(ctx context.Context, id int64, changeSet ProductChangeSet, now time.Time) (model.Product, error) {
	query, args, err := psql.Update("produtos").
		SetMap(changeSet.toMap()).
		Set("data_atualizacao", now).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + productColumns).
		ToSql()
	if err != nil {
		return model.Product{}, fmt.Errorf("build update product query: %w", err)
	}

	product, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return model.Product{}, ErrNotFound
		}
		return model.Product{}, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

func (r productRepository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM produtos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r productRepository) CountProductsByImage(ctx context.Context, imageRef string, excludeID int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM produtos WHERE imagem = $1 AND id <> $2`,
		imageRef, excludeID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products by image: %w", err)
	}

	return count, nil
}

func (r productRepository) DecrementStock(ctx context.Context, id int64, now time.Time) (StockSnapshot, error) {
	var snapshot StockSnapshot
	err := r.db.QueryRow(ctx, `
		UPDATE produtos
		SET quantidade = quantidade - 1, data_atualizacao = $2
		WHERE id = $1 AND quantidade > 0
		RETURNING titulo, valor_compra`,
		id, now,
	).Scan(&snapshot.Title, &snapshot.PurchaseCost)
	if err != nil {
		if db.IsNoRows(err) {
			return StockSnapshot{}, ErrNotFound
		}
		return StockSnapshot{}, fmt.Errorf("decrement stock: %w", err)
	}

	return snapshot, nil
}

func (r productRepository) IncrementStock(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE produtos
		SET quantidade = quantidade + 1, data_atualizacao = $2
		WHERE id = $1`,
		id, now,
	)
	if err != nil {
		return false, fmt.Errorf("increment stock: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Category,
		&p.StockQuantity,
		&p.PurchaseCost,
		&p.ImageRef,
		&p.Specs,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/event"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/validator"
)

type CreateSaleParams struct {
	ProductID int64           `validate:"gt=0"`
	SalePrice decimal.Decimal `validate:"dgt=0"`
	SaleDate  string          `validate:"required,datetime=2006-01-02"`
	Channel   model.Channel   `validate:"required,enum"`
	Notes     string          `validate:"max=2000"`
}

type UpdateSaleParams struct {
	SalePrice decimal.Decimal `validate:"dgt=0"`
	SaleDate  string          `validate:"required,datetime=2006-01-02"`
	Channel   model.Channel   `validate:"required,enum"`
	Notes     string          `validate:"max=2000"`
}

// SummaryInvalidator drops cached sales summaries.
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context) error
}

type SaleService interface {
	// CreateSale takes one unit of the product out of stock and records the
	// sale with the product title and purchase cost frozen, atomically.
	CreateSale(ctx context.Context, params CreateSaleParams) (model.Sale, error)
	GetSale(ctx context.Context, id int64) (model.Sale, error)
	ListSales(ctx context.Context) ([]model.Sale, error)
	// UpdateSale never touches stock or snapshots.
	UpdateSale(ctx context.Context, id int64, params UpdateSaleParams) (model.Sale, error)
	// DeleteSale removes the sale and returns its unit to stock when the
	// product still exists.
	DeleteSale(ctx context.Context, id int64) error
}

type saleService struct {
	logger        *slog.Logger
	db            db.DB
	validator     validator.Validator
	productRepo   repository.ProductRepository
	saleRepo      repository.SaleRepository
	outboxMsgRepo repository.OutboxMsgRepository
	summary       SummaryInvalidator
	metrics       *LedgerMetrics
	now           Clock
}

func NewSaleService(
	logger *slog.Logger,
	db db.DB,
	validator validator.Validator,
	productRepo repository.ProductRepository,
	saleRepo repository.SaleRepository,
	outboxMsgRepo repository.OutboxMsgRepository,
	summary SummaryInvalidator,
	metrics *LedgerMetrics,
) SaleService {
	return &saleService{
		logger:        logger.With(slog.String("service", "sale")),
		db:            db,
		validator:     validator,
		productRepo:   productRepo,
		saleRepo:      saleRepo,
		outboxMsgRepo: outboxMsgRepo,
		summary:       summary,
		metrics:       metrics,
		now:           utcNow,
	}
}

func (s *saleService) CreateSale(ctx context.Context, params CreateSaleParams) (model.Sale, error) {
	if err := s.validator.Validate(params); err != nil {
		return model.Sale{}, apperr.ValidationErr.WrapParent(err)
	}

	saleDate, err := time.Parse(model.SaleDateLayout, params.SaleDate)
	if err != nil {
		return model.Sale{}, apperr.ValidationErr.WrapParent(err)
	}

	var sale model.Sale
	if err := s.db.WithTx(ctx, func(db db.DB) error {
		now := s.now()
		productRepo := s.productRepo.WithDB(db)

		snapshot, err := productRepo.DecrementStock(ctx, params.ProductID, now)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("product repository decrement stock: %w", err)
			}

			if _, err := productRepo.GetProduct(ctx, params.ProductID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.ProductNotFoundErr
				}
				return fmt.Errorf("product repository get product: %w", err)
			}

			s.metrics.stockRejected()
			return apperr.InsufficientStockErr
		}

		sale, err = s.saleRepo.WithDB(db).CreateSale(ctx, repository.CreateSaleParams{
			ProductID:    params.ProductID,
			ProductTitle: snapshot.Title,
			SalePrice:    params.SalePrice,
			CostBasis:    snapshot.PurchaseCost,
			SaleDate:     saleDate,
			Channel:      params.Channel,
			Notes:        params.Notes,
			Now:          now,
		})
		if err != nil {
			return fmt.Errorf("sale repository create sale: %w", err)
		}

		msg, err := newOutboxMsg(ctx, event.TopicSaleCreated, params.ProductID, event.SaleCreatedEvent{
			SaleID:       sale.ID,
			ProductID:    params.ProductID,
			ProductTitle: sale.ProductTitle,
			SalePrice:    sale.SalePrice.InexactFloat64(),
			CostBasis:    sale.CostBasis.InexactFloat64(),
			SaleDate:     sale.SaleDate.Format(model.SaleDateLayout),
			Channel:      string(sale.Channel),
		})
		if err != nil {
			return err
		}

		if err := s.outboxMsgRepo.WithDB(db).CreateOutboxMsg(ctx, msg); err != nil {
			return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
		}

		return nil
	}); err != nil {
		return model.Sale{}, fmt.Errorf("db with tx: %w", err)
	}

	s.metrics.saleCreated(sale.Channel)
	s.invalidateSummary(ctx)

	return sale, nil
}

func (s *saleService) GetSale(ctx context.Context, id int64) (model.Sale, error) {
	sale, err := s.saleRepo.GetSale(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Sale{}, apperr.SaleNotFoundErr
		}
		return model.Sale{}, fmt.Errorf("sale repository get sale: %w", err)
	}

	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context) ([]model.Sale, error) {
	sales, err := s.saleRepo.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("sale repository list sales: %w", err)
	}

	return sales, nil
}

func (s *saleService) UpdateSale(ctx context.Context, id int64, params UpdateSaleParams) (model.Sale, error) {
	if err := s.validator.Validate(params); err != nil {
		return model.Sale{}, apperr.ValidationErr.WrapParent(err)
	}

	saleDate, err := time.Parse(model.SaleDateLayout, params.SaleDate)
	if err != nil {
		return model.Sale{}, apperr.ValidationErr.WrapParent(err)
	}

	if err := s.saleRepo.UpdateSale(ctx, id, repository.UpdateSaleParams{
		SalePrice: params.SalePrice,
		SaleDate:  saleDate,
		Channel:   params.Channel,
		Notes:     params.Notes,
	}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Sale{}, apperr.SaleNotFoundErr
		}
		return model.Sale{}, fmt.Errorf("sale repository update sale: %w", err)
	}

	s.invalidateSummary(ctx)

	return s.GetSale(ctx, id)
}

func (s *saleService) DeleteSale(ctx context.Context, id int64) error {
	if err := s.db.WithTx(ctx, func(db db.DB) error {
		saleRepo := s.saleRepo.WithDB(db)

		sale, err := saleRepo.GetSale(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.SaleNotFoundErr
			}
			return fmt.Errorf("sale repository get sale: %w", err)
		}

		var restored bool
		if sale.ProductID != nil {
			restored, err = s.productRepo.WithDB(db).IncrementStock(ctx, *sale.ProductID, s.now())
			if err != nil {
				return fmt.Errorf("product repository increment stock: %w", err)
			}
		}

		if err := saleRepo.DeleteSale(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.SaleNotFoundErr
			}
			return fmt.Errorf("sale repository delete sale: %w", err)
		}

		var key int64
		if sale.ProductID != nil {
			key = *sale.ProductID
		}
		msg, err := newOutboxMsg(ctx, event.TopicSaleDeleted, key, event.SaleDeletedEvent{
			SaleID:        id,
			ProductID:     sale.ProductID,
			StockRestored: restored,
		})
		if err != nil {
			return err
		}

		if err := s.outboxMsgRepo.WithDB(db).CreateOutboxMsg(ctx, msg); err != nil {
			return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("db with tx: %w", err)
	}

	s.metrics.saleDeleted()
	s.invalidateSummary(ctx)

	return nil
}

func (s *saleService) invalidateSummary(ctx context.Context) {
	if s.summary == nil {
		return
	}
	if err := s.summary.InvalidateSummary(ctx); err != nil {
		s.logger.WarnContext(ctx, "error invalidating sales summary", slog.Any("error", err))
	}
}

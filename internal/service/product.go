package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/event"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/validator"
)

type CreateProductParams struct {
	Title         string          `validate:"required,max=255"`
	Description   string          `validate:"max=5000"`
	Category      string          `validate:"max=100"`
	StockQuantity int             `validate:"gte=0"`
	PurchaseCost  decimal.Decimal `validate:"dgte=0"`
	ImageRef      string          `validate:"max=1024"`
	Specs         string
}

type ListProductsParams struct {
	Category *string
}

// UpdateProductParams is a partial update. Nil fields keep their current value.
type UpdateProductParams struct {
	Title         *string          `validate:"omitempty,max=255"`
	Description   *string          `validate:"omitempty,max=5000"`
	Category      *string          `validate:"omitempty,max=100"`
	StockQuantity *int             `validate:"omitempty,gte=0"`
	PurchaseCost  *decimal.Decimal `validate:"omitempty,dgte=0"`
	ImageRef      *string          `validate:"omitempty,max=1024"`
	Specs         *string
}

type ProductService interface {
	CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error)
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id int64, params UpdateProductParams) (model.Product, error)
	// DeleteProduct removes the product. Its sales are kept, with their title
	// snapshot filled in when missing.
	DeleteProduct(ctx context.Context, id int64) error
}

type productService struct {
	logger        *slog.Logger
	db            db.DB
	validator     validator.Validator
	productRepo   repository.ProductRepository
	saleRepo      repository.SaleRepository
	outboxMsgRepo repository.OutboxMsgRepository
	imageSvc      ImageService
	now           Clock
}

func NewProductService(
	logger *slog.Logger,
	db db.DB,
	validator validator.Validator,
	productRepo repository.ProductRepository,
	saleRepo repository.SaleRepository,
	outboxMsgRepo repository.OutboxMsgRepository,
	imageSvc ImageService,
) ProductService {
	return &productService{
		logger:        logger.With(slog.String("service", "product")),
		db:            db,
		validator:     validator,
		productRepo:   productRepo,
		saleRepo:      saleRepo,
		outboxMsgRepo: outboxMsgRepo,
		imageSvc:      imageSvc,
		now:           utcNow,
	}
}

func (s *productService) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	params.Title = strings.TrimSpace(params.Title)
	if err := s.validator.Validate(params); err != nil {
		return model.Product{}, apperr.ValidationErr.WrapParent(err)
	}

	var product model.Product
	if err := s.db.WithTx(ctx, func(db db.DB) error {
		var err error
		product, err = s.productRepo.
			WithDB(db).
			CreateProduct(ctx, repository.CreateProductParams{
				Title:         params.Title,
				Description:   params.Description,
				Category:      params.Category,
				StockQuantity: params.StockQuantity,
				PurchaseCost:  params.PurchaseCost,
				ImageRef:      params.ImageRef,
				Specs:         normalizeSpecs(params.Specs),
				Now:           s.now(),
			})
		if err != nil {
			return fmt.Errorf("product repository create product: %w", err)
		}

		msg, err := newOutboxMsg(ctx, event.TopicProductCreated, product.ID, event.ProductCreatedEvent{
			ProductID:     product.ID,
			Title:         product.Title,
			Category:      product.Category,
			StockQuantity: product.StockQuantity,
			PurchaseCost:  product.PurchaseCost.InexactFloat64(),
		})
		if err != nil {
			return err
		}

		if err := s.outboxMsgRepo.WithDB(db).CreateOutboxMsg(ctx, msg); err != nil {
			return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
		}

		return nil
	}); err != nil {
		return model.Product{}, fmt.Errorf("db with tx: %w", err)
	}

	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	product, err := s.productRepo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Product{}, apperr.ProductNotFoundErr
		}
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}

	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, params ListProductsParams) ([]model.Product, error) {
	products, err := s.productRepo.ListProducts(ctx, repository.ListProductsParams{
		Category: params.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("product repository list products: %w", err)
	}

	return products, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id int64, params UpdateProductParams) (model.Product, error) {
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return model.Product{}, apperr.ValidationErr.WithMsg("titulo must not be empty")
		}
		params.Title = &title
	}
	if err := s.validator.Validate(params); err != nil {
		return model.Product{}, apperr.ValidationErr.WrapParent(err)
	}
	if params.Specs != nil {
		specs := normalizeSpecs(*params.Specs)
		params.Specs = &specs
	}

	var (
		updated      model.Product
		oldImage     string
		oldImageRefs = -1
	)
	if err := s.db.WithTx(ctx, func(db db.DB) error {
		productRepo := s.productRepo.WithDB(db)

		current, err := productRepo.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ProductNotFoundErr
			}
			return fmt.Errorf("product repository get product: %w", err)
		}

		updated, err = productRepo.UpdateProduct(ctx, id, repository.ProductChangeSet{
			Title:         params.Title,
			Description:   params.Description,
			Category:      params.Category,
			StockQuantity: params.StockQuantity,
			PurchaseCost:  params.PurchaseCost,
			ImageRef:      params.ImageRef,
			Specs:         params.Specs,
		}, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ProductNotFoundErr
			}
			return fmt.Errorf("product repository update product: %w", err)
		}

		if params.ImageRef != nil && *params.ImageRef != current.ImageRef && current.ImageRef != "" {
			oldImage = current.ImageRef
			oldImageRefs, err = productRepo.CountProductsByImage(ctx, oldImage, id)
			if err != nil {
				return fmt.Errorf("product repository count products by image: %w", err)
			}
		}

		return nil
	}); err != nil {
		return model.Product{}, fmt.Errorf("db with tx: %w", err)
	}

	if oldImage != "" {
		s.imageSvc.ReleaseImage(ctx, oldImage, oldImageRefs)
	}

	return updated, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id int64) error {
	var (
		product   model.Product
		imageRefs int
	)
	if err := s.db.WithTx(ctx, func(db db.DB) error {
		productRepo := s.productRepo.WithDB(db)

		var err error
		product, err = productRepo.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ProductNotFoundErr
			}
			return fmt.Errorf("product repository get product: %w", err)
		}

		backfilled, err := s.saleRepo.WithDB(db).BackfillProductTitle(ctx, id, product.Title)
		if err != nil {
			return fmt.Errorf("sale repository backfill product title: %w", err)
		}

		if product.ImageRef != "" {
			imageRefs, err = productRepo.CountProductsByImage(ctx, product.ImageRef, id)
			if err != nil {
				return fmt.Errorf("product repository count products by image: %w", err)
			}
		}

		if err := productRepo.DeleteProduct(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ProductNotFoundErr
			}
			return fmt.Errorf("product repository delete product: %w", err)
		}

		msg, err := newOutboxMsg(ctx, event.TopicProductDeleted, id, event.ProductDeletedEvent{
			ProductID:       id,
			Title:           product.Title,
			BackfilledSales: backfilled,
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

	s.imageSvc.ReleaseImage(ctx, product.ImageRef, imageRefs)

	return nil
}

package apperr

import "github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"

const (
	ValidationErrorCode        = "VALIDATION_FAILED"
	ProductNotFoundErrorCode   = "PRODUCT_NOT_FOUND"
	SaleNotFoundErrorCode      = "SALE_NOT_FOUND"
	InsufficientStockErrorCode = "INSUFFICIENT_STOCK"
	InvalidUploadErrorCode     = "INVALID_UPLOAD"
	ImageStoreErrorCode        = "IMAGE_STORE_FAILED"
	CSVImportErrorCode         = "CSV_IMPORT_FAILED"
)

var (
	ValidationErr        = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	ProductNotFoundErr   = zerror.NewNotFound(ProductNotFoundErrorCode, "product not found")
	SaleNotFoundErr      = zerror.NewNotFound(SaleNotFoundErrorCode, "sale not found")
	InsufficientStockErr = zerror.NewBadRequest(InsufficientStockErrorCode, "product has no stock left")
	InvalidUploadErr     = zerror.NewBadRequest(InvalidUploadErrorCode, "invalid upload")
	ImageStoreErr        = zerror.NewBadGateway(ImageStoreErrorCode, "image store failure")
	CSVImportErr         = zerror.NewBadRequest(CSVImportErrorCode, "invalid csv file")
)

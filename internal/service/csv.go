package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"
)

// CSVColumns is the column order of exported product files.
var CSVColumns = []string{"titulo", "descricao", "categoria", "quantidade", "valor_compra", "imagem", "especificacoes"}

type ImportRowError struct {
	// Line is the 1-based line number in the file, the header being line 1.
	Line  int    `json:"linha"`
	Error string `json:"erro"`
}

type ImportResult struct {
	Created int              `json:"criados"`
	Updated int              `json:"atualizados"`
	Errors  []ImportRowError `json:"erros"`
}

type CSVService interface {
	ExportProducts(ctx context.Context, w io.Writer) error
	// ImportProducts creates or updates products matched by title. Row failures
	// are collected in the result and do not stop the import.
	ImportProducts(ctx context.Context, r io.Reader) (ImportResult, error)
}

type csvService struct {
	productSvc ProductService
}

func NewCSVService(productSvc ProductService) CSVService {
	return &csvService{productSvc: productSvc}
}

func (s *csvService) ExportProducts(ctx context.Context, w io.Writer) error {
	products, err := s.productSvc.ListProducts(ctx, ListProductsParams{})
	if err != nil {
		return fmt.Errorf("product service list products: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range products {
		if err := cw.Write([]string{
			p.Title,
			p.Description,
			p.Category,
			strconv.Itoa(p.StockQuantity),
			p.PurchaseCost.StringFixed(2),
			p.ImageRef,
			p.Specs,
		}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

func (s *csvService) ImportProducts(ctx context.Context, r io.Reader) (ImportResult, error) {
	result := ImportResult{Errors: []ImportRowError{}}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return result, apperr.CSVImportErr.WithMsg("file is empty")
		}
		return result, apperr.CSVImportErr.WrapParent(err)
	}

	columns := indexColumns(header)
	if _, ok := columns["titulo"]; !ok {
		return result, apperr.CSVImportErr.WithMsg("missing required column: titulo")
	}

	products, err := s.productSvc.ListProducts(ctx, ListProductsParams{})
	if err != nil {
		return result, fmt.Errorf("product service list products: %w", err)
	}

	fold := cases.Fold()
	byTitle := make(map[string]int64, len(products))
	for _, p := range products {
		key := fold.String(strings.TrimSpace(p.Title))
		if _, exists := byTitle[key]; !exists {
			byTitle[key] = p.ID
		}
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Errors = append(result.Errors, ImportRowError{Line: parseErr.Line, Error: parseErr.Err.Error()})
				continue
			}
			return result, apperr.CSVImportErr.WrapParent(err)
		}

		if isBlankRecord(record) {
			continue
		}
		line, _ := cr.FieldPos(0)

		row, err := parseImportRow(columns, record)
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Line: line, Error: err.Error()})
			continue
		}

		key := fold.String(row.title)
		if id, exists := byTitle[key]; exists {
			if _, err := s.productSvc.UpdateProduct(ctx, id, row.toUpdateParams()); err != nil {
				result.Errors = append(result.Errors, ImportRowError{Line: line, Error: rowErrorMessage(err)})
				continue
			}
			result.Updated++
			continue
		}

		product, err := s.productSvc.CreateProduct(ctx, row.toCreateParams())
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Line: line, Error: rowErrorMessage(err)})
			continue
		}
		byTitle[key] = product.ID
		result.Created++
	}

	return result, nil
}

type importRow struct {
	title         string
	description   *string
	category      *string
	stockQuantity *int
	purchaseCost  *decimal.Decimal
	imageRef      *string
	specs         *string
}

func (r importRow) toCreateParams() CreateProductParams {
	params := CreateProductParams{Title: r.title}
	if r.description != nil {
		params.Description = *r.description
	}
	if r.category != nil {
		params.Category = *r.category
	}
	if r.stockQuantity != nil {
		params.StockQuantity = *r.stockQuantity
	}
	if r.purchaseCost != nil {
		params.PurchaseCost = *r.purchaseCost
	}
	if r.imageRef != nil {
		params.ImageRef = *r.imageRef
	}
	if r.specs != nil {
		params.Specs = *r.specs
	}
	return params
}

func (r importRow) toUpdateParams() UpdateProductParams {
	return UpdateProductParams{
		Description:   r.description,
		Category:      r.category,
		StockQuantity: r.stockQuantity,
		PurchaseCost:  r.purchaseCost,
		ImageRef:      r.imageRef,
		Specs:         r.specs,
	}
}

func parseImportRow(columns map[string]int, record []string) (importRow, error) {
	field := func(name string) (string, bool) {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	title, _ := field("titulo")
	if title == "" {
		return importRow{}, errors.New("titulo is required")
	}
	row := importRow{title: title}

	if v, ok := field("descricao"); ok {
		row.description = &v
	}
	if v, ok := field("categoria"); ok {
		row.category = &v
	}
	if v, ok := field("imagem"); ok {
		row.imageRef = &v
	}
	if v, ok := field("especificacoes"); ok && v != "" {
		row.specs = &v
	}

	if v, ok := field("quantidade"); ok && v != "" {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return importRow{}, fmt.Errorf("invalid quantidade: %q", v)
		}
		if qty < 0 {
			return importRow{}, fmt.Errorf("quantidade must not be negative: %d", qty)
		}
		row.stockQuantity = &qty
	}

	if v, ok := field("valor_compra"); ok && v != "" {
		cost, err := parseDecimal(v)
		if err != nil {
			return importRow{}, fmt.Errorf("invalid valor_compra: %q", v)
		}
		if cost.IsNegative() {
			return importRow{}, fmt.Errorf("valor_compra must not be negative: %s", v)
		}
		row.purchaseCost = &cost
	}

	return row, nil
}

// parseDecimal accepts both "1234.5" and the comma decimal form "1234,5".
func parseDecimal(v string) (decimal.Decimal, error) {
	if strings.Contains(v, ",") && !strings.Contains(v, ".") {
		v = strings.ReplaceAll(v, ",", ".")
	}
	return decimal.NewFromString(v)
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, exists := columns[name]; !exists {
			columns[name] = i
		}
	}
	return columns
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func rowErrorMessage(err error) string {
	var zErr zerror.ZError
	if errors.As(err, &zErr) {
		if parent := zErr.Parent(); parent != nil {
			return fmt.Sprintf("%s: %v", zErr.Msg(), parent)
		}
		return zErr.Msg()
	}
	return err.Error()
}

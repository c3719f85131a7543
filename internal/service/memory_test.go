package service

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

// memoryStore backs the in-memory repositories. Transactions are serialized
// and roll back by restoring a snapshot.
type memoryStore struct {
	txMu sync.Mutex

	mu            sync.Mutex
	products      map[int64]model.Product
	sales         map[int64]model.Sale
	outbox        []repository.CreateOutboxMsgParams
	nextProductID int64
	nextSaleID    int64

	// failOutbox makes CreateOutboxMsg fail, to exercise rollbacks.
	failOutbox bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products: map[int64]model.Product{},
		sales:    map[int64]model.Sale{},
	}
}

type memorySnapshot struct {
	products      map[int64]model.Product
	sales         map[int64]model.Sale
	outbox        []repository.CreateOutboxMsgParams
	nextProductID int64
	nextSaleID    int64
}

func (s *memoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memorySnapshot{
		products:      maps.Clone(s.products),
		sales:         maps.Clone(s.sales),
		outbox:        slices.Clone(s.outbox),
		nextProductID: s.nextProductID,
		nextSaleID:    s.nextSaleID,
	}
}

func (s *memoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.sales = snap.sales
	s.outbox = snap.outbox
	s.nextProductID = snap.nextProductID
	s.nextSaleID = snap.nextSaleID
}

func (s *memoryStore) product(id int64) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *memoryStore) outboxTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.outbox))
	for _, msg := range s.outbox {
		topics = append(topics, msg.Topic)
	}
	return topics
}

type memoryDB struct {
	store *memoryStore
	inTx  bool
}

var _ db.DB = (*memoryDB)(nil)

func (d *memoryDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("memory db: raw sql not supported")
}

func (d *memoryDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("memory db: raw sql not supported")
}

func (d *memoryDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (d *memoryDB) WithTx(_ context.Context, txFunc func(db.DB) error) error {
	if d.inTx {
		return txFunc(d)
	}

	d.store.txMu.Lock()
	defer d.store.txMu.Unlock()

	snap := d.store.snapshot()
	if err := txFunc(&memoryDB{store: d.store, inTx: true}); err != nil {
		d.store.restore(snap)
		return err
	}
	return nil
}

type memoryProductRepo struct {
	store *memoryStore
}

func (r *memoryProductRepo) WithDB(db.DB) repository.ProductRepository { return r }

func (r *memoryProductRepo) CreateProduct(_ context.Context, params repository.CreateProductParams) (model.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextProductID++
	p := model.Product{
		ID:            r.store.nextProductID,
		Title:         params.Title,
		Description:   params.Description,
		Category:      params.Category,
		StockQuantity: params.StockQuantity,
		PurchaseCost:  params.PurchaseCost,
		ImageRef:      params.ImageRef,
		Specs:         params.Specs,
		CreatedAt:     params.Now,
		UpdatedAt:     params.Now,
	}
	r.store.products[p.ID] = p
	return p, nil
}

func (r *memoryProductRepo) GetProduct(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.store.product(id)
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *memoryProductRepo) ListProducts(_ context.Context, params repository.ListProductsParams) ([]model.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	products := make([]model.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		if params.Category != nil && p.Category != *params.Category {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b model.Product) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return products, nil
}

func (r *memoryProductRepo) UpdateProduct(_ context.Context, id int64, cs repository.ProductChangeSet, now time.Time) (model.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[id]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	if cs.Title != nil {
		p.Title = *cs.Title
	}
	if cs.Description != nil {
		p.Description = *cs.Description
	}
	if cs.Category != nil {
		p.Category = *cs.Category
	}
	if cs.StockQuantity != nil {
		p.StockQuantity = *cs.StockQuantity
	}
	if cs.PurchaseCost != nil {
		p.PurchaseCost = *cs.PurchaseCost
	}
	if cs.ImageRef != nil {
		p.ImageRef = *cs.ImageRef
	}
	if cs.Specs != nil {
		p.Specs = *cs.Specs
	}
	p.UpdatedAt = now
	r.store.products[id] = p
	return p, nil
}

func (r *memoryProductRepo) DeleteProduct(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.store.products, id)
	return nil
}

func (r *memoryProductRepo) CountProductsByImage(_ context.Context, imageRef string, excludeID int64) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int
	for id, p := range r.store.products {
		if id != excludeID && p.ImageRef == imageRef {
			count++
		}
	}
	return count, nil
}

func (r *memoryProductRepo) DecrementStock(_ context.Context, id int64, now time.Time) (repository.StockSnapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[id]
	if !ok || p.StockQuantity <= 0 {
		return repository.StockSnapshot{}, repository.ErrNotFound
	}
	p.StockQuantity--
	p.UpdatedAt = now
	r.store.products[id] = p
	return repository.StockSnapshot{Title: p.Title, PurchaseCost: p.PurchaseCost}, nil
}

func (r *memoryProductRepo) IncrementStock(_ context.Context, id int64, now time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[id]
	if !ok {
		return false, nil
	}
	p.StockQuantity++
	p.UpdatedAt = now
	r.store.products[id] = p
	return true, nil
}

type memorySaleRepo struct {
	store *memoryStore
}

func (r *memorySaleRepo) WithDB(db.DB) repository.SaleRepository { return r }

func (r *memorySaleRepo) CreateSale(_ context.Context, params repository.CreateSaleParams) (model.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextSaleID++
	productID := params.ProductID
	sale := model.Sale{
		ID:           r.store.nextSaleID,
		ProductID:    &productID,
		ProductTitle: params.ProductTitle,
		SalePrice:    params.SalePrice,
		CostBasis:    params.CostBasis,
		SaleDate:     params.SaleDate,
		Channel:      params.Channel,
		Notes:        params.Notes,
		CreatedAt:    params.Now,
	}
	r.store.sales[sale.ID] = sale
	return r.withLiveTitle(sale), nil
}

// withLiveTitle emulates the join on produtos. Callers hold store.mu.
func (r *memorySaleRepo) withLiveTitle(sale model.Sale) model.Sale {
	sale.LiveProductTitle = ""
	if sale.ProductID != nil {
		if p, ok := r.store.products[*sale.ProductID]; ok {
			sale.LiveProductTitle = p.Title
		}
	}
	return sale
}

func (r *memorySaleRepo) GetSale(_ context.Context, id int64) (model.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sale, ok := r.store.sales[id]
	if !ok {
		return model.Sale{}, repository.ErrNotFound
	}
	return r.withLiveTitle(sale), nil
}

func (r *memorySaleRepo) ListSales(context.Context) ([]model.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sales := make([]model.Sale, 0, len(r.store.sales))
	for _, sale := range r.store.sales {
		sales = append(sales, r.withLiveTitle(sale))
	}
	slices.SortFunc(sales, func(a, b model.Sale) int {
		if c := b.SaleDate.Compare(a.SaleDate); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sales, nil
}

func (r *memorySaleRepo) UpdateSale(_ context.Context, id int64, params repository.UpdateSaleParams) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sale, ok := r.store.sales[id]
	if !ok {
		return repository.ErrNotFound
	}
	sale.SalePrice = params.SalePrice
	sale.SaleDate = params.SaleDate
	sale.Channel = params.Channel
	sale.Notes = params.Notes
	r.store.sales[id] = sale
	return nil
}

func (r *memorySaleRepo) DeleteSale(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sales[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.store.sales, id)
	return nil
}

func (r *memorySaleRepo) BackfillProductTitle(_ context.Context, productID int64, title string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, sale := range r.store.sales {
		if sale.ProductID != nil && *sale.ProductID == productID && sale.ProductTitle == "" {
			sale.ProductTitle = title
			r.store.sales[id] = sale
			n++
		}
	}
	return n, nil
}

func (r *memorySaleRepo) SummarizeSales(context.Context) ([]repository.SaleSummaryRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	type key struct {
		month   string
		channel model.Channel
	}
	agg := map[key]repository.SaleSummaryRow{}
	for _, sale := range r.store.sales {
		k := key{month: sale.SaleDate.Format("2006-01"), channel: sale.Channel}
		row := agg[k]
		row.Month = k.month
		row.Channel = k.channel
		row.Count++
		row.Revenue = row.Revenue.Add(sale.SalePrice)
		row.CostBasis = row.CostBasis.Add(sale.CostBasis)
		agg[k] = row
	}

	rows := slices.Collect(maps.Values(agg))
	slices.SortFunc(rows, func(a, b repository.SaleSummaryRow) int {
		if c := strings.Compare(b.Month, a.Month); c != 0 {
			return c
		}
		return strings.Compare(string(a.Channel), string(b.Channel))
	})
	return rows, nil
}

type memoryOutboxRepo struct {
	store *memoryStore
}

func (r *memoryOutboxRepo) WithDB(db.DB) repository.OutboxMsgRepository { return r }

func (r *memoryOutboxRepo) CreateOutboxMsg(_ context.Context, params repository.CreateOutboxMsgParams) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.failOutbox {
		return errors.New("outbox unavailable")
	}
	r.store.outbox = append(r.store.outbox, params)
	return nil
}

func (r *memoryOutboxRepo) ListUnprocessedOutboxMsgs(context.Context, repository.ListUnprocessedOutboxMsgsParams) ([]repository.ListUnprocessedOutboxMsgsResult, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) BulkUpdateOutboxMsgs(context.Context, repository.BulkUpdateOutboxMsgsParams) error {
	return nil
}

// recordingImageService records released images instead of deleting them.
type recordingImageService struct {
	mu       sync.Mutex
	released []string
}

func (s *recordingImageService) UploadImage(_ context.Context, params UploadImageParams) (string, error) {
	return params.Filename, nil
}

func (s *recordingImageService) ReleaseImage(_ context.Context, ref string, otherRefs int) {
	if ref == "" || otherRefs > 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, ref)
}

type countingSummary struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSummary) InvalidateSummary(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

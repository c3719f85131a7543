package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/log"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/mq"
)

type fakeDB struct{}

func (fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (f fakeDB) WithTx(_ context.Context, txFunc func(db.DB) error) error {
	return txFunc(f)
}

type fakeOutboxRepo struct {
	pending []repository.ListUnprocessedOutboxMsgsResult
	updated []repository.BulkUpdateOutboxMsgsItem
}

func (r *fakeOutboxRepo) WithDB(db.DB) repository.OutboxMsgRepository { return r }

func (r *fakeOutboxRepo) CreateOutboxMsg(context.Context, repository.CreateOutboxMsgParams) error {
	return nil
}

func (r *fakeOutboxRepo) ListUnprocessedOutboxMsgs(_ context.Context, params repository.ListUnprocessedOutboxMsgsParams) ([]repository.ListUnprocessedOutboxMsgsResult, error) {
	n := min(int(params.BatchSize), len(r.pending))
	return r.pending[:n], nil
}

func (r *fakeOutboxRepo) BulkUpdateOutboxMsgs(_ context.Context, params repository.BulkUpdateOutboxMsgsParams) error {
	r.updated = append(r.updated, params.Items...)
	return nil
}

type fakeProducer struct {
	mu       sync.Mutex
	produced []mq.ProduceMsg
	failOn   string
}

func (p *fakeProducer) Produce(_ context.Context, msg mq.ProduceMsg) error {
	if msg.Topic == p.failOn {
		return errors.New("broker unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.produced = append(p.produced, msg)
	return nil
}

func TestRelayBatch(t *testing.T) {
	ctx := context.Background()
	saleID := uuid.New()
	productID := uuid.New()

	repo := &fakeOutboxRepo{
		pending: []repository.ListUnprocessedOutboxMsgsResult{
			{ID: saleID, Topic: "sale.created", Payload: []byte(`{"sale_id":1}`)},
			{ID: productID, Topic: "product.deleted", Payload: []byte(`{"product_id":1}`)},
		},
	}
	producer := &fakeProducer{failOn: "product.deleted"}

	svc := NewService(config.Relay{BatchSize: 10, Concurrency: 2}, log.Discard(), fakeDB{}, repo, producer)

	relayed, err := svc.RelayBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, relayed)

	require.Len(t, producer.produced, 1)
	assert.Equal(t, "sale.created", producer.produced[0].Topic)

	require.Len(t, repo.updated, 2)
	byID := map[uuid.UUID]repository.BulkUpdateOutboxMsgsItem{}
	for _, item := range repo.updated {
		byID[item.ID] = item
	}
	assert.Nil(t, byID[saleID].Error)
	if assert.NotNil(t, byID[productID].Error) {
		assert.Contains(t, *byID[productID].Error, "broker unavailable")
	}
}

func TestRelayBatchEmpty(t *testing.T) {
	repo := &fakeOutboxRepo{}
	svc := NewService(config.Relay{BatchSize: 10}, log.Discard(), fakeDB{}, repo, &fakeProducer{})

	relayed, err := svc.RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, relayed)
	assert.Empty(t, repo.updated)
}

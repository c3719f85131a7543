package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/cache"
)

func TestBuildSalesSummary(t *testing.T) {
	d := decimal.RequireFromString

	summary := buildSalesSummary([]repository.SaleSummaryRow{
		{Month: "2024-02", Channel: model.ChannelMercadoLivre, Count: 2, Revenue: d("30"), CostBasis: d("20")},
		{Month: "2024-02", Channel: model.ChannelShopee, Count: 1, Revenue: d("12.50"), CostBasis: d("10")},
		{Month: "2024-01", Channel: model.ChannelShopee, Count: 1, Revenue: d("8"), CostBasis: d("9")},
	})

	require.Len(t, summary.Months, 2)

	feb := summary.Months[0]
	assert.Equal(t, "2024-02", feb.Month)
	assert.Equal(t, int64(3), feb.Count)
	assert.True(t, d("42.5").Equal(feb.Revenue))
	assert.True(t, d("12.5").Equal(feb.Profit))
	require.Len(t, feb.Channels, 2)
	assert.Equal(t, model.ChannelMercadoLivre, feb.Channels[0].Channel)

	jan := summary.Months[1]
	assert.Equal(t, "2024-01", jan.Month)
	assert.True(t, d("-1").Equal(jan.Profit))

	require.Len(t, summary.Channels, len(model.Channels))
	for _, c := range summary.Channels {
		switch c.Channel {
		case model.ChannelMercadoLivre:
			assert.Equal(t, int64(2), c.Count)
			assert.True(t, d("10").Equal(c.Profit))
		case model.ChannelShopee:
			assert.Equal(t, int64(2), c.Count)
			assert.True(t, d("1.5").Equal(c.Profit))
		}
	}

	assert.Equal(t, int64(4), summary.Totals.Count)
	assert.True(t, d("50.5").Equal(summary.Totals.Revenue))
	assert.True(t, d("11.5").Equal(summary.Totals.Profit))
}

func TestBuildSalesSummaryEmpty(t *testing.T) {
	summary := buildSalesSummary(nil)

	assert.NotNil(t, summary.Months)
	assert.Empty(t, summary.Months)
	require.Len(t, summary.Channels, len(model.Channels))
	assert.Zero(t, summary.Totals.Count)
}

func TestSummaryServiceCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := newTestLedger(t)
	svc := NewSummaryService(&memorySaleRepo{store: l.store}, cache.NewJSONCache(client, time.Minute))

	p := l.mustCreateProduct(t, "Widget", 5, "10")
	l.mustCreateSale(t, p.ID, "15", "2024-01-01")

	summary, err := svc.GetSalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Totals.Count)
	assert.True(t, mr.Exists(salesSummaryCacheKey))

	l.mustCreateSale(t, p.ID, "20", "2024-01-02")

	cached, err := svc.GetSalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.Totals.Count)

	require.NoError(t, svc.InvalidateSummary(ctx))
	assert.False(t, mr.Exists(salesSummaryCacheKey))

	fresh, err := svc.GetSalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.Totals.Count)
	assert.True(t, decimal.RequireFromString("15").Equal(fresh.Totals.Profit))
}

func TestSummaryServiceWithoutRedis(t *testing.T) {
	l := newTestLedger(t)
	svc := NewSummaryService(&memorySaleRepo{store: l.store}, cache.NewJSONCache(nil, time.Minute))

	p := l.mustCreateProduct(t, "Widget", 5, "10")
	l.mustCreateSale(t, p.ID, "15", "2024-01-01")

	summary, err := svc.GetSalesSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Totals.Count)
	assert.NoError(t, svc.InvalidateSummary(context.Background()))
}

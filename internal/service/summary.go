package service

import (
	"context"
	"fmt"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/cache"
)

const salesSummaryCacheKey = "stock-ledger:sales:summary"

type SummaryService interface {
	SummaryInvalidator
	GetSalesSummary(ctx context.Context) (model.SalesSummary, error)
}

type summaryService struct {
	saleRepo repository.SaleRepository
	cache    *cache.JSONCache
}

func NewSummaryService(saleRepo repository.SaleRepository, cache *cache.JSONCache) SummaryService {
	return &summaryService{
		saleRepo: saleRepo,
		cache:    cache,
	}
}

func (s *summaryService) GetSalesSummary(ctx context.Context) (model.SalesSummary, error) {
	var summary model.SalesSummary
	if err := s.cache.Fetch(ctx, salesSummaryCacheKey, &summary, func(ctx context.Context) (any, error) {
		rows, err := s.saleRepo.SummarizeSales(ctx)
		if err != nil {
			return nil, fmt.Errorf("sale repository summarize sales: %w", err)
		}
		return buildSalesSummary(rows), nil
	}); err != nil {
		return model.SalesSummary{}, err
	}

	return summary, nil
}

func (s *summaryService) InvalidateSummary(ctx context.Context) error {
	return s.cache.Invalidate(ctx, salesSummaryCacheKey)
}

// buildSalesSummary folds rows ordered by month descending into the summary.
func buildSalesSummary(rows []repository.SaleSummaryRow) model.SalesSummary {
	summary := model.SalesSummary{
		Months:   []model.MonthSummary{},
		Channels: make([]model.ChannelSummary, 0, len(model.Channels)),
	}

	channelTotals := map[model.Channel]model.SalesTotals{}
	for _, row := range rows {
		if n := len(summary.Months); n == 0 || summary.Months[n-1].Month != row.Month {
			summary.Months = append(summary.Months, model.MonthSummary{
				Month:    row.Month,
				Channels: []model.ChannelSummary{},
			})
		}

		month := &summary.Months[len(summary.Months)-1]
		month.SalesTotals = month.SalesTotals.Add(row.Count, row.Revenue, row.CostBasis)
		month.Channels = append(month.Channels, model.ChannelSummary{
			Channel:     row.Channel,
			SalesTotals: model.SalesTotals{}.Add(row.Count, row.Revenue, row.CostBasis),
		})

		channelTotals[row.Channel] = channelTotals[row.Channel].Add(row.Count, row.Revenue, row.CostBasis)
		summary.Totals = summary.Totals.Add(row.Count, row.Revenue, row.CostBasis)
	}

	for _, channel := range model.Channels {
		summary.Channels = append(summary.Channels, model.ChannelSummary{
			Channel:     channel,
			SalesTotals: channelTotals[channel],
		})
	}

	return summary
}

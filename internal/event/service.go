package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/mq"
)

// SummaryInvalidator drops cached sales summaries.
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context) error
}

// Service is the event service.
type Service struct {
	logger      *slog.Logger
	mqConsumer  mq.Consumer
	invalidator SummaryInvalidator
}

// New creates a new event service.
func New(
	logger *slog.Logger,
	mqConsumer mq.Consumer,
	invalidator SummaryInvalidator,
) *Service {
	return &Service{
		logger:      logger.With(slog.String("service", "event")),
		mqConsumer:  mqConsumer,
		invalidator: invalidator,
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	handlers := map[string]mq.HandlerFunc{
		TopicProductCreated: jsonHandler(s.handleProductCreatedEvent),
		TopicProductDeleted: jsonHandler(s.handleProductDeletedEvent),
		TopicSaleCreated:    jsonHandler(s.handleSaleCreatedEvent),
		TopicSaleDeleted:    jsonHandler(s.handleSaleDeletedEvent),
	}

	for topic, handler := range handlers {
		if err := s.mqConsumer.RegisterHandler(topic, handler); err != nil {
			return nil, fmt.Errorf("register %s handler: %w", topic, err)
		}
	}

	mqCleanup, err := s.mqConsumer.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run mq consumer: %w", err)
	}

	cleanup := func() {
		mqCleanup()
	}

	return cleanup, nil
}

func jsonHandler[T any](fn func(context.Context, T) error) mq.HandlerFunc {
	return func(ctx context.Context, topic string, payload []byte) error {
		var ev T
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("unmarshal %s event: %w", topic, err)
		}

		if err := fn(ctx, ev); err != nil {
			return fmt.Errorf("handle %s event: %w", topic, err)
		}

		return nil
	}
}

func (s *Service) handleProductCreatedEvent(ctx context.Context, ev ProductCreatedEvent) error {
	s.logger.InfoContext(ctx, "product created", slog.Any("event", ev))
	return nil
}

func (s *Service) handleProductDeletedEvent(ctx context.Context, ev ProductDeletedEvent) error {
	s.logger.InfoContext(ctx, "product deleted", slog.Any("event", ev))
	return nil
}

func (s *Service) handleSaleCreatedEvent(ctx context.Context, ev SaleCreatedEvent) error {
	s.logger.InfoContext(ctx, "sale created", slog.Any("event", ev))
	return s.invalidator.InvalidateSummary(ctx)
}

func (s *Service) handleSaleDeletedEvent(ctx context.Context, ev SaleDeletedEvent) error {
	s.logger.InfoContext(ctx, "sale deleted", slog.Any("event", ev))
	return s.invalidator.InvalidateSummary(ctx)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/outbox"
)

// Clock returns the current time. Tests replace it to pin timestamps.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

func newOutboxMsg(ctx context.Context, topic string, key int64, ev any) (repository.CreateOutboxMsgParams, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return repository.CreateOutboxMsgParams{}, fmt.Errorf("marshal %s event: %w", topic, err)
	}

	partitionKey := strconv.FormatInt(key, 10)
	return repository.CreateOutboxMsgParams{
		Topic:        topic,
		Headers:      outbox.BuildHeaders(ctx),
		Payload:      payload,
		PartitionKey: &partitionKey,
	}, nil
}

// normalizeSpecs returns specs when it is a JSON object and "{}" otherwise.
func normalizeSpecs(specs string) string {
	specs = strings.TrimSpace(specs)
	if specs == "" {
		return "{}"
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(specs), &obj); err != nil || obj == nil {
		return "{}"
	}

	return specs
}

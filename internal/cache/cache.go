package cache

import (
	"context"
	"time"

	"tindapos/backend/internal/domain"
)

// ReceiptCache fronts receipt lookups. Entries must be invalidated whenever a
// refund or void changes the stored transaction.
type ReceiptCache interface {
	Get(ctx context.Context, receiptNum string) (*domain.Transaction, bool, error)
	Set(ctx context.Context, receiptNum string, tx *domain.Transaction, ttl time.Duration) error
	Invalidate(ctx context.Context, receiptNum string) error
}

type NoopReceiptCache struct{}

func (NoopReceiptCache) Get(_ context.Context, _ string) (*domain.Transaction, bool, error) {
	return nil, false, nil
}

func (NoopReceiptCache) Set(_ context.Context, _ string, _ *domain.Transaction, _ time.Duration) error {
	return nil
}

func (NoopReceiptCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

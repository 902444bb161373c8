package limits

import (
    "context"
    "time"

    "spendlimit/internal/store"
)

// AggregateStore persists one running total per (date, provider, type).
// Mutating calls are only made while holding the matching aggregate lease.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=interface.go
type AggregateStore interface {
    FindByDateProviderType(ctx context.Context, date time.Time, provider, txType string) (store.DailyAggregate, bool, error)
    Create(ctx context.Context, agg store.DailyAggregate) (store.DailyAggregate, error)
    UpdateAmount(ctx context.Context, id int64, amount int64) (store.DailyAggregate, error)
    SumByProviderTypeSince(ctx context.Context, provider, txType string, since time.Time) ([]store.DailyAggregate, error)
}

// LimitRegistry is read-only from the service's point of view.
type LimitRegistry interface {
    GetLimitValue(ctx context.Context, provider, limitType, currency string) (int64, error)
    ListLimits(ctx context.Context, provider *string) ([]store.ProviderLimit, error)
}

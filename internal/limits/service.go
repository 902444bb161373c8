// Package limits enforces per-provider rolling 7-day deposit and withdrawal
// ceilings on top of daily aggregates.
//
// ValidateWeeklyLimit reads without taking any lease, so it can observe a sum
// that is stale by one concurrent RecordMovement. The window is a guard
// against gradual abuse, not an atomic ledger; that race is accepted.
//
// A provider/currency pair with no active limit is not enforced (fail-open)
// and a warning is logged. Store failures are never read as "under the limit".
package limits

import (
    "context"
    "errors"
    "fmt"
    "math"
    "strings"
    "time"

    "go.uber.org/zap"

    "spendlimit/internal/lock"
    "spendlimit/internal/store"
)

const DefaultWindowDays = 7

type Config struct {
    // Lock is applied to every aggregate lease. Zero fields use the
    // Locker's defaults.
    Lock lock.Options
    // WindowDays is the rolling window length in calendar days.
    WindowDays int
    // Now is the clock used to pick "today"; the UTC calendar date of its
    // result keys the daily aggregate.
    Now func() time.Time
}

type Service struct {
    aggregates AggregateStore
    registry   LimitRegistry
    locker     *lock.Locker
    logger     *zap.Logger
    lockOpts   lock.Options
    windowDays int
    now        func() time.Time
}

func NewService(aggregates AggregateStore, registry LimitRegistry, locker *lock.Locker, logger *zap.Logger, cfg Config) *Service {
    if logger == nil {
        logger = zap.NewNop()
    }
    if cfg.WindowDays <= 0 {
        cfg.WindowDays = DefaultWindowDays
    }
    if cfg.Now == nil {
        cfg.Now = time.Now
    }
    return &Service{
        aggregates: aggregates,
        registry:   registry,
        locker:     locker,
        logger:     logger,
        lockOpts:   cfg.Lock,
        windowDays: cfg.WindowDays,
        now:        cfg.Now,
    }
}

// Usage is a snapshot of one provider's rolling window for one type.
type Usage struct {
    Provider        string
    TransactionType string
    Currency        string
    WindowStart     time.Time
    CurrentSum      int64
    Limit           int64
    Configured      bool
    Remaining       int64
}

// Locker exposes the lease manager for callers that need a critical section
// wider than one aggregate update.
func (s *Service) Locker() *lock.Locker {
    return s.locker
}

// AggregateLockKey names the lease guarding the aggregate for one day.
// Every writer of that row must use this key.
func AggregateLockKey(day time.Time, provider, txType string) string {
    return fmt.Sprintf("transaction-aggregate:%s:%s:%s", store.Day(day).Format(store.DateLayout), provider, txType)
}

// LimitTypeFor maps a transaction type to the weekly limit that governs it.
func LimitTypeFor(txType string) string {
    if txType == store.TransactionTypeDeposit {
        return store.LimitTypeWeeklyDeposit
    }
    return store.LimitTypeWeeklyWithdrawal
}

// ParseTransactionType normalizes raw to one of the known transaction types.
func ParseTransactionType(raw string) (string, error) {
    switch t := strings.ToLower(strings.TrimSpace(raw)); t {
    case store.TransactionTypeDeposit, store.TransactionTypeWithdrawal:
        return t, nil
    default:
        return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
    }
}

// WindowStart is the first calendar day (inclusive) of the rolling window
// that ends today.
func (s *Service) WindowStart() time.Time {
    return store.Day(s.now()).AddDate(0, 0, -s.windowDays)
}

// ValidateWeeklyLimit reports whether adding amount to provider's rolling
// window for txType stays within the configured ceiling. It never mutates
// state. A rejection is a *LimitExceededError.
func (s *Service) ValidateWeeklyLimit(ctx context.Context, provider, userID, txType string, amount int64, currency string) error {
    currentSum, err := s.rollingSum(ctx, provider, txType)
    if err != nil {
        validations.WithLabelValues(txType, "error").Inc()
        return err
    }

    limitType := LimitTypeFor(txType)
    limit, err := s.limitValue(ctx, provider, limitType, currency)
    if err != nil {
        if errors.Is(err, ErrLimitNotConfigured) {
            validations.WithLabelValues(txType, "unconfigured").Inc()
            s.logger.Warn("weekly_limit_not_configured",
                zap.String("provider", provider),
                zap.String("limit_type", limitType),
                zap.String("currency", currency),
                zap.String("user_id", userID),
            )
            return nil
        }
        validations.WithLabelValues(txType, "error").Inc()
        return err
    }

    attempted := abs(amount)
    if attempted > math.MaxInt64-currentSum || currentSum+attempted > limit {
        validations.WithLabelValues(txType, "rejected").Inc()
        s.logger.Info("weekly_limit_exceeded",
            zap.String("provider", provider),
            zap.String("transaction_type", txType),
            zap.String("user_id", userID),
            zap.Int64("current_sum", currentSum),
            zap.Int64("amount", attempted),
            zap.Int64("limit", limit),
            zap.String("currency", currency),
        )
        return &LimitExceededError{
            Provider:        provider,
            TransactionType: txType,
            CurrentSum:      currentSum,
            Attempted:       attempted,
            Limit:           limit,
            Currency:        currency,
        }
    }

    validations.WithLabelValues(txType, "accepted").Inc()
    return nil
}

// RecordMovement adds delta to today's aggregate for provider/txType,
// creating the row on the first movement of the day. The read-modify-write
// runs under the aggregate lease, so concurrent callers for the same key are
// serialized and no delta is lost.
func (s *Service) RecordMovement(ctx context.Context, provider, txType string, delta int64) (store.DailyAggregate, error) {
    today := store.Day(s.now())
    key := AggregateLockKey(today, provider, txType)

    agg, err := lock.WithLock(ctx, s.locker, key, func(ctx context.Context) (store.DailyAggregate, error) {
        return s.applyDelta(ctx, today, provider, txType, delta)
    }, s.lockOpts)
    if err != nil {
        return store.DailyAggregate{}, err
    }

    movements.WithLabelValues(txType).Inc()
    s.logger.Info("movement_recorded",
        zap.String("provider", provider),
        zap.String("transaction_type", txType),
        zap.String("date", today.Format(store.DateLayout)),
        zap.Int64("delta", delta),
        zap.Int64("amount", agg.Amount),
    )
    return agg, nil
}

func (s *Service) applyDelta(ctx context.Context, today time.Time, provider, txType string, delta int64) (store.DailyAggregate, error) {
    existing, found, err := s.aggregates.FindByDateProviderType(ctx, today, provider, txType)
    if err != nil {
        return store.DailyAggregate{}, fmt.Errorf("%w: find aggregate: %w", ErrStoreUnavailable, err)
    }

    if found {
        if (delta > 0 && existing.Amount > math.MaxInt64-delta) || (delta < 0 && existing.Amount < math.MinInt64-delta) {
            return store.DailyAggregate{}, ErrAmountOverflow
        }
        updated, err := s.aggregates.UpdateAmount(ctx, existing.ID, existing.Amount+delta)
        if err != nil {
            return store.DailyAggregate{}, fmt.Errorf("%w: update aggregate: %w", ErrStoreUnavailable, err)
        }
        return updated, nil
    }

    created, err := s.aggregates.Create(ctx, store.DailyAggregate{
        Date:            today,
        Provider:        provider,
        TransactionType: txType,
        Amount:          delta,
    })
    if err != nil {
        // A unique violation here means another writer created the row
        // without holding the lease, or after ours expired.
        if errors.Is(err, store.ErrAggregateExists) {
            return store.DailyAggregate{}, fmt.Errorf("create aggregate: %w", err)
        }
        return store.DailyAggregate{}, fmt.Errorf("%w: create aggregate: %w", ErrStoreUnavailable, err)
    }
    return created, nil
}

// RollingUsage reports the current window sum and headroom for
// provider/txType in currency.
func (s *Service) RollingUsage(ctx context.Context, provider, txType, currency string) (Usage, error) {
    currentSum, err := s.rollingSum(ctx, provider, txType)
    if err != nil {
        return Usage{}, err
    }

    u := Usage{
        Provider:        provider,
        TransactionType: txType,
        Currency:        currency,
        WindowStart:     s.WindowStart(),
        CurrentSum:      currentSum,
    }

    limit, err := s.limitValue(ctx, provider, LimitTypeFor(txType), currency)
    if err != nil {
        if errors.Is(err, ErrLimitNotConfigured) {
            return u, nil
        }
        return Usage{}, err
    }
    u.Configured = true
    u.Limit = limit
    if limit > currentSum {
        u.Remaining = limit - currentSum
    }
    return u, nil
}

// ListLimits returns the active limits, optionally for one provider.
func (s *Service) ListLimits(ctx context.Context, provider *string) ([]store.ProviderLimit, error) {
    out, err := s.registry.ListLimits(ctx, provider)
    if err != nil {
        return nil, fmt.Errorf("%w: list limits: %w", ErrStoreUnavailable, err)
    }
    return out, nil
}

// rollingSum is the magnitude of the summed aggregates in the window.
// Withdrawals may be recorded as negative deltas; the ceiling applies to the
// absolute total.
func (s *Service) rollingSum(ctx context.Context, provider, txType string) (int64, error) {
    aggregates, err := s.aggregates.SumByProviderTypeSince(ctx, provider, txType, s.WindowStart())
    if err != nil {
        return 0, fmt.Errorf("%w: sum aggregates: %w", ErrStoreUnavailable, err)
    }

    var sum int64
    for _, agg := range aggregates {
        sum += agg.Amount
    }
    return abs(sum), nil
}

func (s *Service) limitValue(ctx context.Context, provider, limitType, currency string) (int64, error) {
    limit, err := s.registry.GetLimitValue(ctx, provider, limitType, currency)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            return 0, fmt.Errorf("%w: %s/%s/%s", ErrLimitNotConfigured, provider, limitType, currency)
        }
        return 0, fmt.Errorf("%w: get limit: %w", ErrStoreUnavailable, err)
    }
    return limit, nil
}

func abs(v int64) int64 {
    if v < 0 {
        if v == math.MinInt64 {
            return math.MaxInt64
        }
        return -v
    }
    return v
}

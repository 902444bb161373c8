package store

import (
    "context"
    "sort"
    "sync"
    "time"
)

type aggregateKey struct {
    date     time.Time
    provider string
    txType   string
}

type limitKey struct {
    provider  string
    limitType string
    currency  string
}

// Memory is an in-process aggregate store and limit registry. It mirrors the
// Postgres constraints (one aggregate per date/provider/type, one active limit
// per provider/limit type/currency) and is safe for concurrent use.
type Memory struct {
    mu         sync.RWMutex
    now        func() time.Time
    nextID     int64
    aggregates map[int64]DailyAggregate
    byKey      map[aggregateKey]int64
    limits     map[limitKey]ProviderLimit
}

func NewMemory() *Memory {
    return &Memory{
        now:        time.Now,
        aggregates: make(map[int64]DailyAggregate),
        byKey:      make(map[aggregateKey]int64),
        limits:     make(map[limitKey]ProviderLimit),
    }
}

func (m *Memory) FindByDateProviderType(_ context.Context, date time.Time, provider, txType string) (DailyAggregate, bool, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()

    id, ok := m.byKey[aggregateKey{date: Day(date), provider: provider, txType: txType}]
    if !ok {
        return DailyAggregate{}, false, nil
    }
    return m.aggregates[id], true, nil
}

func (m *Memory) Create(_ context.Context, agg DailyAggregate) (DailyAggregate, error) {
    m.mu.Lock()
    defer m.mu.Unlock()

    key := aggregateKey{date: Day(agg.Date), provider: agg.Provider, txType: agg.TransactionType}
    if _, exists := m.byKey[key]; exists {
        return DailyAggregate{}, ErrAggregateExists
    }

    m.nextID++
    now := m.now().UTC()
    created := DailyAggregate{
        ID:              m.nextID,
        Date:            key.date,
        Provider:        agg.Provider,
        TransactionType: agg.TransactionType,
        Amount:          agg.Amount,
        CreatedAt:       now,
        UpdatedAt:       now,
    }
    m.aggregates[created.ID] = created
    m.byKey[key] = created.ID
    return created, nil
}

func (m *Memory) UpdateAmount(_ context.Context, id int64, amount int64) (DailyAggregate, error) {
    m.mu.Lock()
    defer m.mu.Unlock()

    agg, ok := m.aggregates[id]
    if !ok {
        return DailyAggregate{}, ErrNotFound
    }
    agg.Amount = amount
    agg.UpdatedAt = m.now().UTC()
    m.aggregates[id] = agg
    return agg, nil
}

func (m *Memory) SumByProviderTypeSince(_ context.Context, provider, txType string, since time.Time) ([]DailyAggregate, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()

    from := Day(since)
    var out []DailyAggregate
    for _, agg := range m.aggregates {
        if agg.Provider != provider || agg.TransactionType != txType {
            continue
        }
        if agg.Date.Before(from) {
            continue
        }
        out = append(out, agg)
    }
    sort.Slice(out, func(i, j int) bool {
        return out[i].Date.Before(out[j].Date)
    })
    return out, nil
}

func (m *Memory) GetLimitValue(_ context.Context, provider, limitType, currency string) (int64, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()

    l, ok := m.limits[limitKey{provider: provider, limitType: limitType, currency: currency}]
    if !ok || !l.IsActive {
        return 0, ErrNotFound
    }
    return l.LimitValue, nil
}

func (m *Memory) ListLimits(_ context.Context, provider *string) ([]ProviderLimit, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()

    var out []ProviderLimit
    for _, l := range m.limits {
        if !l.IsActive {
            continue
        }
        if provider != nil && l.Provider != *provider {
            continue
        }
        out = append(out, l)
    }
    sort.Slice(out, func(i, j int) bool {
        a, b := out[i], out[j]
        if a.Provider != b.Provider {
            return a.Provider < b.Provider
        }
        if a.LimitType != b.LimitType {
            return a.LimitType < b.LimitType
        }
        return a.Currency < b.Currency
    })
    return out, nil
}

func (m *Memory) UpsertLimit(_ context.Context, input UpsertLimitInput) (ProviderLimit, error) {
    if input.LimitValue <= 0 {
        return ProviderLimit{}, ErrInvalidLimit
    }

    m.mu.Lock()
    defer m.mu.Unlock()

    m.nextID++
    now := m.now().UTC()
    l := ProviderLimit{
        ID:          m.nextID,
        Provider:    input.Provider,
        LimitType:   input.LimitType,
        Currency:    input.Currency,
        LimitValue:  input.LimitValue,
        IsActive:    true,
        Description: input.Description,
        CreatedAt:   now,
        UpdatedAt:   now,
    }
    m.limits[limitKey{provider: input.Provider, limitType: input.LimitType, currency: input.Currency}] = l
    return l, nil
}

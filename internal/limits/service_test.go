package limits_test

import (
    "context"
    "errors"
    "math/rand"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/golang/mock/gomock"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zaptest/observer"
    "golang.org/x/sync/errgroup"

    "spendlimit/internal/limits"
    "spendlimit/internal/limits/mocks"
    "spendlimit/internal/lock"
    "spendlimit/internal/store"
)

var baseTime = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

type testEnv struct {
    svc    *limits.Service
    mem    *store.Memory
    locker *lock.Locker
    logs   *observer.ObservedLogs
    now    time.Time
}

func setupService(t *testing.T, ks lock.KeyStore) *testEnv {
    t.Helper()

    if ks == nil {
        ks = lock.NewMemoryStore()
    }
    core, logs := observer.New(zap.InfoLevel)
    logger := zap.New(core)

    env := &testEnv{
        mem:  store.NewMemory(),
        logs: logs,
        now:  baseTime,
    }
    env.locker = lock.New(ks, logger, lock.Options{
        TTL:        10 * time.Second,
        RetryCount: 5000,
        RetryDelay: time.Millisecond,
    })
    env.svc = limits.NewService(env.mem, env.mem, env.locker, logger, limits.Config{
        Now: func() time.Time { return env.now },
    })
    return env
}

func (e *testEnv) seedAggregate(t *testing.T, daysAgo int, provider, txType string, amount int64) {
    t.Helper()

    _, err := e.mem.Create(context.Background(), store.DailyAggregate{
        Date:            store.Day(e.now).AddDate(0, 0, -daysAgo),
        Provider:        provider,
        TransactionType: txType,
        Amount:          amount,
    })
    require.NoError(t, err)
}

func (e *testEnv) seedLimit(t *testing.T, provider, limitType, currency string, value int64) {
    t.Helper()

    _, err := e.mem.UpsertLimit(context.Background(), store.UpsertLimitInput{
        Provider:   provider,
        LimitType:  limitType,
        Currency:   currency,
        LimitValue: value,
    })
    require.NoError(t, err)
}

func TestValidateWeeklyLimitRollingWindow(t *testing.T) {
    env := setupService(t, nil)
    env.seedAggregate(t, 8, "acme", store.TransactionTypeDeposit, 1000)
    env.seedAggregate(t, 6, "acme", store.TransactionTypeDeposit, 2000)
    env.seedAggregate(t, 3, "acme", store.TransactionTypeDeposit, 3000)
    env.seedAggregate(t, 0, "acme", store.TransactionTypeDeposit, 500)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyDeposit, "USD", 6000)

    ctx := context.Background()

    err := env.svc.ValidateWeeklyLimit(ctx, "acme", "user-1", store.TransactionTypeDeposit, 400, "USD")
    assert.NoError(t, err)

    err = env.svc.ValidateWeeklyLimit(ctx, "acme", "user-1", store.TransactionTypeDeposit, 600, "USD")
    require.ErrorIs(t, err, limits.ErrLimitExceeded)

    var exceeded *limits.LimitExceededError
    require.True(t, errors.As(err, &exceeded))
    assert.Equal(t, int64(5500), exceeded.CurrentSum)
    assert.Equal(t, int64(6000), exceeded.Limit)
    assert.Equal(t, int64(600), exceeded.Attempted)
    assert.Equal(t, "USD", exceeded.Currency)
    assert.Equal(t, store.TransactionTypeDeposit, exceeded.TransactionType)
}

func TestValidateWeeklyLimitWindowBoundary(t *testing.T) {
    env := setupService(t, nil)
    env.seedAggregate(t, 7, "acme", store.TransactionTypeDeposit, 1000)
    env.seedAggregate(t, 8, "acme", store.TransactionTypeDeposit, 9999)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyDeposit, "USD", 1500)

    ctx := context.Background()
    assert.NoError(t, env.svc.ValidateWeeklyLimit(ctx, "acme", "u", store.TransactionTypeDeposit, 500, "USD"))
    assert.ErrorIs(t, env.svc.ValidateWeeklyLimit(ctx, "acme", "u", store.TransactionTypeDeposit, 501, "USD"), limits.ErrLimitExceeded)
}

func TestValidateWeeklyLimitIgnoresOtherProvidersAndTypes(t *testing.T) {
    env := setupService(t, nil)
    env.seedAggregate(t, 1, "acme", store.TransactionTypeDeposit, 100)
    env.seedAggregate(t, 1, "other", store.TransactionTypeDeposit, 10000)
    env.seedAggregate(t, 1, "acme", store.TransactionTypeWithdrawal, -10000)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyDeposit, "USD", 1000)

    err := env.svc.ValidateWeeklyLimit(context.Background(), "acme", "u", store.TransactionTypeDeposit, 900, "USD")
    assert.NoError(t, err)
}

func TestValidateWeeklyLimitWithdrawalSign(t *testing.T) {
    env := setupService(t, nil)
    env.seedAggregate(t, 2, "acme", store.TransactionTypeWithdrawal, -5000)
    env.seedAggregate(t, 1, "acme", store.TransactionTypeWithdrawal, -3000)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyWithdrawal, "USD", 10000)

    ctx := context.Background()
    assert.NoError(t, env.svc.ValidateWeeklyLimit(ctx, "acme", "u", store.TransactionTypeWithdrawal, 2000, "USD"))

    err := env.svc.ValidateWeeklyLimit(ctx, "acme", "u", store.TransactionTypeWithdrawal, 2001, "USD")
    var exceeded *limits.LimitExceededError
    require.True(t, errors.As(err, &exceeded))
    assert.Equal(t, int64(8000), exceeded.CurrentSum)
}

// A missing limit must let traffic through. Turning this into a rejection
// would block every unconfigured provider/currency pair.
func TestValidateWeeklyLimitFailsOpenWithoutConfig(t *testing.T) {
    env := setupService(t, nil)
    env.seedAggregate(t, 0, "acme", store.TransactionTypeDeposit, 1_000_000_000)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyDeposit, "EUR", 1)

    err := env.svc.ValidateWeeklyLimit(context.Background(), "acme", "user-7", store.TransactionTypeDeposit, 5, "USD")
    require.NoError(t, err)

    warnings := env.logs.FilterMessage("weekly_limit_not_configured")
    require.Equal(t, 1, warnings.Len())
    entry := warnings.All()[0]
    assert.Equal(t, zap.WarnLevel, entry.Level)
    assert.Equal(t, "USD", entry.ContextMap()["currency"])
    assert.Equal(t, store.LimitTypeWeeklyDeposit, entry.ContextMap()["limit_type"])
}

func TestValidateWeeklyLimitDoesNotMutate(t *testing.T) {
    env := setupService(t, nil)
    env.seedAggregate(t, 0, "acme", store.TransactionTypeDeposit, 100)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyDeposit, "USD", 1000)

    ctx := context.Background()
    require.NoError(t, env.svc.ValidateWeeklyLimit(ctx, "acme", "u", store.TransactionTypeDeposit, 500, "USD"))
    require.Error(t, env.svc.ValidateWeeklyLimit(ctx, "acme", "u", store.TransactionTypeDeposit, 5000, "USD"))

    agg, found, err := env.mem.FindByDateProviderType(ctx, env.now, "acme", store.TransactionTypeDeposit)
    require.NoError(t, err)
    require.True(t, found)
    assert.Equal(t, int64(100), agg.Amount)
}

func TestRecordMovementCreatesThenAdds(t *testing.T) {
    env := setupService(t, nil)
    ctx := context.Background()

    first, err := env.svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, 700)
    require.NoError(t, err)
    assert.Equal(t, int64(700), first.Amount)
    assert.Equal(t, store.Day(baseTime), first.Date)

    second, err := env.svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, 300)
    require.NoError(t, err)
    assert.Equal(t, first.ID, second.ID)
    assert.Equal(t, int64(1000), second.Amount)
}

func TestRecordMovementRollsOverAtUTCMidnight(t *testing.T) {
    env := setupService(t, nil)
    ctx := context.Background()

    env.now = time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
    day1, err := env.svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, 100)
    require.NoError(t, err)

    env.now = time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)
    day2, err := env.svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, 200)
    require.NoError(t, err)

    assert.NotEqual(t, day1.ID, day2.ID)
    assert.Equal(t, int64(200), day2.Amount)

    rows, err := env.mem.SumByProviderTypeSince(ctx, "acme", store.TransactionTypeDeposit, env.svc.WindowStart())
    require.NoError(t, err)
    assert.Len(t, rows, 2)
}

func TestRecordMovementConcurrentAdditivity(t *testing.T) {
    mr := miniredis.RunT(t)
    client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    defer client.Close()

    keyStores := map[string]lock.KeyStore{
        "memory": lock.NewMemoryStore(),
        "redis":  lock.NewRedisStore(client),
    }

    for name, ks := range keyStores {
        t.Run(name, func(t *testing.T) {
            env := setupService(t, ks)
            ctx := context.Background()

            const workers = 40
            rng := rand.New(rand.NewSource(42))
            deltas := make([]int64, workers)
            var want int64
            for i := range deltas {
                deltas[i] = rng.Int63n(1_000_000) - 200_000
                want += deltas[i]
            }

            var g errgroup.Group
            for _, d := range deltas {
                d := d
                g.Go(func() error {
                    _, err := env.svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, d)
                    return err
                })
            }
            require.NoError(t, g.Wait())

            rows, err := env.mem.SumByProviderTypeSince(ctx, "acme", store.TransactionTypeDeposit, store.Day(env.now))
            require.NoError(t, err)
            require.Len(t, rows, 1)
            assert.Equal(t, want, rows[0].Amount)
        })
    }
}

func TestRecordMovementLockUnavailable(t *testing.T) {
    ctrl := gomock.NewController(t)
    defer ctrl.Finish()

    aggregates := mocks.NewMockAggregateStore(ctrl)
    registry := mocks.NewMockLimitRegistry(ctrl)

    locker := lock.New(lock.NewMemoryStore(), nil, lock.Options{})
    svc := limits.NewService(aggregates, registry, locker, nil, limits.Config{
        Lock: lock.Options{RetryCount: 2, RetryDelay: time.Millisecond},
        Now:  func() time.Time { return baseTime },
    })

    ctx := context.Background()
    held, err := locker.Acquire(ctx, limits.AggregateLockKey(baseTime, "acme", store.TransactionTypeDeposit), lock.Options{TTL: time.Minute})
    require.NoError(t, err)
    defer func() {
        _ = locker.Release(ctx, held)
    }()

    _, err = svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, 10)
    assert.ErrorIs(t, err, lock.ErrAcquisitionFailed)
}

func TestStoreFailuresPropagate(t *testing.T) {
    storeDown := errors.New("connection reset")

    tests := []struct {
        name  string
        setup func(a *mocks.MockAggregateStore, r *mocks.MockLimitRegistry)
        call  func(svc *limits.Service) error
    }{
        {
            name: "sum fails",
            setup: func(a *mocks.MockAggregateStore, r *mocks.MockLimitRegistry) {
                a.EXPECT().SumByProviderTypeSince(gomock.Any(), "acme", store.TransactionTypeDeposit, store.Day(baseTime).AddDate(0, 0, -7)).
                    Return(nil, storeDown)
            },
            call: func(svc *limits.Service) error {
                return svc.ValidateWeeklyLimit(context.Background(), "acme", "u", store.TransactionTypeDeposit, 1, "USD")
            },
        },
        {
            name: "limit lookup fails",
            setup: func(a *mocks.MockAggregateStore, r *mocks.MockLimitRegistry) {
                a.EXPECT().SumByProviderTypeSince(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
                r.EXPECT().GetLimitValue(gomock.Any(), "acme", store.LimitTypeWeeklyDeposit, "USD").Return(int64(0), storeDown)
            },
            call: func(svc *limits.Service) error {
                return svc.ValidateWeeklyLimit(context.Background(), "acme", "u", store.TransactionTypeDeposit, 1, "USD")
            },
        },
        {
            name: "find fails",
            setup: func(a *mocks.MockAggregateStore, r *mocks.MockLimitRegistry) {
                a.EXPECT().FindByDateProviderType(gomock.Any(), store.Day(baseTime), "acme", store.TransactionTypeDeposit).
                    Return(store.DailyAggregate{}, false, storeDown)
            },
            call: func(svc *limits.Service) error {
                _, err := svc.RecordMovement(context.Background(), "acme", store.TransactionTypeDeposit, 5)
                return err
            },
        },
        {
            name: "update fails",
            setup: func(a *mocks.MockAggregateStore, r *mocks.MockLimitRegistry) {
                a.EXPECT().FindByDateProviderType(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
                    Return(store.DailyAggregate{ID: 3, Amount: 10}, true, nil)
                a.EXPECT().UpdateAmount(gomock.Any(), int64(3), int64(15)).Return(store.DailyAggregate{}, storeDown)
            },
            call: func(svc *limits.Service) error {
                _, err := svc.RecordMovement(context.Background(), "acme", store.TransactionTypeDeposit, 5)
                return err
            },
        },
        {
            name: "list limits fails",
            setup: func(a *mocks.MockAggregateStore, r *mocks.MockLimitRegistry) {
                r.EXPECT().ListLimits(gomock.Any(), gomock.Nil()).Return(nil, storeDown)
            },
            call: func(svc *limits.Service) error {
                _, err := svc.ListLimits(context.Background(), nil)
                return err
            },
        },
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            ctrl := gomock.NewController(t)
            defer ctrl.Finish()

            aggregates := mocks.NewMockAggregateStore(ctrl)
            registry := mocks.NewMockLimitRegistry(ctrl)
            tt.setup(aggregates, registry)

            svc := limits.NewService(aggregates, registry, lock.New(lock.NewMemoryStore(), nil, lock.Options{}), nil, limits.Config{
                Now: func() time.Time { return baseTime },
            })

            err := tt.call(svc)
            require.Error(t, err)
            assert.ErrorIs(t, err, limits.ErrStoreUnavailable)
            assert.ErrorIs(t, err, storeDown)
            assert.NotErrorIs(t, err, limits.ErrLimitExceeded)
        })
    }
}

func TestRecordMovementOverflow(t *testing.T) {
    ctrl := gomock.NewController(t)
    defer ctrl.Finish()

    aggregates := mocks.NewMockAggregateStore(ctrl)
    aggregates.EXPECT().FindByDateProviderType(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
        Return(store.DailyAggregate{ID: 1, Amount: 1 << 62}, true, nil)

    svc := limits.NewService(aggregates, mocks.NewMockLimitRegistry(ctrl), lock.New(lock.NewMemoryStore(), nil, lock.Options{}), nil, limits.Config{})

    _, err := svc.RecordMovement(context.Background(), "acme", store.TransactionTypeDeposit, 1<<62)
    assert.ErrorIs(t, err, limits.ErrAmountOverflow)
}

func TestRollingUsage(t *testing.T) {
    env := setupService(t, nil)
    env.seedAggregate(t, 2, "acme", store.TransactionTypeDeposit, 4000)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyDeposit, "USD", 10000)

    ctx := context.Background()
    u, err := env.svc.RollingUsage(ctx, "acme", store.TransactionTypeDeposit, "USD")
    require.NoError(t, err)
    assert.True(t, u.Configured)
    assert.Equal(t, int64(4000), u.CurrentSum)
    assert.Equal(t, int64(6000), u.Remaining)
    assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), u.WindowStart)

    u, err = env.svc.RollingUsage(ctx, "acme", store.TransactionTypeDeposit, "EUR")
    require.NoError(t, err)
    assert.False(t, u.Configured)
    assert.Equal(t, int64(4000), u.CurrentSum)
}

func TestWeeklyDepositScenario(t *testing.T) {
    env := setupService(t, nil)
    env.seedLimit(t, "acme", store.LimitTypeWeeklyDeposit, "USD", 10_000_000)
    ctx := context.Background()

    _, err := env.svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, 2_000_000)
    require.NoError(t, err)
    agg, err := env.svc.RecordMovement(ctx, "acme", store.TransactionTypeDeposit, 3_000_000)
    require.NoError(t, err)
    assert.Equal(t, int64(5_000_000), agg.Amount)

    rows, err := env.mem.SumByProviderTypeSince(ctx, "acme", store.TransactionTypeDeposit, store.Day(env.now))
    require.NoError(t, err)
    require.Len(t, rows, 1)

    err = env.svc.ValidateWeeklyLimit(ctx, "acme", "user", store.TransactionTypeDeposit, 6_000_000, "USD")
    var exceeded *limits.LimitExceededError
    require.True(t, errors.As(err, &exceeded))
    assert.Equal(t, int64(5_000_000), exceeded.CurrentSum)
    assert.Equal(t, int64(10_000_000), exceeded.Limit)
    assert.Equal(t, "weekly deposit limit exceeded for acme: 50000.00 + 60000.00 > 100000.00 USD", err.Error())

    assert.NoError(t, env.svc.ValidateWeeklyLimit(ctx, "acme", "user", store.TransactionTypeDeposit, 4_000_000, "USD"))
}

func TestParseTransactionType(t *testing.T) {
    got, err := limits.ParseTransactionType(" Deposit ")
    require.NoError(t, err)
    assert.Equal(t, store.TransactionTypeDeposit, got)

    _, err = limits.ParseTransactionType("transfer")
    assert.ErrorIs(t, err, limits.ErrInvalidTransactionType)
}

func TestAggregateLockKey(t *testing.T) {
    key := limits.AggregateLockKey(time.Date(2024, 1, 2, 23, 0, 0, 0, time.FixedZone("X", -5*3600)), "acme", "deposit")
    assert.Equal(t, "transaction-aggregate:2024-01-03:acme:deposit", key)
}

func TestFormatAmount(t *testing.T) {
    assert.Equal(t, "12.34", limits.FormatAmount(1234, "USD"))
    assert.Equal(t, "1234", limits.FormatAmount(1234, "JPY"))
    assert.Equal(t, "1.234", limits.FormatAmount(1234, "KWD"))
}

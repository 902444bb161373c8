package store

import (
    "context"
    "errors"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed aggregate store and limit registry.
// Reads run at the default READ COMMITTED isolation, so a reader never sees
// a half-applied aggregate update.
type Store struct {
    pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
    return &Store{pool: pool}
}

const aggregateColumns = "id, date, provider, transaction_type, amount, created_at, updated_at"

const limitColumns = "id, provider, limit_type, currency, limit_value, is_active, description, created_at, updated_at"

func (s *Store) FindByDateProviderType(ctx context.Context, date time.Time, provider, txType string) (DailyAggregate, bool, error) {
    agg, err := scanAggregate(s.pool.QueryRow(ctx, `
        SELECT `+aggregateColumns+`
        FROM transaction_aggregates
        WHERE date = $1 AND provider = $2 AND transaction_type = $3
    `, Day(date), provider, txType))
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return DailyAggregate{}, false, nil
        }
        return DailyAggregate{}, false, err
    }
    return agg, true, nil
}

func (s *Store) Create(ctx context.Context, agg DailyAggregate) (DailyAggregate, error) {
    created, err := scanAggregate(s.pool.QueryRow(ctx, `
        INSERT INTO transaction_aggregates (date, provider, transaction_type, amount)
        VALUES ($1, $2, $3, $4)
        RETURNING `+aggregateColumns,
        Day(agg.Date),
        agg.Provider,
        agg.TransactionType,
        agg.Amount,
    ))
    if err != nil {
        if isUniqueViolation(err) {
            return DailyAggregate{}, ErrAggregateExists
        }
        return DailyAggregate{}, err
    }
    return created, nil
}

func (s *Store) UpdateAmount(ctx context.Context, id int64, amount int64) (DailyAggregate, error) {
    updated, err := scanAggregate(s.pool.QueryRow(ctx, `
        UPDATE transaction_aggregates
        SET amount = $2, updated_at = now()
        WHERE id = $1
        RETURNING `+aggregateColumns,
        id,
        amount,
    ))
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return DailyAggregate{}, ErrNotFound
        }
        return DailyAggregate{}, err
    }
    return updated, nil
}

// SumByProviderTypeSince returns the aggregates of provider/txType dated on
// or after since, oldest first.
func (s *Store) SumByProviderTypeSince(ctx context.Context, provider, txType string, since time.Time) ([]DailyAggregate, error) {
    rows, err := s.pool.Query(ctx, `
        SELECT `+aggregateColumns+`
        FROM transaction_aggregates
        WHERE provider = $1 AND transaction_type = $2 AND date >= $3
        ORDER BY date
    `, provider, txType, Day(since))
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []DailyAggregate
    for rows.Next() {
        agg, err := scanAggregate(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, agg)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

func (s *Store) GetLimitValue(ctx context.Context, provider, limitType, currency string) (int64, error) {
    var value int64
    err := s.pool.QueryRow(ctx, `
        SELECT limit_value
        FROM provider_limits
        WHERE provider = $1 AND limit_type = $2 AND currency = $3
          AND is_active AND deleted_at IS NULL
        ORDER BY updated_at DESC
        LIMIT 1
    `, provider, limitType, currency).Scan(&value)
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return 0, ErrNotFound
        }
        return 0, err
    }
    return value, nil
}

// ListLimits returns active, non-deleted limits, optionally for one provider.
func (s *Store) ListLimits(ctx context.Context, provider *string) ([]ProviderLimit, error) {
    rows, err := s.pool.Query(ctx, `
        SELECT `+limitColumns+`
        FROM provider_limits
        WHERE is_active AND deleted_at IS NULL
          AND ($1::text IS NULL OR provider = $1)
        ORDER BY provider, limit_type, currency
    `, provider)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []ProviderLimit
    for rows.Next() {
        l, err := scanLimit(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// UpsertLimit deactivates the current active limit for the triple, if any,
// and inserts input as the new active one.
func (s *Store) UpsertLimit(ctx context.Context, input UpsertLimitInput) (ProviderLimit, error) {
    if input.LimitValue <= 0 {
        return ProviderLimit{}, ErrInvalidLimit
    }

    tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
    if err != nil {
        return ProviderLimit{}, err
    }
    defer func() {
        _ = tx.Rollback(ctx)
    }()

    _, err = tx.Exec(ctx, `
        UPDATE provider_limits
        SET is_active = FALSE, updated_at = now()
        WHERE provider = $1 AND limit_type = $2 AND currency = $3
          AND is_active AND deleted_at IS NULL
    `, input.Provider, input.LimitType, input.Currency)
    if err != nil {
        return ProviderLimit{}, err
    }

    created, err := scanLimit(tx.QueryRow(ctx, `
        INSERT INTO provider_limits (provider, limit_type, currency, limit_value, is_active, description)
        VALUES ($1, $2, $3, $4, TRUE, $5)
        RETURNING `+limitColumns,
        input.Provider,
        input.LimitType,
        input.Currency,
        input.LimitValue,
        input.Description,
    ))
    if err != nil {
        return ProviderLimit{}, err
    }

    if err := tx.Commit(ctx); err != nil {
        return ProviderLimit{}, err
    }
    return created, nil
}

func scanAggregate(row pgx.Row) (DailyAggregate, error) {
    var a DailyAggregate
    err := row.Scan(
        &a.ID,
        &a.Date,
        &a.Provider,
        &a.TransactionType,
        &a.Amount,
        &a.CreatedAt,
        &a.UpdatedAt,
    )
    a.Date = Day(a.Date)
    return a, err
}

func scanLimit(row pgx.Row) (ProviderLimit, error) {
    var l ProviderLimit
    err := row.Scan(
        &l.ID,
        &l.Provider,
        &l.LimitType,
        &l.Currency,
        &l.LimitValue,
        &l.IsActive,
        &l.Description,
        &l.CreatedAt,
        &l.UpdatedAt,
    )
    return l, err
}

func isUniqueViolation(err error) bool {
    var pgErr *pgconn.PgError
    if !errors.As(err, &pgErr) {
        return false
    }
    return pgErr.Code == "23505"
}

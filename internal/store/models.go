package store

import "time"

const (
    TransactionTypeDeposit    = "deposit"
    TransactionTypeWithdrawal = "withdrawal"
)

const (
    LimitTypeWeeklyDeposit    = "weekly_deposit"
    LimitTypeWeeklyWithdrawal = "weekly_withdrawal"
)

// DateLayout is the ISO calendar-day format used in lock keys and payloads.
const DateLayout = "2006-01-02"

// DailyAggregate is the running total of one provider's movements of one
// transaction type on one UTC calendar day.
type DailyAggregate struct {
    ID              int64
    Date            time.Time
    Provider        string
    TransactionType string
    Amount          int64
    CreatedAt       time.Time
    UpdatedAt       time.Time
}

type ProviderLimit struct {
    ID          int64
    Provider    string
    LimitType   string
    Currency    string
    LimitValue  int64
    IsActive    bool
    Description string
    CreatedAt   time.Time
    UpdatedAt   time.Time
}

type UpsertLimitInput struct {
    Provider    string
    LimitType   string
    Currency    string
    LimitValue  int64
    Description string
}

// Day truncates t to midnight UTC of its UTC calendar date.
func Day(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

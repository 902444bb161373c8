package limits

import (
    "errors"
    "fmt"
    "strings"

    "github.com/shopspring/decimal"
)

var (
    ErrLimitExceeded          = errors.New("weekly limit exceeded")
    ErrLimitNotConfigured     = errors.New("weekly limit not configured")
    ErrStoreUnavailable       = errors.New("store unavailable")
    ErrInvalidTransactionType = errors.New("invalid transaction type")
    ErrAmountOverflow         = errors.New("aggregate amount overflow")
)

// LimitExceededError carries what a caller needs to tell the user which
// weekly ceiling was hit. Amounts are in minor units.
type LimitExceededError struct {
    Provider        string
    TransactionType string
    CurrentSum      int64
    Attempted       int64
    Limit           int64
    Currency        string
}

func (e *LimitExceededError) Error() string {
    return fmt.Sprintf("weekly %s limit exceeded for %s: %s + %s > %s %s",
        e.TransactionType,
        e.Provider,
        FormatAmount(e.CurrentSum, e.Currency),
        FormatAmount(e.Attempted, e.Currency),
        FormatAmount(e.Limit, e.Currency),
        e.Currency,
    )
}

func (e *LimitExceededError) Is(target error) bool {
    return target == ErrLimitExceeded
}

var currencyExponents = map[string]int32{
    "JPY": 0,
    "KRW": 0,
    "VND": 0,
    "BHD": 3,
    "KWD": 3,
    "OMR": 3,
}

// MajorUnits converts an amount in minor units to major units, assuming two
// decimal places unless the currency is known to use a different exponent.
func MajorUnits(minor int64, currency string) decimal.Decimal {
    return decimal.New(minor, -exponent(currency))
}

// FormatAmount renders minor units as a fixed-point major-unit string,
// e.g. 5000000 USD -> "50000.00".
func FormatAmount(minor int64, currency string) string {
    return MajorUnits(minor, currency).StringFixed(exponent(currency))
}

func exponent(currency string) int32 {
    if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
        return exp
    }
    return 2
}

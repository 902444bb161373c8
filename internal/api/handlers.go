package api

import (
    "errors"
    "net/http"
    "strings"
    "time"

    "go.uber.org/zap"

    "spendlimit/internal/limits"
    "spendlimit/internal/lock"
    "spendlimit/internal/store"
)

type checkLimitRequest struct {
    Provider        string `json:"provider"`
    UserID          string `json:"user_id"`
    TransactionType string `json:"transaction_type"`
    Amount          int64  `json:"amount"`
    Currency        string `json:"currency"`
}

type recordMovementRequest struct {
    Provider        string `json:"provider"`
    TransactionType string `json:"transaction_type"`
    Amount          int64  `json:"amount"`
}

type upsertLimitRequest struct {
    Provider    string `json:"provider"`
    LimitType   string `json:"limit_type"`
    Currency    string `json:"currency"`
    LimitValue  int64  `json:"limit_value"`
    Description string `json:"description"`
}

type checkLimitResponse struct {
    Allowed bool `json:"allowed"`
}

type limitExceededResponse struct {
    Error           string `json:"error"`
    Message         string `json:"message"`
    TransactionType string `json:"transaction_type"`
    CurrentSum      int64  `json:"current_sum"`
    Limit           int64  `json:"limit"`
    Currency        string `json:"currency"`
}

type aggregateResponse struct {
    ID              int64     `json:"id"`
    Date            string    `json:"date"`
    Provider        string    `json:"provider"`
    TransactionType string    `json:"transaction_type"`
    Amount          int64     `json:"amount"`
    UpdatedAt       time.Time `json:"updated_at"`
}

type limitResponse struct {
    ID          int64  `json:"id"`
    Provider    string `json:"provider"`
    LimitType   string `json:"limit_type"`
    Currency    string `json:"currency"`
    LimitValue  int64  `json:"limit_value"`
    Display     string `json:"display"`
    Description string `json:"description"`
}

type usageResponse struct {
    Provider        string `json:"provider"`
    TransactionType string `json:"transaction_type"`
    Currency        string `json:"currency"`
    WindowStart     string `json:"window_start"`
    CurrentSum      int64  `json:"current_sum"`
    Configured      bool   `json:"configured"`
    Limit           int64  `json:"limit,omitempty"`
    Remaining       int64  `json:"remaining,omitempty"`
}

func (s *Server) handleCheckLimit(w http.ResponseWriter, r *http.Request) {
    var req checkLimitRequest
    if err := decodeJSON(r, &req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    provider, txType, currency, err := s.validateKeys(req.Provider, req.TransactionType, req.Currency)
    if err != nil || currency == "" || strings.TrimSpace(req.UserID) == "" || req.Amount <= 0 {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    err = s.limits.ValidateWeeklyLimit(r.Context(), provider, strings.TrimSpace(req.UserID), txType, req.Amount, currency)
    if err != nil {
        var exceeded *limits.LimitExceededError
        if errors.As(err, &exceeded) {
            s.logEvent("limit_check_rejected",
                zap.String("provider", provider),
                zap.String("transaction_type", txType),
                zap.Int64("amount", req.Amount),
            )
            writeJSON(w, http.StatusUnprocessableEntity, limitExceededResponse{
                Error:           "limit_exceeded",
                Message:         exceeded.Error(),
                TransactionType: exceeded.TransactionType,
                CurrentSum:      exceeded.CurrentSum,
                Limit:           exceeded.Limit,
                Currency:        exceeded.Currency,
            })
            return
        }
        s.writeServiceError(w, "limit_check_failed", err)
        return
    }

    writeJSON(w, http.StatusOK, checkLimitResponse{Allowed: true})
}

func (s *Server) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
    var req recordMovementRequest
    if err := decodeJSON(r, &req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    provider, txType, _, err := s.validateKeys(req.Provider, req.TransactionType, "")
    if err != nil || req.Amount == 0 {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    agg, err := s.limits.RecordMovement(r.Context(), provider, txType, req.Amount)
    if err != nil {
        s.writeServiceError(w, "movement_record_failed", err)
        return
    }

    writeJSON(w, http.StatusCreated, toAggregateResponse(agg))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    provider, txType, currency, err := s.validateKeys(q.Get("provider"), q.Get("transaction_type"), q.Get("currency"))
    if err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    u, err := s.limits.RollingUsage(r.Context(), provider, txType, currency)
    if err != nil {
        s.writeServiceError(w, "usage_failed", err)
        return
    }

    writeJSON(w, http.StatusOK, usageResponse{
        Provider:        u.Provider,
        TransactionType: u.TransactionType,
        Currency:        u.Currency,
        WindowStart:     u.WindowStart.Format(store.DateLayout),
        CurrentSum:      u.CurrentSum,
        Configured:      u.Configured,
        Limit:           u.Limit,
        Remaining:       u.Remaining,
    })
}

func (s *Server) handleListLimits(w http.ResponseWriter, r *http.Request) {
    var filter *string
    if raw := r.URL.Query().Get("provider"); raw != "" {
        p := normalizeProvider(raw)
        filter = &p
    }

    list, err := s.limits.ListLimits(r.Context(), filter)
    if err != nil {
        s.writeServiceError(w, "limits_list_failed", err)
        return
    }

    out := make([]limitResponse, 0, len(list))
    for _, l := range list {
        out = append(out, toLimitResponse(l))
    }
    writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpsertLimit(w http.ResponseWriter, r *http.Request) {
    var req upsertLimitRequest
    if err := decodeJSON(r, &req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    provider, _, currency, err := s.validateKeys(req.Provider, store.TransactionTypeDeposit, req.Currency)
    if err != nil || req.LimitValue <= 0 || currency == "" {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }
    limitType := strings.ToLower(strings.TrimSpace(req.LimitType))
    if limitType != store.LimitTypeWeeklyDeposit && limitType != store.LimitTypeWeeklyWithdrawal {
        writeError(w, http.StatusBadRequest, "invalid_request")
        return
    }

    l, err := s.admin.UpsertLimit(r.Context(), store.UpsertLimitInput{
        Provider:    provider,
        LimitType:   limitType,
        Currency:    currency,
        LimitValue:  req.LimitValue,
        Description: strings.TrimSpace(req.Description),
    })
    if err != nil {
        if errors.Is(err, store.ErrInvalidLimit) {
            writeError(w, http.StatusBadRequest, "invalid_request")
            return
        }
        s.writeServiceError(w, "limit_upsert_failed", err)
        return
    }

    s.logEvent("limit_upserted",
        zap.String("provider", l.Provider),
        zap.String("limit_type", l.LimitType),
        zap.String("currency", l.Currency),
        zap.Int64("limit_value", l.LimitValue),
    )
    writeJSON(w, http.StatusOK, toLimitResponse(l))
}

func (s *Server) writeServiceError(w http.ResponseWriter, event string, err error) {
    reason := "internal_error"
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, lock.ErrAcquisitionFailed):
        reason, status = "lock_unavailable", http.StatusServiceUnavailable
    case errors.Is(err, limits.ErrStoreUnavailable):
        reason, status = "store_unavailable", http.StatusServiceUnavailable
    case errors.Is(err, limits.ErrAmountOverflow):
        reason, status = "amount_overflow", http.StatusUnprocessableEntity
    }
    s.logger.Error(event, zap.String("reason", reason), zap.Error(err))
    writeError(w, status, reason)
}

// validateKeys normalizes the string keys that name aggregates and limits so
// that "ACME"/"acme" or "Deposit"/"deposit" never split the key space. An
// empty currency is allowed and returned as "".
func (s *Server) validateKeys(provider, txType, currency string) (string, string, string, error) {
    p := normalizeProvider(provider)
    if p == "" {
        return "", "", "", errors.New("invalid provider")
    }
    if len(s.providers) > 0 {
        if _, ok := s.providers[p]; !ok {
            return "", "", "", errors.New("unknown provider")
        }
    }

    t, err := limits.ParseTransactionType(txType)
    if err != nil {
        return "", "", "", err
    }

    c := strings.ToUpper(strings.TrimSpace(currency))
    if c != "" && !isCurrencyCode(c) {
        return "", "", "", errors.New("invalid currency")
    }
    return p, t, c, nil
}

func normalizeProvider(p string) string {
    return strings.ToLower(strings.TrimSpace(p))
}

func isCurrencyCode(c string) bool {
    if len(c) != 3 {
        return false
    }
    for _, r := range c {
        if r < 'A' || r > 'Z' {
            return false
        }
    }
    return true
}

func toAggregateResponse(a store.DailyAggregate) aggregateResponse {
    return aggregateResponse{
        ID:              a.ID,
        Date:            a.Date.Format(store.DateLayout),
        Provider:        a.Provider,
        TransactionType: a.TransactionType,
        Amount:          a.Amount,
        UpdatedAt:       a.UpdatedAt,
    }
}

func toLimitResponse(l store.ProviderLimit) limitResponse {
    return limitResponse{
        ID:          l.ID,
        Provider:    l.Provider,
        LimitType:   l.LimitType,
        Currency:    l.Currency,
        LimitValue:  l.LimitValue,
        Display:     limits.FormatAmount(l.LimitValue, l.Currency),
        Description: l.Description,
    }
}

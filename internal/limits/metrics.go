package limits

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    validations = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "weekly_limit_validations_total",
            Help: "Weekly limit checks by transaction type and outcome",
        },
        []string{"transaction_type", "outcome"},
    )

    movements = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "aggregate_movements_total",
            Help: "Movements recorded into daily aggregates",
        },
        []string{"transaction_type"},
    )
)

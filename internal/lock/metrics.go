package lock

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    acquireAttempts = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "lock_acquire_attempts_total",
            Help: "Lease acquisition attempts by outcome",
        },
        []string{"outcome"},
    )

    acquireFailures = promauto.NewCounter(
        prometheus.CounterOpts{
            Name: "lock_acquire_failures_total",
            Help: "Acquisitions that exhausted their retries",
        },
    )

    releases = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "lock_releases_total",
            Help: "Lease releases by outcome",
        },
        []string{"outcome"},
    )
)

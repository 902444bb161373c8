// Package lock provides named, time-bounded leases over a shared key-value
// store. A lease expires on its own after its TTL; it is never renewed, so a
// critical section that outlives the TTL is no longer exclusive.
package lock

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"
)

const (
    DefaultTTL        = 30 * time.Second
    DefaultRetryCount = 5
    DefaultRetryDelay = 500 * time.Millisecond
)

const releaseTimeout = 5 * time.Second

var (
    ErrAcquisitionFailed = errors.New("lock acquisition failed")
    ErrNotHeld           = errors.New("lock not held")
    ErrEmptyKey          = errors.New("lock key is empty")
)

// KeyStore is the shared store leases are kept in.
type KeyStore interface {
    // SetIfNotExists stores value under key with the given ttl only if key is
    // absent, reporting whether it did.
    SetIfNotExists(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
    // CompareAndDelete deletes key only if it still holds expected.
    CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// Options tunes a single acquisition. Zero fields fall back to the Locker's
// defaults. RetryCount is the total number of attempts.
type Options struct {
    TTL        time.Duration
    RetryCount int
    RetryDelay time.Duration
}

func (o Options) merge(fallback Options) Options {
    if o.TTL <= 0 {
        o.TTL = fallback.TTL
    }
    if o.RetryCount <= 0 {
        o.RetryCount = fallback.RetryCount
    }
    if o.RetryDelay <= 0 {
        o.RetryDelay = fallback.RetryDelay
    }
    return o
}

type Lease struct {
    Key      string
    Token    string
    Acquired time.Time
    TTL      time.Duration
}

// Expired reports whether the lease's TTL has elapsed at now.
func (l Lease) Expired(now time.Time) bool {
    return !now.Before(l.Acquired.Add(l.TTL))
}

type Locker struct {
    store    KeyStore
    logger   *zap.Logger
    defaults Options
}

func New(store KeyStore, logger *zap.Logger, defaults Options) *Locker {
    if logger == nil {
        logger = zap.NewNop()
    }
    return &Locker{
        store:  store,
        logger: logger,
        defaults: defaults.merge(Options{
            TTL:        DefaultTTL,
            RetryCount: DefaultRetryCount,
            RetryDelay: DefaultRetryDelay,
        }),
    }
}

// Acquire tries to take the lease named key, waiting RetryDelay between
// attempts. After RetryCount failed attempts it returns an error wrapping
// ErrAcquisitionFailed.
func (l *Locker) Acquire(ctx context.Context, key string, opts Options) (Lease, error) {
    if key == "" {
        return Lease{}, ErrEmptyKey
    }
    opts = opts.merge(l.defaults)
    token := uuid.NewString()

    var lastErr error
    for attempt := 1; attempt <= opts.RetryCount; attempt++ {
        started := time.Now()
        ok, err := l.store.SetIfNotExists(ctx, key, token, opts.TTL)
        switch {
        case err != nil:
            lastErr = err
            acquireAttempts.WithLabelValues("error").Inc()
            l.logger.Warn("lock_acquire_error",
                zap.String("key", key),
                zap.Int("attempt", attempt),
                zap.Error(err),
            )
        case ok:
            acquireAttempts.WithLabelValues("acquired").Inc()
            return Lease{Key: key, Token: token, Acquired: started, TTL: opts.TTL}, nil
        default:
            acquireAttempts.WithLabelValues("contended").Inc()
        }

        if attempt == opts.RetryCount {
            break
        }
        timer := time.NewTimer(opts.RetryDelay)
        select {
        case <-ctx.Done():
            timer.Stop()
            return Lease{}, fmt.Errorf("%w: %s: %w", ErrAcquisitionFailed, key, ctx.Err())
        case <-timer.C:
        }
    }

    acquireFailures.Inc()
    if lastErr != nil {
        return Lease{}, fmt.Errorf("%w: %s after %d attempts: %w", ErrAcquisitionFailed, key, opts.RetryCount, lastErr)
    }
    return Lease{}, fmt.Errorf("%w: %s after %d attempts", ErrAcquisitionFailed, key, opts.RetryCount)
}

// Release drops the lease if this holder still owns it. It returns
// ErrNotHeld when the lease already expired or was taken over.
func (l *Locker) Release(ctx context.Context, lease Lease) error {
    ok, err := l.store.CompareAndDelete(ctx, lease.Key, lease.Token)
    if err != nil {
        releases.WithLabelValues("error").Inc()
        return fmt.Errorf("release %s: %w", lease.Key, err)
    }
    if !ok {
        releases.WithLabelValues("lost").Inc()
        return fmt.Errorf("release %s: %w", lease.Key, ErrNotHeld)
    }
    releases.WithLabelValues("released").Inc()
    return nil
}

// WithLock runs fn while holding the lease named key and releases it on every
// exit path, including a panic in fn. fn's error is returned unchanged. A
// failed release is logged, not returned: fn has already run and the lease
// expires by itself.
func WithLock[T any](ctx context.Context, l *Locker, key string, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
    var zero T

    lease, err := l.Acquire(ctx, key, opts)
    if err != nil {
        return zero, err
    }
    defer func() {
        relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
        defer cancel()
        if err := l.Release(relCtx, lease); err != nil {
            l.logger.Warn("lock_release_failed",
                zap.String("key", key),
                zap.Duration("held", time.Since(lease.Acquired)),
                zap.Duration("ttl", lease.TTL),
                zap.Error(err),
            )
        }
    }()

    return fn(ctx)
}

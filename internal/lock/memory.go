package lock

import (
    "context"
    "sync"
    "time"
)

type memoryEntry struct {
    value     string
    expiresAt time.Time
}

// MemoryStore is a process-local KeyStore. It only serializes callers that
// share the same instance.
type MemoryStore struct {
    mu      sync.Mutex
    now     func() time.Time
    entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        now:     time.Now,
        entries: make(map[string]memoryEntry),
    }
}

func (s *MemoryStore) SetIfNotExists(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    now := s.now()
    if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
        return false, nil
    }
    s.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
    return true, nil
}

func (s *MemoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    e, ok := s.entries[key]
    if !ok || e.value != expected || !s.now().Before(e.expiresAt) {
        return false, nil
    }
    delete(s.entries, key)
    return true, nil
}

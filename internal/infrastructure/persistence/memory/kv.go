// Package memory implements the store and cache ports in-process.
// It backs development mode (no DATABASE_URL, REDIS_DISABLED) and serves
// as the fake for application tests. State is lost on restart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY-VALUE CACHE
// ══════════════════════════════════════════════════════════════════════════════

type kvEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e kvEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// KV is a JSON key-value store with TTLs, shaped like the Redis cache.
type KV struct {
	mu      sync.Mutex
	entries map[string]kvEntry
	now     func() time.Time
}

// NewKV creates an empty KV.
func NewKV() *KV {
	return &KV{
		entries: make(map[string]kvEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source; used by tests to expire keys.
func (kv *KV) WithClock(now func() time.Time) *KV {
	kv.now = now
	return kv
}

func (kv *KV) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return kv.now().Add(ttl)
}

// getLocked returns a live entry, evicting an expired one.
func (kv *KV) getLocked(key string) (kvEntry, bool) {
	e, ok := kv.entries[key]
	if !ok {
		return kvEntry{}, false
	}
	if e.expired(kv.now()) {
		delete(kv.entries, key)
		return kvEntry{}, false
	}
	return e, true
}

// Set stores value as JSON under key.
func (kv *KV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory kv: marshal %s: %w", key, err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.entries[key] = kvEntry{data: data, expiresAt: kv.deadline(ttl)}
	return nil
}

// Get decodes the value under key into dest or returns shared.ErrCacheMiss.
func (kv *KV) Get(_ context.Context, key string, dest any) error {
	kv.mu.Lock()
	e, ok := kv.getLocked(key)
	kv.mu.Unlock()

	if !ok {
		return shared.ErrCacheMiss
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return fmt.Errorf("memory kv: unmarshal %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (kv *KV) Delete(_ context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, k := range keys {
		delete(kv.entries, k)
	}
	return nil
}

// SetNX stores value only when key is absent or expired.
func (kv *KV) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("memory kv: marshal %s: %w", key, err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.getLocked(key); ok {
		return false, nil
	}
	kv.entries[key] = kvEntry{data: data, expiresAt: kv.deadline(ttl)}
	return true, nil
}

// IncrWithTTL increments an integer counter; the first increment starts the TTL.
func (kv *KV) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e, ok := kv.getLocked(key)
	var n int64
	if ok {
		parsed, err := strconv.ParseInt(string(e.data), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("memory kv: %s is not a counter: %w", key, err)
		}
		n = parsed
	} else {
		e.expiresAt = kv.deadline(ttl)
	}

	n++
	e.data = []byte(strconv.FormatInt(n, 10))
	kv.entries[key] = e
	return n, nil
}

// Len returns the number of live keys.
func (kv *KV) Len() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	n := 0
	for k := range kv.entries {
		if _, ok := kv.getLocked(k); ok {
			n++
		}
	}
	return n
}

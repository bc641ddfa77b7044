package utils

import (
	"context"
	"sync"
	"time"
)

type stateEntry struct {
	expiresAt time.Time
}

var (
	stateStore   = map[string]stateEntry{}
	stateStoreMu sync.Mutex
)

// SaveState stores an OAuth state token with TTL to mitigate CSRF.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	// Prefer Redis for distributed consistency
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, "oauth:state:"+state, "1", ttl).Err(); err == nil {
			return
		}
	}
	// Fallback to in-memory (single-instance only)
	stateStoreMu.Lock()
	stateStore[state] = stateEntry{expiresAt: time.Now().Add(ttl)}
	stateStoreMu.Unlock()
}

// ConsumeState validates and removes a state token. Single use.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if v, err := rc.GetDel(ctx, "oauth:state:"+state).Result(); err == nil {
			return v != ""
		}
	}
	stateStoreMu.Lock()
	entry, ok := stateStore[state]
	if ok {
		delete(stateStore, state)
	}
	stateStoreMu.Unlock()
	if !ok {
		return false
	}
	return time.Now().Before(entry.expiresAt)
}

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter caps accepted sends per recipient per calendar day.
// CheckAndReserve must be a single indivisible check-and-increment per
// (user, day) key so concurrent workers cannot both take the last slot.
type RateLimiter interface {
	// CheckAndReserve takes one slot for userID on day if fewer than limit
	// are taken. limit <= 0 means unlimited.
	CheckAndReserve(ctx context.Context, userID, day string, limit int) (bool, error)
	// Release returns a slot taken by a send the provider did not accept.
	Release(ctx context.Context, userID, day string) error
}

// DayKey returns the rate-limit day for t. Days are UTC calendar days.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// =============================================================================
// REDIS RATE LIMITER
// =============================================================================

// Lua script for atomic per-recipient daily reservation.
// Checks BEFORE incrementing so a denied attempt never inflates the count.
const reserveLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current >= limit then
    return {0, current}  -- denied
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end
return {1, newVal}  -- allowed
`

// Lua script for releasing a reservation without going below zero.
const releaseLuaScript = `
local key = KEYS[1]
local current = tonumber(redis.call("GET", key) or "0")
if current <= 0 then
    return 0
end
return redis.call("DECR", key)
`

// dailyKeyTTL outlives the day so late releases still find the key.
const dailyKeyTTL = 90000 // 25 hours

// RedisRateLimiter provides atomic per-recipient limits using Redis Lua
// scripts. Safe across processes sharing one Redis.
type RedisRateLimiter struct {
	redis         *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
}

// NewRedisRateLimiter creates a rate limiter with pre-compiled Lua scripts.
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		redis:         client,
		reserveScript: redis.NewScript(reserveLuaScript),
		releaseScript: redis.NewScript(releaseLuaScript),
	}
}

func recipientKey(userID, day string) string {
	return fmt.Sprintf("ratelimit:recipient:%s:%s", userID, day)
}

// CheckAndReserve implements RateLimiter.
func (r *RedisRateLimiter) CheckAndReserve(ctx context.Context, userID, day string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	result, err := r.reserveScript.Run(ctx, r.redis, []string{recipientKey(userID, day)}, limit, dailyKeyTTL).Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	allowed, _ := result[0].(int64)
	return allowed == 1, nil
}

// Release implements RateLimiter.
func (r *RedisRateLimiter) Release(ctx context.Context, userID, day string) error {
	if err := r.releaseScript.Run(ctx, r.redis, []string{recipientKey(userID, day)}).Err(); err != nil {
		return fmt.Errorf("rate limit release failed: %w", err)
	}
	return nil
}

// Count returns the slots taken for userID on day.
func (r *RedisRateLimiter) Count(ctx context.Context, userID, day string) (int, error) {
	n, err := r.redis.Get(ctx, recipientKey(userID, day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// =============================================================================
// IN-MEMORY RATE LIMITER
// =============================================================================

// MemoryRateLimiter is a single-process RateLimiter. Entries for past days
// are pruned whenever a new day is first seen.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	day    string
	counts map[string]int
}

// NewMemoryRateLimiter returns an empty in-process limiter.
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{counts: make(map[string]int)}
}

// CheckAndReserve implements RateLimiter.
func (m *MemoryRateLimiter) CheckAndReserve(_ context.Context, userID, day string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if day > m.day {
		m.day = day
		for k := range m.counts {
			if k[:len(day)] < day {
				delete(m.counts, k)
			}
		}
	}
	k := day + ":" + userID
	if m.counts[k] >= limit {
		return false, nil
	}
	m.counts[k]++
	return true, nil
}

// Release implements RateLimiter.
func (m *MemoryRateLimiter) Release(_ context.Context, userID, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := day + ":" + userID
	if m.counts[k] > 0 {
		m.counts[k]--
	}
	return nil
}

package seatlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the exclusive seat lock contract. At most one active lock may exist
// per (trip, seat) at any time; Acquire is all-or-nothing across the batch.
type Store interface {
	Acquire(ctx context.Context, tripID string, seatCodes []string, bookingID string, ttl time.Duration) error
	Renew(ctx context.Context, bookingID string, ttl time.Duration) error
	Promote(ctx context.Context, bookingID string) error
	Release(ctx context.Context, tripID string, seatCodes []string) error
}

var (
	// ErrConflict means at least one requested seat is locked by another booking.
	ErrConflict = errors.New("seat already locked")
	// ErrUnavailable means the lock store could not be reached or gave an
	// ambiguous answer. Callers must fail closed: never treat this as "seat free".
	ErrUnavailable = errors.New("seat lock store unavailable")
)

// ConflictError reports which seat lost the race.
type ConflictError struct {
	TripID   string
	SeatCode string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seat already locked: %s on trip %s", e.SeatCode, e.TripID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Lua script for atomic seat lock acquisition - prevents race conditions.
// All requested seats are checked first; if any is held by a different booking
// nothing is written, so two callers racing for an overlapping set cannot both win.
var luaAcquireLocks = redis.NewScript(`
-- KEYS[1] = booking index key
-- ARGV[1] = booking_id
-- ARGV[2] = ttl_seconds
-- ARGV[3..N] = seat lock keys

local index_key = KEYS[1]
local booking_id = ARGV[1]
local ttl = tonumber(ARGV[2])

for i = 3, #ARGV do
    local owner = redis.call("GET", ARGV[i])
    if owner and owner ~= booking_id then
        return {0, ARGV[i]}
    end
end

for i = 3, #ARGV do
    redis.call("SETEX", ARGV[i], ttl, booking_id)
    redis.call("SADD", index_key, ARGV[i])
end
redis.call("EXPIRE", index_key, ttl)

return {1, #ARGV - 2}
`)

// Lua script for extending the TTL of every lock owned by a booking
var luaRenewLocks = redis.NewScript(`
-- KEYS[1] = booking index key
-- ARGV[1] = ttl_seconds

local index_key = KEYS[1]
local ttl = tonumber(ARGV[1])

local lock_keys = redis.call("SMEMBERS", index_key)
for i = 1, #lock_keys do
    redis.call("EXPIRE", lock_keys[i], ttl)
end
redis.call("EXPIRE", index_key, ttl)

return #lock_keys
`)

// Lua script for making a booking's locks permanent on payment confirmation
var luaPromoteLocks = redis.NewScript(`
-- KEYS[1] = booking index key

local index_key = KEYS[1]

local lock_keys = redis.call("SMEMBERS", index_key)
for i = 1, #lock_keys do
    redis.call("PERSIST", lock_keys[i])
end
redis.call("PERSIST", index_key)

return #lock_keys
`)

// Lua script for unconditional release; also cleans the owning booking's index
var luaReleaseLocks = redis.NewScript(`
-- ARGV[1..N] = seat lock keys

local released = 0
for i = 1, #ARGV do
    local owner = redis.call("GET", ARGV[i])
    if owner then
        redis.call("SREM", "booking_locks:" .. owner, ARGV[i])
        redis.call("DEL", ARGV[i])
        released = released + 1
    end
end

return released
`)

// RedisStore implements Store on top of a shared Redis instance using Lua
// scripts so every multi-key mutation is a single atomic operation.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a new Redis-backed seat lock store
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{
		redis: redisClient,
	}
}

func seatLockKey(tripID, seatCode string) string {
	return fmt.Sprintf("seat_lock:%s:%s", tripID, seatCode)
}

func bookingIndexKey(bookingID string) string {
	return fmt.Sprintf("booking_locks:%s", bookingID)
}

// Acquire attempts to lock all requested seats for the booking as one atomic set.
// On conflict no lock is created for any seat in the batch.
func (s *RedisStore) Acquire(ctx context.Context, tripID string, seatCodes []string, bookingID string, ttl time.Duration) error {
	if s.redis == nil {
		return fmt.Errorf("%w: redis client not configured", ErrUnavailable)
	}
	if len(seatCodes) == 0 {
		return fmt.Errorf("no seats requested")
	}

	keys := []string{bookingIndexKey(bookingID)}
	args := []interface{}{
		bookingID,
		strconv.Itoa(int(ttl.Seconds())),
	}
	for _, code := range seatCodes {
		args = append(args, seatLockKey(tripID, code))
	}

	result, err := luaAcquireLocks.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return fmt.Errorf("%w: acquire failed: %v", ErrUnavailable, err)
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return fmt.Errorf("%w: unexpected result format from acquire script", ErrUnavailable)
	}

	success, ok := resultArray[0].(int64)
	if !ok {
		return fmt.Errorf("%w: invalid success flag in acquire script result", ErrUnavailable)
	}

	if success == 0 {
		conflictKey, ok := resultArray[1].(string)
		if !ok {
			return &ConflictError{TripID: tripID}
		}
		return &ConflictError{TripID: tripID, SeatCode: seatCodeFromKey(conflictKey)}
	}

	return nil
}

// Renew extends the expiry of all locks owned by the booking
func (s *RedisStore) Renew(ctx context.Context, bookingID string, ttl time.Duration) error {
	if s.redis == nil {
		return fmt.Errorf("%w: redis client not configured", ErrUnavailable)
	}

	keys := []string{bookingIndexKey(bookingID)}
	args := []interface{}{strconv.Itoa(int(ttl.Seconds()))}

	if err := luaRenewLocks.Run(ctx, s.redis, keys, args...).Err(); err != nil {
		return fmt.Errorf("%w: renew failed: %v", ErrUnavailable, err)
	}

	return nil
}

// Promote removes the expiry from all locks owned by the booking, making the
// reservation permanent. Promoted locks are only removed by Release.
func (s *RedisStore) Promote(ctx context.Context, bookingID string) error {
	if s.redis == nil {
		return fmt.Errorf("%w: redis client not configured", ErrUnavailable)
	}

	if err := luaPromoteLocks.Run(ctx, s.redis, []string{bookingIndexKey(bookingID)}).Err(); err != nil {
		return fmt.Errorf("%w: promote failed: %v", ErrUnavailable, err)
	}

	return nil
}

// Release removes the locks unconditionally, regardless of owner or expiry
func (s *RedisStore) Release(ctx context.Context, tripID string, seatCodes []string) error {
	if s.redis == nil {
		return fmt.Errorf("%w: redis client not configured", ErrUnavailable)
	}
	if len(seatCodes) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(seatCodes))
	for _, code := range seatCodes {
		args = append(args, seatLockKey(tripID, code))
	}

	if err := luaReleaseLocks.Run(ctx, s.redis, []string{}, args...).Err(); err != nil {
		return fmt.Errorf("%w: release failed: %v", ErrUnavailable, err)
	}

	return nil
}

// PreloadScripts loads Lua scripts into Redis for better performance
func (s *RedisStore) PreloadScripts(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("%w: redis client not configured", ErrUnavailable)
	}

	scripts := []*redis.Script{luaAcquireLocks, luaRenewLocks, luaPromoteLocks, luaReleaseLocks}
	for _, script := range scripts {
		if err := script.Load(ctx, s.redis).Err(); err != nil {
			return fmt.Errorf("failed to load seat lock script: %w", err)
		}
	}

	return nil
}

// seatCodeFromKey extracts the seat code from a seat_lock:{trip}:{code} key
func seatCodeFromKey(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-1]
}

package seatlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestAcquire_Success(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectEvalSha(luaAcquireLocks.Hash(),
		[]string{"booking_locks:booking-1"},
		"booking-1", "600",
		"seat_lock:trip-1:A1", "seat_lock:trip-1:A2",
	).SetVal([]interface{}{int64(1), int64(2)})

	err := store.Acquire(context.Background(), "trip-1", []string{"A1", "A2"}, "booking-1", 10*time.Minute)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquire_Conflict(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectEvalSha(luaAcquireLocks.Hash(),
		[]string{"booking_locks:booking-2"},
		"booking-2", "600",
		"seat_lock:trip-1:A1", "seat_lock:trip-1:B3",
	).SetVal([]interface{}{int64(0), "seat_lock:trip-1:B3"})

	err := store.Acquire(context.Background(), "trip-1", []string{"A1", "B3"}, "booking-2", 10*time.Minute)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, "B3", conflict.SeatCode)
	assert.Equal(t, "trip-1", conflict.TripID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquire_RedisDown(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectEvalSha(luaAcquireLocks.Hash(),
		[]string{"booking_locks:booking-3"},
		"booking-3", "600",
		"seat_lock:trip-1:C4",
	).SetErr(errors.New("connection refused"))

	err := store.Acquire(context.Background(), "trip-1", []string{"C4"}, "booking-3", 10*time.Minute)
	assert.Error(t, err)
	// Infrastructure failure must never read as a conflict: the caller would
	// report the seat as taken when nothing is known.
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestAcquire_NilClient(t *testing.T) {
	store := NewRedisStore(nil)

	err := store.Acquire(context.Background(), "trip-1", []string{"A1"}, "booking-1", time.Minute)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestRenew(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectEvalSha(luaRenewLocks.Hash(),
		[]string{"booking_locks:booking-1"},
		"300",
	).SetVal(int64(2))

	err := store.Renew(context.Background(), "booking-1", 5*time.Minute)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromote(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectEvalSha(luaPromoteLocks.Hash(),
		[]string{"booking_locks:booking-1"},
	).SetVal(int64(2))

	err := store.Promote(context.Background(), "booking-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectEvalSha(luaReleaseLocks.Hash(),
		[]string{},
		"seat_lock:trip-1:A1", "seat_lock:trip-1:A2",
	).SetVal(int64(2))

	err := store.Release(context.Background(), "trip-1", []string{"A1", "A2"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease_NoSeats(t *testing.T) {
	client, _ := redismock.NewClientMock()
	store := NewRedisStore(client)

	err := store.Release(context.Background(), "trip-1", nil)
	assert.NoError(t, err)
}

func TestSeatCodeFromKey(t *testing.T) {
	assert.Equal(t, "A1", seatCodeFromKey("seat_lock:trip-1:A1"))
	assert.Equal(t, "", seatCodeFromKey("malformed"))
}

package limiter

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.May, 1, 12, 59, 59, 0, time.UTC)

func setupLimiter() (*Limiter, redismock.ClientMock, string) {
	db, mock := redismock.NewClientMock()
	l := &Limiter{Redis: db, Limit: 2, Now: func() time.Time { return now }}

	key := "limiter:u1:" + strconv.FormatInt(time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC).Unix(), 10)
	return l, mock, key
}

func TestLimiter_Increment(t *testing.T) {
	l, mock, key := setupLimiter()
	defer mock.ClearExpect()

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Hour).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)

	n, err := l.Increment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = l.Increment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLimiter_LimitExceeded(t *testing.T) {
	l, mock, key := setupLimiter()
	defer mock.ClearExpect()

	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).SetVal("1")
	mock.ExpectGet(key).SetVal("2")
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))

	for _, want := range []bool{false, false, true} {
		exceeded, err := l.LimitExceeded(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, want, exceeded)
	}

	_, err := l.LimitExceeded(context.Background(), "u1")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLimiter_WindowsAreHourly(t *testing.T) {
	l, _, key := setupLimiter()
	assert.Equal(t, key, l.counterKey("u1"))

	l.Now = func() time.Time { return now.Add(time.Second) }
	assert.NotEqual(t, key, l.counterKey("u1"))
}

package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/testutil"
)

// exerciseStore runs the behavior shared by every backend.
func exerciseStore(t *testing.T, s Store, userID string) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	_, err := s.Get(ctx, id)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.Create(ctx, models.Session{ID: id, UserID: userID, ExpiresAt: exp}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.ExpiresAt.Equal(exp))

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSQLStore(t *testing.T) {
	db := testutil.TestDB(t)
	u := testutil.TestUser(t, db, "a@example.com")
	exerciseStore(t, NewSQLStore(db), u.ID)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "linkshelf:session:abc", Key("abc"))
}

func TestRedisStore_RejectsExpired(t *testing.T) {
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	err := s.Create(context.Background(), models.Session{ID: "x", UserID: "u", ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
}

// TestRedisStore needs a reachable redis; set LINKSHELF_TEST_REDIS_ADDR to run it.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("LINKSHELF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LINKSHELF_TEST_REDIS_ADDR not set")
	}
	client, err := ConnectRedis(context.Background(), RedisOptions{Addr: addr, ConnectTimeout: 5 * time.Second}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	exerciseStore(t, NewRedisStore(client), "user-1")
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
)

const keyPrefix = "linkshelf:session:"

// Key returns the redis key holding session id.
func Key(id string) string {
	return keyPrefix + id
}

type redisSession struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore keeps sessions in redis with a TTL matching their expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, sess models.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: create: already expired")
	}
	data, err := json.Marshal(redisSession{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.client.Set(ctx, Key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := s.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &models.Session{ID: id, UserID: rs.UserID, ExpiresAt: rs.ExpiresAt}, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// RedisOptions describes how to reach the redis session backend.
type RedisOptions struct {
	Addr           string
	Username       string
	Password       string
	DB             int
	ConnectTimeout time.Duration // total time allowed for connection attempts
	RetryInterval  time.Duration // initial wait between attempts, doubled up to MaxWait
	MaxWait        time.Duration
}

// ConnectRedis creates a client and pings it with exponential backoff until
// ConnectTimeout elapses.
func ConnectRedis(ctx context.Context, opts RedisOptions, log logger.Logger) (*redis.Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	log.Info("connecting to redis", logger.String("addr", opts.Addr), logger.Duration("timeout", opts.ConnectTimeout))

	deadline := time.Now().Add(opts.ConnectTimeout)
	wait := opts.RetryInterval
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			log.Info("connected to redis", logger.String("addr", opts.Addr), logger.Int("attempts", attempt))
			return client, nil
		}
		if time.Now().Add(wait).After(deadline) {
			_ = client.Close()
			log.Error("redis unavailable", logger.String("addr", opts.Addr), logger.Int("attempts", attempt), logger.Error(err))
			return nil, fmt.Errorf("session: redis unavailable after %d attempts: %w", attempt, err)
		}
		log.Warn("redis connection failed, retrying",
			logger.String("addr", opts.Addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err))

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}

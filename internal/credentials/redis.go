package credentials

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in a Redis hash so several processes of the
// same profile share one session.
type RedisStore struct {
	cli *redis.Client
	key string
}

// NewRedisStore connects to url and checks the server with PING.
func NewRedisStore(ctx context.Context, url, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{cli: cli, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (Credentials, error) {
	vals, err := s.cli.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("redis hgetall: %w", err)
	}
	creds := Credentials{Token: vals["token"]}
	if raw := vals["user_id"]; raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return Credentials{}, fmt.Errorf("redis user_id %q: %w", raw, err)
		}
		creds.UserID = id
	}
	return creds, nil
}

func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	return s.cli.HSet(ctx, s.key, "token", creds.Token, "user_id", strconv.Itoa(creds.UserID)).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.cli.Del(ctx, s.key).Err()
}

func (s *RedisStore) Close() error {
	return s.cli.Close()
}

package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/amp-labs/tickfsm/retry"
	"github.com/redis/go-redis/v9"
)

var (
	ErrParseURL          = errors.New("failed to parse redis connection string")
	ErrNotReady          = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
	ErrReadFailed        = errors.New("failed to read facts from redis")
	ErrWriteFailed       = errors.New("failed to write facts to redis")
)

// Config describes how to reach Redis.
type Config struct {
	URL            string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"tickfsm:facts:"`
	RetryAttempts  uint          `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Connect parses cfg.URL and pings the server until it answers, giving up
// after cfg.RetryAttempts pings or cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrParseURL, err)
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client := redis.NewClient(opts)

	err = retry.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	},
		retry.WithAttempts(max(cfg.RetryAttempts, 1)),
		retry.WithBackoff(retry.ConstantBackoff(cfg.RetryInterval)),
		retry.WithJitter(retry.EqualJitter),
	)
	if err != nil {
		_ = client.Close()

		return nil, errors.Join(ErrNotReady, err)
	}

	return client, nil
}

// Healthcheck returns a readiness probe for client.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}

		return nil
	}
}

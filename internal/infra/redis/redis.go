package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout      = 5 * time.Second
	ioTimeout        = 2 * time.Second
	clientName       = "bloodbank-workflow"
	minIdleRedisConn = 2
)

// NewRedis connects to the instance named by url and fails fast when it does
// not answer a ping. Locks and rate-limit windows are short-lived, so reads
// and writes get tight timeouts.
func NewRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout
	opts.MinIdleConns = minIdleRedisConn

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s did not answer ping: %w", opts.Addr, err)
	}
	return client, nil
}

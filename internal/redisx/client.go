// Package redisx builds the optional Redis client used for event fan-out.
package redisx

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Config configures the Redis client.
type Config struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	TLSEnabled  bool
	TLSInsecure bool
}

// Enabled reports whether an address was configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// Options converts the configuration into go-redis options.
func (c Config) Options() *redis.Options {
	opts := &redis.Options{
		Addr:     strings.TrimSpace(c.Addr),
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: c.TLSInsecure, // #nosec G402 – intentional opt-in
		}
	}
	return opts
}

// NewClient returns a connected Redis client, or nil when no address is configured.
func NewClient(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client := redis.NewClient(cfg.Options())
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", cfg.Addr, err)
	}
	return client, nil
}

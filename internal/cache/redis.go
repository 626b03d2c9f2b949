package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// Client is nil until InitRedis connects, and stays nil when REDIS_URL is
// unset so callers can run without a cache.
var Client *redis.Client

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
	fatalf        = log.Fatalf
)

// InitRedis connects the latest-price cache from REDIS_URL. A configured but
// unreachable Redis is fatal.
func InitRedis(ctx context.Context) {
	client, err := Connect(ctx, strings.TrimSpace(os.Getenv("REDIS_URL")))
	if err != nil {
		fatalf("cache: %v", err)
		return
	}
	Client = client
	if client == nil {
		log.Println("REDIS_URL not set, latest-price cache disabled")
		return
	}
	opts := client.Options()
	log.Printf("Connected to Redis at %s (db %d)", opts.Addr, opts.DB)
}

// Connect returns a pinged client for redisURL, or nil when redisURL is
// empty. redisURL is either host:port or a redis:// / rediss:// URL.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redisOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := newRedisClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pingRedis(pingCtx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping REDIS_URL %s: %w", opts.Addr, err)
	}
	return client, nil
}

func redisOptions(redisURL string) (*redis.Options, error) {
	if !strings.Contains(redisURL, "://") {
		return &redis.Options{Addr: redisURL}, nil
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}

// Package cache is a content-addressed side-cache for processing results,
// backed by Redis with provider TTL expiry. Identical file bytes plus
// identical options map to the same key, so a document is computed at most
// once per TTL window. The cache is not a system of record: a missing or
// failing backend degrades to a miss and the pipeline carries on.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"docpipe/internal/logger"
	"docpipe/pkg/models"
)

const keyPrefix = "document_processing"

// Fingerprint returns a deterministic short digest of the file's bytes,
// the content half of the cache key.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Key combines a content fingerprint with the canonical serialization of the
// processing options. Struct field order makes the JSON form canonical, so
// equal options always serialize identically.
func Key(fingerprint string, opts models.ProcessingOptions) string {
	encoded, _ := json.Marshal(opts)
	return fmt.Sprintf("%s:%s:%s", keyPrefix, fingerprint, encoded)
}

// Client is a read-through/write-through result cache. A Client with no
// reachable backend stays usable and reports every lookup as a miss.
type Client struct {
	rdb     *redis.Client
	enabled bool
	log     zerolog.Logger
}

// New connects to Redis at addr. An empty addr or a failed ping disables
// caching rather than failing startup; availability beats strict caching.
func New(ctx context.Context, addr, password string) *Client {
	c := &Client{log: logger.WithComponent("cache")}
	if addr == "" {
		c.log.Info().Msg("No cache backend configured, caching disabled")
		return c
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		c.log.Warn().Err(err).Str("addr", addr).Msg("Cache backend unreachable, caching disabled")
		return c
	}

	c.rdb = rdb
	c.enabled = true
	c.log.Info().Str("addr", addr).Msg("Cache backend connected")
	return c
}

// Enabled reports whether a backend is connected.
func (c *Client) Enabled() bool { return c.enabled }

// Close releases the backend connection.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Get returns the cached result for key. Backend errors and corrupt entries
// are logged and reported as a miss, never surfaced to the caller.
func (c *Client) Get(ctx context.Context, key string) (*models.DocumentProcessingResult, bool) {
	if !c.enabled {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("Cache read failed, treating as miss")
		return nil, false
	}

	var result models.DocumentProcessingResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.log.Warn().Err(err).Msg("Corrupt cache entry, treating as miss")
		return nil, false
	}
	return &result, true
}

// Put stores the result under key with the given TTL. Write failures are
// logged and swallowed; losing a cache write must not lose the computation.
func (c *Client) Put(ctx context.Context, key string, result *models.DocumentProcessingResult, ttl time.Duration) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to encode result for cache")
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("Cache write failed")
	}
}

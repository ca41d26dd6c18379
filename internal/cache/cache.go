// Package cache stores successful extraction payloads keyed by image and
// model configuration.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Settings selects and configures a cache backend.
type Settings struct {
	Driver     string // memory, redis or none
	MaxEntries int
	Redis      RedisConfig
}

// New builds the client named by s.Driver.
func New(s Settings) (Client, error) {
	switch s.Driver {
	case "", "memory":
		return NewMemoryClient(s.MaxEntries), nil
	case "redis":
		return NewRedisClient(s.Redis)
	case "none":
		return NopClient{}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", s.Driver)
	}
}

// Key joins parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Digest returns the hex sha256 of the parts joined by '|'.
func Digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ExtractionKey identifies a cached extraction for one image under one
// provider, model list and prompt.
func ExtractionKey(image []byte, provider string, models []string, prompt string) string {
	sum := sha256.Sum256(image)
	return Key("extract", hex.EncodeToString(sum[:]), Digest(provider, strings.Join(models, ","), prompt))
}

// GetJSON decodes the cached value at key into v.
func GetJSON(ctx context.Context, c Client, key string, v any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, c Client, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// NopClient never stores anything.
type NopClient struct{}

func (NopClient) Get(context.Context, string) ([]byte, error)              { return nil, ErrCacheMiss }
func (NopClient) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopClient) Delete(context.Context, string) error                     { return nil }
func (NopClient) DeleteByPrefix(context.Context, string) error             { return nil }
func (NopClient) Close() error                                             { return nil }

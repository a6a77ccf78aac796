// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache keeps quantified generation specs in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// Stats are the hit counters of a SpecCache.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// RedisSpecCache stores GenerationSpec values as JSON. Redis failures are logged
// and treated as misses.
type RedisSpecCache struct {
	client *redis.Client
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewRedisSpecCache wraps an existing client. A non-positive ttl uses DefaultTTL.
func NewRedisSpecCache(client *redis.Client, ttl time.Duration) *RedisSpecCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSpecCache{client: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*RedisSpecCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	slog.Info("connected to spec cache", "addr", addr, "ttl", ttl)
	return NewRedisSpecCache(client, ttl), nil
}

func (c *RedisSpecCache) Get(ctx context.Context, key string) (model.GenerationSpec, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return model.GenerationSpec{}, false
	}
	if err != nil {
		slog.WarnContext(ctx, "redis get failed", "key", key, "error", err)
		c.misses.Add(1)
		return model.GenerationSpec{}, false
	}

	var spec model.GenerationSpec
	if err := json.Unmarshal(val, &spec); err != nil || spec.Validate() != nil {
		slog.WarnContext(ctx, "discarding unreadable cached spec", "key", key)
		c.misses.Add(1)
		return model.GenerationSpec{}, false
	}
	c.hits.Add(1)
	return spec, true
}

func (c *RedisSpecCache) Set(ctx context.Context, key string, spec model.GenerationSpec) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(spec)
	if err != nil {
		slog.WarnContext(ctx, "json marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "redis set failed", "key", key, "error", err)
		return
	}
	c.sets.Add(1)
}

func (c *RedisSpecCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Sets: c.sets.Load()}
}

func (c *RedisSpecCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSpecCache) Close() error {
	return c.client.Close()
}

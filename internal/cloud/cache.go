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

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache stores text-only generation responses keyed by model and
// prompt. A cache failure is never a generation failure.
type ResponseCache interface {
	Get(ctx context.Context, modelName string, prompt string) (string, bool)
	Put(ctx context.Context, modelName string, prompt string, response string)
}

// RedisResponseCache implements ResponseCache on Redis.
type RedisResponseCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisResponseCache(client redis.UniversalClient, ttl time.Duration) *RedisResponseCache {
	return &RedisResponseCache{client: client, ttl: ttl}
}

// NewRedisClient connects to the configured address and pings it.
func NewRedisClient(ctx context.Context, cfg Cache) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// CacheKey is "genai:" followed by the hex sha256 of model and prompt.
func CacheKey(modelName string, prompt string) string {
	sum := sha256.Sum256([]byte(modelName + "\x00" + prompt))
	return "genai:" + hex.EncodeToString(sum[:])
}

func (c *RedisResponseCache) Get(ctx context.Context, modelName string, prompt string) (string, bool) {
	out, err := c.client.Get(ctx, CacheKey(modelName, prompt)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "response cache read failed", "error", err)
		}
		return "", false
	}
	return out, true
}

func (c *RedisResponseCache) Put(ctx context.Context, modelName string, prompt string, response string) {
	if err := c.client.Set(ctx, CacheKey(modelName, prompt), response, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "response cache write failed", "error", err)
	}
}

package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"

	"github.com/redis/go-redis/v9"
)

// redisClient is the part of the go-redis API the archive needs.
type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisArchive stores finished reports as JSON values that expire with the
// registry TTL.
type RedisArchive struct {
	client redisClient
	prefix string
}

// NewRedisArchive creates an archive writing keys under prefix
func NewRedisArchive(client redis.Cmdable, prefix string) *RedisArchive {
	return &RedisArchive{client: client, prefix: prefix}
}

func (a *RedisArchive) key(id string) string {
	return a.prefix + id
}

// Put writes report with the given expiration.
func (a *RedisArchive) Put(ctx context.Context, report *models.VerificationReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := a.client.Set(ctx, a.key(report.VerificationID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get reads a report. A missing or expired key yields domain.ErrNotFound.
func (a *RedisArchive) Get(ctx context.Context, verificationID string) (*models.VerificationReport, error) {
	data, err := a.client.Get(ctx, a.key(verificationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("archived verification %s: %w", verificationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var report models.VerificationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revocations keeps revoked token ids in redis until the token would have expired.
type Revocations struct {
	client *redis.Client
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client}
}

func (r *Revocations) Revoke(ctx context.Context, tokenID string, remaining time.Duration) error {
	if tokenID == "" || remaining <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, key(tokenID), "1", remaining).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	_, err := r.client.Get(ctx, key(tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return true, nil
}

func key(tokenID string) string {
	return "auth:revoked:" + tokenID
}

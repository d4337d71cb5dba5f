package auth

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const tokenVersionPrefix = "tokenver:"

// TokenVersions wraps Redis for token revocation. Every token carries the
// version current at issue time; bumping the version invalidates all of a
// user's outstanding tokens at once.
type TokenVersions struct {
	rdb *redis.Client
}

func NewTokenVersions(rdb *redis.Client) *TokenVersions {
	return &TokenVersions{rdb: rdb}
}

// Current returns the user's token version, 0 if never bumped.
func (v *TokenVersions) Current(ctx context.Context, userID string) (int64, error) {
	n, err := v.rdb.Get(ctx, tokenVersionPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump revokes every token issued so far for the user.
func (v *TokenVersions) Bump(ctx context.Context, userID string) (int64, error) {
	return v.rdb.Incr(ctx, tokenVersionPrefix+userID).Result()
}

// Forget drops the counter, used when the user is deleted.
func (v *TokenVersions) Forget(ctx context.Context, userID string) error {
	return v.rdb.Del(ctx, tokenVersionPrefix+userID).Err()
}

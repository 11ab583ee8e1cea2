package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// MembershipCacheRepo caches membership oracle verdicts. Only definite answers
// are cached; oracle failures are never written.
type MembershipCacheRepo struct {
	client *goredis.Client
}

func NewMembershipCacheRepo(client *goredis.Client) *MembershipCacheRepo {
	return &MembershipCacheRepo{client: client}
}

func (r *MembershipCacheRepo) Get(ctx context.Context, channel string, userID int64) (bool, bool, error) {
	if r.client == nil {
		return false, false, fmt.Errorf("redis client is nil")
	}
	if channel == "" || userID <= 0 {
		return false, false, fmt.Errorf("invalid membership cache lookup")
	}

	val, err := r.client.Get(ctx, membershipKey(channel, userID)).Result()
	if err == goredis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("get membership cache: %w", err)
	}

	return val == "1", true, nil
}

func (r *MembershipCacheRepo) Set(ctx context.Context, channel string, userID int64, member bool, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if channel == "" || userID <= 0 || ttl <= 0 {
		return fmt.Errorf("invalid membership cache payload")
	}

	val := "0"
	if member {
		val = "1"
	}
	if err := r.client.Set(ctx, membershipKey(channel, userID), val, ttl).Err(); err != nil {
		return fmt.Errorf("set membership cache: %w", err)
	}
	return nil
}

func membershipKey(channel string, userID int64) string {
	return "membership:" + channel + ":" + strconv.FormatInt(userID, 10)
}

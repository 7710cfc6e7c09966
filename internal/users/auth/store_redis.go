// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/heimursaga/api/internal/platform/apperr"
	"github.com/heimursaga/api/internal/platform/constants"
)

// # Signup Velocity Tracker (Redis)

// memberSeparator splits the payload from the uniqueness suffix inside a
// sorted-set member. It never appears in email local-parts or usernames.
const memberSeparator = "|"

// velocityKeyTTL keeps keys alive a little past the inspection window so a
// count issued right at the window edge still sees every relevant entry.
const velocityKeyTTL = VelocityWindow + 10*time.Minute

/*
RedisVelocityRepository implements [VelocityRepository] on Redis sorted sets.

# Layout

Registrations land in sorted sets scored by unix time:

  - one shared set of email local-parts ("signup:velocity:localparts"),
    scanned for substring matches;
  - one set per alphabetic username prefix ("signup:velocity:prefix:<p>"),
    counted directly.

Members carry a random suffix so identical payloads from separate signups
stay distinct. Old entries are trimmed by score on every read and the keys
expire on their own, so the sets never grow past roughly one window of
traffic.
*/
type RedisVelocityRepository struct {
	client *redis.Client
}

// NewRedisVelocityRepository creates the Redis-backed velocity repository.
func NewRedisVelocityRepository(client *redis.Client) *RedisVelocityRepository {
	return &RedisVelocityRepository{client: client}
}

// TrackSignup records a successful registration's fingerprint.
func (repo *RedisVelocityRepository) TrackSignup(ctx context.Context, emailLocalPart, usernamePrefix string, at time.Time) error {
	score := float64(at.Unix())
	suffix := uuid.NewString()

	pipe := repo.client.TxPipeline()

	pipe.ZAdd(ctx, constants.RedisPrefixSignupLocalParts, redis.Z{
		Score:  score,
		Member: emailLocalPart + memberSeparator + suffix,
	})
	pipe.Expire(ctx, constants.RedisPrefixSignupLocalParts, velocityKeyTTL)

	if usernamePrefix != "" {
		prefixKey := constants.RedisPrefixSignupUserPrefix + usernamePrefix
		pipe.ZAdd(ctx, prefixKey, redis.Z{
			Score:  score,
			Member: suffix,
		})
		pipe.Expire(ctx, prefixKey, velocityKeyTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Internal(fmt.Errorf("velocity: failed to track signup: %w", err))
	}
	return nil
}

// CountLocalPartMatches counts stored registrations inside the window whose
// fuzzed local-part (last 3 characters stripped) is contained within the
// candidate local-part. Stored parts too short to fuzz are skipped rather
// than matching everything.
//
// The set holds at most one window of signups, so pulling it into memory and
// substring-matching is a bounded scan, not an unbounded one.
func (repo *RedisVelocityRepository) CountLocalPartMatches(ctx context.Context, candidateLocalPart string, window time.Duration) (int64, error) {
	if candidateLocalPart == "" {
		return 0, nil
	}

	cutoff := time.Now().Add(-window).Unix()
	key := constants.RedisPrefixSignupLocalParts

	// Trim entries that fell out of the window before reading.
	if err := repo.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, apperr.Internal(fmt.Errorf("velocity: failed to trim local parts: %w", err))
	}

	members, err := repo.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("velocity: failed to read local parts: %w", err))
	}

	var count int64
	for _, member := range members {
		storedLocalPart, _, _ := strings.Cut(member, memberSeparator)
		if len(storedLocalPart) <= 3 {
			continue
		}
		fragment := storedLocalPart[:len(storedLocalPart)-3]
		if strings.Contains(candidateLocalPart, fragment) {
			count++
		}
	}
	return count, nil
}

// CountUsernamePrefixHits counts registrations inside the window sharing the
// alphabetic username prefix.
func (repo *RedisVelocityRepository) CountUsernamePrefixHits(ctx context.Context, prefix string, window time.Duration) (int64, error) {
	if prefix == "" {
		return 0, nil
	}

	cutoff := time.Now().Add(-window).Unix()
	key := constants.RedisPrefixSignupUserPrefix + prefix

	count, err := repo.client.ZCount(ctx, key, strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("velocity: failed to count username prefix: %w", err))
	}
	return count, nil
}

var _ VelocityRepository = (*RedisVelocityRepository)(nil)

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Implements progress.LeaderboardCache with one sorted set per app.
//
// Architecture:
//   - Sorted set "leaderboard:rank:{appID}" orders users by a composite
//     score: bestScore * 10^7 + xp. The XP ceiling stays below 10^7, so the
//     composite preserves best-score-then-XP ordering in a single ZSET.
//   - Hash "leaderboard:info:{appID}" stores userID -> entry JSON.
//
// Both keys share one TTL; a stale leaderboard simply expires and the next
// read rebuilds it from the progress summaries.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLeaderboardEmpty is returned when the cached leaderboard has no entries.
	ErrLeaderboardEmpty = errors.New("leaderboard_cache: leaderboard is empty")
)

// Key patterns for leaderboard cache.
const (
	keyLeaderboardRank = PrefixLeaderboard + "rank:"
	keyLeaderboardInfo = PrefixLeaderboard + "info:"
)

// compositeScoreBase separates best score from XP in the ZSET score.
// Must stay above shared.MaxXP.
const compositeScoreBase = 1e7

// LeaderboardCache caches per-app leaderboards in Redis sorted sets.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

// cachedEntry is the JSON shape stored in the info hash.
type cachedEntry struct {
	UserID        string `json:"user_id"`
	BestScore     int    `json:"best_score"`
	XP            int    `json:"xp"`
	Level         int    `json:"level"`
	TotalSessions int    `json:"total_sessions"`
}

// GetCachedTop returns up to limit cached entries for the app.
func (l *LeaderboardCache) GetCachedTop(ctx context.Context, appID catalog.AppID, limit int) ([]progress.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, ErrLeaderboardEmpty
	}

	rankKey := keyLeaderboardRank + string(appID)
	infoKey := keyLeaderboardInfo + string(appID)

	userIDs, err := l.cache.Client().ZRevRange(ctx, rankKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, ErrLeaderboardEmpty
	}

	data, err := l.cache.Client().HMGet(ctx, infoKey, userIDs...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]progress.LeaderboardEntry, 0, len(userIDs))
	for i, v := range data {
		str, ok := v.(string)
		if !ok {
			// Info hash fell out of sync with the sorted set; treat the
			// whole cache as stale.
			return nil, ErrCacheMiss
		}

		var ce cachedEntry
		if err := json.Unmarshal([]byte(str), &ce); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}

		entries = append(entries, progress.LeaderboardEntry{
			Rank:          i + 1,
			UserID:        shared.UserID(ce.UserID),
			BestScore:     shared.Score(ce.BestScore),
			XP:            shared.XP(ce.XP),
			Level:         shared.Level(ce.Level),
			TotalSessions: ce.TotalSessions,
		})
	}

	return entries, nil
}

// CacheTop replaces the cached leaderboard for the app.
func (l *LeaderboardCache) CacheTop(ctx context.Context, appID catalog.AppID, entries []progress.LeaderboardEntry) error {
	rankKey := keyLeaderboardRank + string(appID)
	infoKey := keyLeaderboardInfo + string(appID)

	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, rankKey, infoKey)

	if len(entries) == 0 {
		_, err := pipe.Exec(ctx)
		return err
	}

	zMembers := make([]redis.Z, 0, len(entries))
	hashData := make(map[string]interface{}, len(entries))

	for _, e := range entries {
		zMembers = append(zMembers, redis.Z{
			Score:  float64(e.BestScore.Int())*compositeScoreBase + float64(e.XP.Int()),
			Member: string(e.UserID),
		})

		data, err := json.Marshal(cachedEntry{
			UserID:        string(e.UserID),
			BestScore:     e.BestScore.Int(),
			XP:            e.XP.Int(),
			Level:         e.Level.Int(),
			TotalSessions: e.TotalSessions,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		hashData[string(e.UserID)] = data
	}

	pipe.ZAdd(ctx, rankKey, zMembers...)
	pipe.HSet(ctx, infoKey, hashData)
	pipe.Expire(ctx, rankKey, l.ttl)
	pipe.Expire(ctx, infoKey, l.ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate drops the cached leaderboard for the app.
func (l *LeaderboardCache) Invalidate(ctx context.Context, appID catalog.AppID) error {
	return l.cache.Delete(ctx,
		keyLeaderboardRank+string(appID),
		keyLeaderboardInfo+string(appID),
	)
}

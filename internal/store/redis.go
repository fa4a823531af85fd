package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/rankiro/internal/ranking"
	"github.com/onnwee/rankiro/internal/tracing"
)

// DefaultRedisKeyPrefix namespaces every key written by RedisStore.
const DefaultRedisKeyPrefix = "rankiro"

// RedisStore implements ranking.Store on Redis sorted sets.
//
// Layout under the key prefix:
//
//	<prefix>:latest               hash      item id -> latest score JSON
//	<prefix>:top                  zset      item id scored by latest score
//	<prefix>:category:<category>  zset      item id scored by latest score
//	<prefix>:history:<item id>    zset      score JSON scored by computed_at (ms)
//
// NaN scores sort last in the leaderboards.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultRedisKeyPrefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) latestKey() string {
	return s.prefix + ":latest"
}

func (s *RedisStore) topKey() string {
	return s.prefix + ":top"
}

func (s *RedisStore) categoryKey(category string) string {
	return s.prefix + ":category:" + category
}

func (s *RedisStore) historyKey(itemID string) string {
	return s.prefix + ":history:" + itemID
}

// redisScore is the stored JSON form of a score. JSON has no NaN, so a NaN
// score is written as 0 with NaN set.
type redisScore struct {
	ranking.Score
	NaN bool `json:"nan,omitempty"`
}

func encodeScore(sc ranking.Score) ([]byte, error) {
	payload := redisScore{Score: sc}
	if math.IsNaN(sc.Score) {
		payload.Score.Score = 0
		payload.NaN = true
	}
	return json.Marshal(payload)
}

func decodeScore(data []byte) (ranking.Score, error) {
	var payload redisScore
	if err := json.Unmarshal(data, &payload); err != nil {
		return ranking.Score{}, err
	}
	if payload.NaN {
		payload.Score.Score = math.NaN()
	}
	return payload.Score, nil
}

// leaderboardScore maps NaN to -Inf, which Redis accepts.
func leaderboardScore(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

// Save implements ranking.Store. Items whose category changed are moved
// between category leaderboards.
func (s *RedisStore) Save(ctx context.Context, scores []ranking.Score) (err error) {
	if len(scores) == 0 {
		return nil
	}

	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.DBSystemRedis, s.prefix, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	ids := make([]string, len(scores))
	for i, sc := range scores {
		ids[i] = sc.ItemID
	}
	previous, err := s.client.HMGet(ctx, s.latestKey(), ids...).Result()
	if err != nil {
		return fmt.Errorf("failed to load previous scores: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, sc := range scores {
			data, err := encodeScore(sc)
			if err != nil {
				return fmt.Errorf("failed to encode score for %q: %w", sc.ItemID, err)
			}

			if raw, ok := previous[i].(string); ok {
				if prev, err := decodeScore([]byte(raw)); err == nil && prev.Category != sc.Category {
					pipe.ZRem(ctx, s.categoryKey(prev.Category), sc.ItemID)
				}
			}

			member := redis.Z{Score: leaderboardScore(sc.Score), Member: sc.ItemID}
			pipe.HSet(ctx, s.latestKey(), sc.ItemID, data)
			pipe.ZAdd(ctx, s.topKey(), member)
			pipe.ZAdd(ctx, s.categoryKey(sc.Category), member)
			pipe.ZAdd(ctx, s.historyKey(sc.ItemID), redis.Z{
				Score:  float64(sc.ComputedAt.UnixMilli()),
				Member: data,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save scores: %w", err)
	}
	return nil
}

// ByCategory implements ranking.Store.
func (s *RedisStore) ByCategory(ctx context.Context, category string, limit, offset int) ([]ranking.Score, error) {
	scores, err := s.leaderboard(ctx, s.categoryKey(category), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get scores by category: %w", err)
	}
	return scores, nil
}

// TopRanked implements ranking.Store.
func (s *RedisStore) TopRanked(ctx context.Context, limit int) ([]ranking.Score, error) {
	scores, err := s.leaderboard(ctx, s.topKey(), limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get top ranked scores: %w", err)
	}
	return scores, nil
}

func (s *RedisStore) leaderboard(ctx context.Context, key string, limit, offset int) (scores []ranking.Score, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.DBSystemRedis, key, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	start, stop := rangeBounds(limit, offset)
	ids, err := s.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []ranking.Score{}, nil
	}

	values, err := s.client.HMGet(ctx, s.latestKey(), ids...).Result()
	if err != nil {
		return nil, err
	}

	scores = make([]ranking.Score, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// leaderboard entry without a payload
			continue
		}
		sc, err := decodeScore([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode score for %q: %w", ids[i], err)
		}
		scores = append(scores, sc)
	}
	return scores, nil
}

// rangeBounds converts limit/offset into inclusive ZRANGE indexes.
func rangeBounds(limit, offset int) (int64, int64) {
	start := int64(max(offset, 0))
	if limit <= 0 {
		return start, -1
	}
	return start, start + int64(limit) - 1
}

// History implements ranking.Store.
func (s *RedisStore) History(ctx context.Context, itemID string, start, end *time.Time) (scores []ranking.Score, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.DBSystemRedis, s.historyKey(itemID), tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	members, err := s.client.ZRangeByScore(ctx, s.historyKey(itemID), &redis.ZRangeBy{
		Min: scoreBound(start, "-inf"),
		Max: scoreBound(end, "+inf"),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}

	scores = make([]ranking.Score, 0, len(members))
	for _, m := range members {
		sc, err := decodeScore([]byte(m))
		if err != nil {
			return nil, fmt.Errorf("failed to decode score history for %q: %w", itemID, err)
		}
		scores = append(scores, sc)
	}
	return scores, nil
}

func scoreBound(t *time.Time, open string) string {
	if t == nil {
		return open
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

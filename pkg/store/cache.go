package store

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// ZEntry is one member of a sorted set with its score.
type ZEntry struct {
	Member string
	Score  float64
}

// Set stores a value under key with an optional TTL (0 = no expiry).
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	done := c.observe("set")
	encoded, err := EncodeValue(value)
	if err != nil {
		done(err)
		return err
	}
	if err := c.rdb.Set(ctx, key, encoded, ttl).Err(); err != nil {
		done(err)
		return storeErr("set", key, err)
	}
	done(nil)
	return nil
}

// Get returns the raw string stored under key, or ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	done := c.observe("get")
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		done(nil)
		return "", ErrNotFound
	}
	if err != nil {
		done(err)
		return "", storeErr("get", key, err)
	}
	done(nil)
	return val, nil
}

// GetInt64 reads a counter value. Absent keys read as 0, not as an error,
// matching Redis counter semantics.
func (c *Client) GetInt64(ctx context.Context, key string) (int64, error) {
	done := c.observe("get")
	val, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		done(nil)
		return 0, nil
	}
	if err != nil {
		done(err)
		return 0, storeErr("get", key, err)
	}
	done(nil)
	return val, nil
}

// IncrBy increments a counter and refreshes its TTL when ttl > 0. The
// increment and the TTL refresh are two commands, not one atomic unit.
func (c *Client) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	done := c.observe("incrby")
	val, err := c.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		done(err)
		return 0, storeErr("incrby", key, err)
	}
	if ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			done(err)
			return val, storeErr("expire", key, err)
		}
	}
	done(nil)
	return val, nil
}

// Del removes keys and returns how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	done := c.observe("del")
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		done(err)
		return 0, storeErr("del", keys[0], err)
	}
	done(nil)
	return n, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	done := c.observe("exists")
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		done(err)
		return false, storeErr("exists", key, err)
	}
	done(nil)
	return n > 0, nil
}

// Expire sets a TTL on key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	done := c.observe("expire")
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		done(err)
		return storeErr("expire", key, err)
	}
	done(nil)
	return nil
}

// TTL returns the remaining time to live of a key. Redis conventions apply:
// -1 means no expiry, -2 means the key does not exist.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	done := c.observe("ttl")
	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		done(err)
		return 0, storeErr("ttl", key, err)
	}
	done(nil)
	return ttl, nil
}

// Keys returns all keys matching pattern, collected through SCAN.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	done := c.observe("scan")
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		done(err)
		return nil, storeErr("scan", pattern, err)
	}
	done(nil)
	return keys, nil
}

// Hash operations

// HSet writes fields into a hash (structured values serialized to JSON) and
// refreshes the key TTL when ttl > 0.
func (c *Client) HSet(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error {
	done := c.observe("hset")
	encoded := make(map[string]interface{}, len(fields))
	for field, value := range fields {
		s, err := EncodeValue(value)
		if err != nil {
			done(err)
			return err
		}
		encoded[field] = s
	}
	if err := c.rdb.HSet(ctx, key, encoded).Err(); err != nil {
		done(err)
		return storeErr("hset", key, err)
	}
	if ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			done(err)
			return storeErr("expire", key, err)
		}
	}
	done(nil)
	return nil
}

// HIncrBy atomically increments one hash field.
func (c *Client) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	done := c.observe("hincrby")
	val, err := c.rdb.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		done(err)
		return 0, storeErr("hincrby", key, err)
	}
	done(nil)
	return val, nil
}

// HGetAll returns every field of a hash. An absent key yields an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	done := c.observe("hgetall")
	val, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		done(err)
		return nil, storeErr("hgetall", key, err)
	}
	done(nil)
	return val, nil
}

// HMGet returns the named fields of a hash. Absent fields are omitted from
// the result rather than reported as errors.
func (c *Client) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	done := c.observe("hmget")
	vals, err := c.rdb.HMGet(ctx, key, fields...).Result()
	if err != nil {
		done(err)
		return nil, storeErr("hmget", key, err)
	}
	result := make(map[string]string, len(fields))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			result[fields[i]] = s
		}
	}
	done(nil)
	return result, nil
}

// Sorted set operations

// ZIncrBy adds delta to member's score, creating it at delta if absent, and
// refreshes the key TTL when ttl > 0.
func (c *Client) ZIncrBy(ctx context.Context, key, member string, delta float64, ttl time.Duration) (float64, error) {
	done := c.observe("zincrby")
	score, err := c.rdb.ZIncrBy(ctx, key, delta, member).Result()
	if err != nil {
		done(err)
		return 0, storeErr("zincrby", key, err)
	}
	if ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			done(err)
			return score, storeErr("expire", key, err)
		}
	}
	done(nil)
	return score, nil
}

// ZAdd sets member's score and refreshes the key TTL when ttl > 0.
func (c *Client) ZAdd(ctx context.Context, key, member string, score float64, ttl time.Duration) error {
	done := c.observe("zadd")
	if err := c.rdb.ZAdd(ctx, key, &redis.Z{Member: member, Score: score}).Err(); err != nil {
		done(err)
		return storeErr("zadd", key, err)
	}
	if ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			done(err)
			return storeErr("expire", key, err)
		}
	}
	done(nil)
	return nil
}

// ZRevRange returns members in descending score order over [start, stop].
func (c *Client) ZRevRange(ctx context.Context, key string, start, stop int64) ([]ZEntry, error) {
	done := c.observe("zrevrange")
	zs, err := c.rdb.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		done(err)
		return nil, storeErr("zrevrange", key, err)
	}
	done(nil)
	return toZEntries(zs), nil
}

// ZRange returns members in ascending score order over [start, stop].
func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]ZEntry, error) {
	done := c.observe("zrange")
	zs, err := c.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		done(err)
		return nil, storeErr("zrange", key, err)
	}
	done(nil)
	return toZEntries(zs), nil
}

func toZEntries(zs []redis.Z) []ZEntry {
	entries := make([]ZEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, ZEntry{Member: member, Score: z.Score})
	}
	return entries
}

// ZRevRank returns member's 0-based rank in descending score order, or
// ErrNotFound if it has no score.
func (c *Client) ZRevRank(ctx context.Context, key, member string) (int64, error) {
	done := c.observe("zrevrank")
	rank, err := c.rdb.ZRevRank(ctx, key, member).Result()
	if err == redis.Nil {
		done(nil)
		return 0, ErrNotFound
	}
	if err != nil {
		done(err)
		return 0, storeErr("zrevrank", key, err)
	}
	done(nil)
	return rank, nil
}

// ZRank returns member's 0-based rank in ascending score order, or ErrNotFound.
func (c *Client) ZRank(ctx context.Context, key, member string) (int64, error) {
	done := c.observe("zrank")
	rank, err := c.rdb.ZRank(ctx, key, member).Result()
	if err == redis.Nil {
		done(nil)
		return 0, ErrNotFound
	}
	if err != nil {
		done(err)
		return 0, storeErr("zrank", key, err)
	}
	done(nil)
	return rank, nil
}

// ZScore returns member's score, or ErrNotFound.
func (c *Client) ZScore(ctx context.Context, key, member string) (float64, error) {
	done := c.observe("zscore")
	score, err := c.rdb.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		done(nil)
		return 0, ErrNotFound
	}
	if err != nil {
		done(err)
		return 0, storeErr("zscore", key, err)
	}
	done(nil)
	return score, nil
}

// ZRem removes members and returns how many were removed.
func (c *Client) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	done := c.observe("zrem")
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	n, err := c.rdb.ZRem(ctx, key, args...).Result()
	if err != nil {
		done(err)
		return 0, storeErr("zrem", key, err)
	}
	done(nil)
	return n, nil
}

// ZCard returns the cardinality of a sorted set.
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	done := c.observe("zcard")
	n, err := c.rdb.ZCard(ctx, key).Result()
	if err != nil {
		done(err)
		return 0, storeErr("zcard", key, err)
	}
	done(nil)
	return n, nil
}

// List operations

// lpushTrimScript pushes one element and trims the list back to ARGV[3]
// elements when its length passes the ARGV[2] trigger, as a single atomic
// server-side operation. Returns the post-trim length.
var lpushTrimScript = redis.NewScript(`
local len = redis.call('LPUSH', KEYS[1], ARGV[1])
if len > tonumber(ARGV[2]) then
  redis.call('LTRIM', KEYS[1], 0, tonumber(ARGV[3]) - 1)
  len = tonumber(ARGV[3])
end
return len
`)

// LPush prepends a value without any trimming.
func (c *Client) LPush(ctx context.Context, key, value string) (int64, error) {
	done := c.observe("lpush")
	n, err := c.rdb.LPush(ctx, key, value).Result()
	if err != nil {
		done(err)
		return 0, storeErr("lpush", key, err)
	}
	done(nil)
	return n, nil
}

// LPushTrim prepends a value and, if the list length passes trigger, trims it
// down to max elements. Push and trim run as one script, so the soft bound
// holds on every push.
func (c *Client) LPushTrim(ctx context.Context, key, value string, trigger, max int64) (int64, error) {
	done := c.observe("lpushtrim")
	res, err := lpushTrimScript.Run(ctx, c.rdb, []string{key}, value, trigger, max).Int64()
	if err != nil {
		done(err)
		return 0, storeErr("lpushtrim", key, err)
	}
	done(nil)
	return res, nil
}

// LRange returns list elements over [start, stop], head first.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	done := c.observe("lrange")
	vals, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		done(err)
		return nil, storeErr("lrange", key, err)
	}
	done(nil)
	return vals, nil
}

// LLen returns the length of a list.
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	done := c.observe("llen")
	n, err := c.rdb.LLen(ctx, key).Result()
	if err != nil {
		done(err)
		return 0, storeErr("llen", key, err)
	}
	done(nil)
	return n, nil
}

// LTrim keeps only the elements in [start, stop].
func (c *Client) LTrim(ctx context.Context, key string, start, stop int64) error {
	done := c.observe("ltrim")
	if err := c.rdb.LTrim(ctx, key, start, stop).Err(); err != nil {
		done(err)
		return storeErr("ltrim", key, err)
	}
	done(nil)
	return nil
}

// LRem removes up to count occurrences of value and returns how many were
// removed.
func (c *Client) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	done := c.observe("lrem")
	n, err := c.rdb.LRem(ctx, key, count, value).Result()
	if err != nil {
		done(err)
		return 0, storeErr("lrem", key, err)
	}
	done(nil)
	return n, nil
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const bucketKeyPrefix = "recurra:rl:"

// refillScript keeps {tokens, ts_ms} in a hash and refills lazily on each
// call using the redis clock, so replicas with skewed clocks share one bucket.
// Returns {allowed, tokens_left}.
const refillScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now

local elapsed = math.max(0, now - last)
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, tostring(tokens)}
`

var errBucketMisconfigured = errors.New("ratelimit: bucket requires a key, a positive rate and a positive burst")

// TokenBucket is a redis-backed limiter shared by every replica.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(refillScript)}
}

// Take consumes one token from the bucket named key.
func (b *TokenBucket) Take(ctx context.Context, key string, rate float64, burst int) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, errors.New("ratelimit: redis bucket not configured")
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return Decision{}, errBucketMisconfigured
	}

	raw, err := b.script.Run(ctx, b.client, []string{bucketKeyPrefix + key},
		rate, burst, idleTTL(rate, burst).Milliseconds()).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: run bucket script: %w", err)
	}
	if len(raw) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply %v", raw)
	}

	allowed, _ := raw[0].(int64)
	remaining, err := parseTokens(raw[1])
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: allowed == 1, Remaining: remaining}
	if !d.Allowed {
		d.RetryAfter = time.Duration((1 - remaining) / rate * float64(time.Second))
	}
	return d, nil
}

// idleTTL lets an untouched bucket expire once it would have refilled twice over.
func idleTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(2 * float64(burst) / rate)
	return time.Duration(math.Max(seconds, 1)) * time.Second
}

func parseTokens(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("ratelimit: parse tokens %q: %w", val, err)
		}
		return f, nil
	case int64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("ratelimit: unexpected tokens type %T", v)
	}
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// submitScript refills the client's bucket from the redis clock, takes one
// token if it can and replies {allowed, retry_after_ms}.
const submitScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

if now > ts then
  tokens = math.min(burst, tokens + ((now - ts) / 1000) * rate)
end

local allowed = 0
local retry = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, retry}
`

// SubmitVerdict is the outcome of one form submission against its client's
// bucket.
type SubmitVerdict struct {
	Allowed    bool
	RetryAfter time.Duration
}

// AllowSubmit takes one token from the bucket of clientKey. On error the
// verdict still allows the submission.
func (l *Limiter) AllowSubmit(ctx context.Context, clientKey string) (SubmitVerdict, error) {
	if !l.Enabled() {
		return SubmitVerdict{Allowed: true}, nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}

	ttl := submitBucketTTL(l.submitRate, l.submitBurst)
	reply, err := l.submit.Run(ctx, l.client,
		[]string{fmt.Sprintf(keySubmitClient, clientKey)},
		l.submitRate,
		l.submitBurst,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return SubmitVerdict{Allowed: true}, fmt.Errorf("submit bucket %s: %w", clientKey, err)
	}

	verdict, err := submitVerdict(reply)
	if err != nil {
		return SubmitVerdict{Allowed: true}, err
	}
	return verdict, nil
}

func submitVerdict(reply []int64) (SubmitVerdict, error) {
	if len(reply) != 2 {
		return SubmitVerdict{Allowed: true}, errors.New("submit bucket: malformed reply")
	}
	if reply[0] == 1 {
		return SubmitVerdict{Allowed: true}, nil
	}
	retry := time.Duration(reply[1]) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return SubmitVerdict{RetryAfter: retry}, nil
}

// submitBucketTTL keeps an idle bucket around for twice the time a drained
// one needs to refill.
func submitBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

package alert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ftahirops/queryguard/model"
)

// RedisTracker is an alternate, distributed implementation of the
// cooldownTracker behind the same interface as the default in-process
// map, for multi-instance daemon deployments that need a
// shared cooldown state. Values are stored as "<unix_nanos>:<severity>"
// strings with a fixed 24-hour TTL, and hourly counters as INCR'd keys
// that expire after one hour.
type RedisTracker struct {
	client *redis.Client
	prefix string
}

// NewRedisTracker returns a RedisTracker using client, namespacing all
// keys under prefix (e.g. "queryguard:alert:").
func NewRedisTracker(client *redis.Client, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = "queryguard:alert:"
	}
	return &RedisTracker{client: client, prefix: prefix}
}

func (r *RedisTracker) cooldownRedisKey(key cooldownKey) string {
	return fmt.Sprintf("%scooldown:%s:%s:%s", r.prefix, key.channel, key.fingerprintID, key.regType)
}

func (r *RedisTracker) hourlyRedisKey(channel string) string {
	return fmt.Sprintf("%shourly:%s", r.prefix, channel)
}

func (r *RedisTracker) ShouldSuppress(key cooldownKey, severity model.Severity, cooldown time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := r.client.Get(ctx, r.cooldownRedisKey(key)).Result()
	if err == redis.Nil || err != nil {
		return false
	}
	sentAt, prevSeverity, ok := parseSendRecord(val)
	if !ok {
		return false
	}
	if time.Since(sentAt) >= cooldown {
		return false
	}
	return severity <= prevSeverity
}

func (r *RedisTracker) RecordSend(key cooldownKey, severity model.Severity, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The key expires after a day regardless of the cooldown window
	// (ShouldSuppress compares the stored timestamp against the
	// window); the TTL only bounds key growth.
	_ = r.client.Set(ctx, r.cooldownRedisKey(key), formatSendRecord(at, severity), 24*time.Hour).Err()
}

func (r *RedisTracker) AllowHourlySend(channel string, cap int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	redisKey := r.hourlyRedisKey(channel)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true // fail open: a tracker outage must not block alerting entirely
	}
	if count == 1 {
		r.client.Expire(ctx, redisKey, time.Hour)
	}
	return int(count) <= cap
}

func formatSendRecord(at time.Time, s model.Severity) string {
	return strconv.FormatInt(at.UnixNano(), 10) + ":" + strconv.Itoa(int(s))
}

func parseSendRecord(val string) (time.Time, model.Severity, bool) {
	nanosStr, sevStr, found := strings.Cut(strings.TrimSpace(val), ":")
	if !found {
		return time.Time{}, 0, false
	}
	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return time.Time{}, 0, false
	}
	sev, err := strconv.Atoi(sevStr)
	if err != nil {
		return time.Time{}, 0, false
	}
	return time.Unix(0, nanos), model.Severity(sev), true
}

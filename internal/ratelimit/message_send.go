// Package ratelimit enforces per-organization message send limits against
// redis. When the limiter is disabled everything is allowed.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/textlane/textlane/internal/clock"
	"github.com/textlane/textlane/internal/config"
	orgdomain "github.com/textlane/textlane/internal/organization/domain"
	"go.uber.org/fx"
)

const (
	keySendOrg   = "msg:send:org:%s"
	keySendDaily = "msg:send:daily:%s:%s"

	dailyKeyTTL = 48 * time.Hour
)

// Decision names why a send was refused.
type Decision string

const (
	DecisionAllowed  Decision = "allowed"
	DecisionThrottle Decision = "throttled"
	DecisionDailyCap Decision = "daily_cap_exceeded"
)

// MessageSendLimiter combines a per-second token bucket with a fixed-window
// daily counter applied to free-tier organizations.
type MessageSendLimiter struct {
	enabled bool

	client *redis.Client
	bucket *TokenBucket
	clock  clock.Clock

	sendRate     float64
	sendBurst    int
	freeDailyCap int64
}

type LimiterParams struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
}

func NewMessageSendLimiter(p LimiterParams) (*MessageSendLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.SendRate <= 0 || limitCfg.SendBurst <= 0 {
		return nil, errors.New("send rate limit must be positive")
	}
	if limitCfg.FreeDailyCap <= 0 {
		return nil, errors.New("free tier daily cap must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &MessageSendLimiter{
		enabled:      true,
		client:       client,
		bucket:       NewTokenBucket(client),
		clock:        p.Clock,
		sendRate:     limitCfg.SendRate,
		sendBurst:    limitCfg.SendBurst,
		freeDailyCap: limitCfg.FreeDailyCap,
	}, nil
}

func (l *MessageSendLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowSend checks the per-second bucket and, for free-tier organizations,
// the daily cap. The daily counter only advances when the bucket admitted
// the send, so throttled requests never consume quota.
func (l *MessageSendLimiter) AllowSend(ctx context.Context, orgID, tier string) (Decision, error) {
	if !l.Enabled() {
		return DecisionAllowed, nil
	}

	org := strings.TrimSpace(orgID)
	allowed, err := l.bucket.Allow(ctx, fmt.Sprintf(keySendOrg, org), l.sendRate, l.sendBurst)
	if err != nil {
		return DecisionThrottle, err
	}
	if !allowed {
		return DecisionThrottle, nil
	}

	if tier != orgdomain.TierFree {
		return DecisionAllowed, nil
	}

	day := l.clock.Now().Format("20060102")
	key := fmt.Sprintf(keySendDaily, org, day)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return DecisionThrottle, err
	}
	if count == 1 {
		l.client.Expire(ctx, key, dailyKeyTTL)
	}
	if count > l.freeDailyCap {
		return DecisionDailyCap, nil
	}
	return DecisionAllowed, nil
}

// Module provides the limiter; a nil limiter means rate limiting is off.
var Module = fx.Module("ratelimit",
	fx.Provide(NewMessageSendLimiter),
)

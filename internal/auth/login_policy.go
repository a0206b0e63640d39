package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrLocked      = errors.New("account temporarily locked")
)

// LoginPolicy 按客户端 IP 与用户名限制登录频率，连续失败后锁定用户名。
type LoginPolicy struct {
	store       Store
	now         func() time.Time
	ratePerHour int
	threshold   int
	lockTTL     time.Duration
}

// PolicyOption 自定义 LoginPolicy。
type PolicyOption func(*LoginPolicy)

// WithClock 替换 time.Now。
func WithClock(now func() time.Time) PolicyOption {
	return func(p *LoginPolicy) { p.now = now }
}

// NewLoginPolicy 构造策略，ratePerHour <= 0 时不限频。
func NewLoginPolicy(store Store, ratePerHour, threshold int, lockTTL time.Duration, opts ...PolicyOption) *LoginPolicy {
	p := &LoginPolicy{
		store:       store,
		now:         time.Now,
		ratePerHour: ratePerHour,
		threshold:   threshold,
		lockTTL:     lockTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (p *LoginPolicy) rateKey(clientIP, username string) string {
	return "rate:login:" + clientIP + ":" + username + ":" + p.now().UTC().Format("2006010215")
}

func lockKey(username string) string { return "lock:login:" + username }

func failKey(username string) string { return "lock:login:fail:" + username }

// Allow 记录一次尝试，需要拒绝时返回 ErrRateLimited 或 ErrLocked，其他错误来自存储。
func (p *LoginPolicy) Allow(ctx context.Context, clientIP, username string) error {
	user := normalizeUsername(username)
	if p.ratePerHour > 0 {
		count, err := p.store.Incr(ctx, p.rateKey(clientIP, user), time.Hour)
		if err != nil {
			return err
		}
		if count > int64(p.ratePerHour) {
			return ErrRateLimited
		}
	}
	locked, err := p.store.HasFlag(ctx, lockKey(user))
	if err != nil {
		return err
	}
	if locked {
		return ErrLocked
	}
	return nil
}

// RecordFailure 记录一次失败并返回用户名是否已被锁定。
func (p *LoginPolicy) RecordFailure(ctx context.Context, username string) (bool, error) {
	user := normalizeUsername(username)
	count, err := p.store.Incr(ctx, failKey(user), p.lockTTL)
	if err != nil {
		return false, err
	}
	if p.threshold > 0 && count >= int64(p.threshold) {
		if err := p.store.SetFlag(ctx, lockKey(user), p.lockTTL); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// RecordSuccess 清空失败计数。
func (p *LoginPolicy) RecordSuccess(ctx context.Context, username string) error {
	return p.store.Delete(ctx, failKey(normalizeUsername(username)))
}

const refreshBlacklistKeyPrefix = "auth:refresh:blacklist:"

// Revocations 记录已作废的刷新令牌 ID。
type Revocations struct {
	store Store
}

// NewRevocations 基于 store 构造。
func NewRevocations(store Store) *Revocations {
	return &Revocations{store: store}
}

// Revoke 在 ttl 内拉黑 jti，ttl 非正时按一秒处理。
func (r *Revocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.store.SetFlag(ctx, refreshBlacklistKeyPrefix+jti, ttl)
}

// IsRevoked 判断 jti 是否已作废。
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.store.HasFlag(ctx, refreshBlacklistKeyPrefix+jti)
}

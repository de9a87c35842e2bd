package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"faucet-gateway/faucet/domain"
)

// Quota é a capacidade "store configurado", calculada uma vez no boot.
type Quota struct {
	Store      domain.QuotaStore
	Configured bool
}

func (q Quota) enabled() bool { return q.Configured && q.Store != nil }

// RateLimiter aplica as três janelas deslizantes (ip, fingerprint, global).
type RateLimiter struct {
	quota Quota
	rules map[domain.Category]domain.Rule
	now   func() time.Time
}

func NewRateLimiter(quota Quota, rules map[domain.Category]domain.Rule) (*RateLimiter, error) {
	for _, c := range []domain.Category{domain.CategoryIP, domain.CategoryFingerprint, domain.CategoryGlobal} {
		r, ok := rules[c]
		if !ok {
			return nil, fmt.Errorf("missing rate limit rule for %s", c)
		}
		if r.Limit <= 0 || r.Window <= 0 {
			return nil, fmt.Errorf("rate limit rule for %s must have positive values", c)
		}
	}
	return &RateLimiter{quota: quota, rules: rules, now: time.Now}, nil
}

// Configured indica se as verificações estão de fato sendo aplicadas.
func (l *RateLimiter) Configured() bool { return l.quota.enabled() }

func (l *RateLimiter) Rule(c domain.Category) domain.Rule { return l.rules[c] }

// Check avalia e registra uma requisição na janela da categoria.
// Sem store configurado, sempre permite.
func (l *RateLimiter) Check(ctx context.Context, c domain.Category, key string) (domain.Decision, error) {
	if !l.quota.enabled() {
		return domain.Decision{Allowed: true}, nil
	}
	rule, ok := l.rules[c]
	if !ok {
		return domain.Decision{}, fmt.Errorf("unknown rate limit category %q", c)
	}

	res, err := l.quota.Store.SlideWindow(ctx, windowKey(c, key), rule, l.now())
	if err != nil {
		return domain.Decision{}, fmt.Errorf("rate limit %s: %w", c, err)
	}
	if res.Allowed {
		return domain.Decision{Allowed: true}, nil
	}
	retry := time.Duration(domain.RetryAfterSeconds(res.ResetIn)) * time.Second
	return domain.Decision{Allowed: false, RetryAfter: retry}, nil
}

func windowKey(c domain.Category, key string) string {
	key = strings.TrimSpace(key)
	if c == domain.CategoryGlobal {
		key = domain.GlobalKey
	}
	return fmt.Sprintf("ratelimit:%s:%s", c, key)
}

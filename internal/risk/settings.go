package risk

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

// Settings keys in the settings store.
const (
	SettingFactors    = "risk_factors"
	SettingThresholds = "approval_thresholds"
)

// DefaultTTL is how long fetched settings are served before a re-fetch.
const DefaultTTL = 5 * time.Minute

// SettingsStore is the read side of the settings table.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) ([]byte, error)
}

// Settings is the effective risk configuration.
type Settings struct {
	Factors    []model.RiskFactor       `json:"factors" yaml:"factors"`
	Thresholds model.ApprovalThresholds `json:"thresholds" yaml:"thresholds"`
}

// SettingsCache serves the risk factor catalogue and approval thresholds
// with a TTL-bounded cache in front of the settings store. Scoring must
// never hard-fail because configuration is unavailable, so every fetch
// failure or invalid stored value degrades to the built-in defaults.
// Concurrent refreshes are tolerated; the fetch is an idempotent read and
// the last writer wins.
type SettingsCache struct {
	store SettingsStore
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	cached    *Settings
	fetchedAt time.Time
}

// CacheOption configures a SettingsCache.
type CacheOption func(*SettingsCache)

// WithTTL overrides the default 5-minute cache TTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *SettingsCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, letting tests drive cache expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *SettingsCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewSettingsCache creates a cache over the given store. A nil store is
// allowed and always serves defaults.
func NewSettingsCache(store SettingsStore, opts ...CacheOption) *SettingsCache {
	c := &SettingsCache{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the effective settings, refreshing from the store when the
// cached copy is older than the TTL. It never returns an error.
func (c *SettingsCache) Get(ctx context.Context) Settings {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return *c.cached
	}

	s := c.fetch(ctx)
	c.cached = &s
	c.fetchedAt = c.now()
	return s
}

// Invalidate drops the cached copy so the next Get re-fetches.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

// fetch loads both settings keys, substituting defaults per key on any
// failure. A missing key (nil value, nil error) is normal on a fresh
// install and silently uses the default.
func (c *SettingsCache) fetch(ctx context.Context) Settings {
	s := Settings{
		Factors:    DefaultFactors(),
		Thresholds: DefaultThresholds(),
	}
	if c.store == nil {
		return s
	}

	if raw, err := c.store.GetSetting(ctx, SettingFactors); err != nil {
		zap.L().Warn("risk: settings fetch failed, using default factors", zap.Error(err))
	} else if raw != nil {
		var factors []model.RiskFactor
		if err := json.Unmarshal(raw, &factors); err != nil {
			zap.L().Warn("risk: stored factor catalogue is malformed, using defaults", zap.Error(err))
		} else if err := ValidateFactors(factors); err != nil {
			zap.L().Warn("risk: stored factor catalogue is invalid, using defaults", zap.Error(err))
		} else {
			s.Factors = factors
		}
	}

	if raw, err := c.store.GetSetting(ctx, SettingThresholds); err != nil {
		zap.L().Warn("risk: settings fetch failed, using default thresholds", zap.Error(err))
	} else if raw != nil {
		var t model.ApprovalThresholds
		if err := json.Unmarshal(raw, &t); err != nil {
			zap.L().Warn("risk: stored thresholds are malformed, using defaults", zap.Error(err))
		} else if err := ValidateThresholds(t); err != nil {
			zap.L().Warn("risk: stored thresholds are invalid, using defaults", zap.Error(err))
		} else {
			s.Thresholds = t
		}
	}

	return s
}

package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PresenceStore is the subset of *redis.Client used for heartbeats.
type PresenceStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Presence keeps racp:agent:<instanceId> alive in Redis while the agent
// runs so the control plane can discover it.
type Presence struct {
	store    PresenceStore
	info     Info
	ttl      time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

func NewPresence(store PresenceStore, info Info, ttl time.Duration, logger zerolog.Logger) *Presence {
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	return &Presence{store: store, info: info, ttl: ttl, interval: interval, logger: logger}
}

func PresenceKey(instanceID string) string { return "racp:agent:" + instanceID }

// Run refreshes the key until ctx is done, then removes it.
func (p *Presence) Run(ctx context.Context) {
	if err := p.refresh(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("failed to register redis presence")
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			if err := p.store.Del(cleanupCtx, PresenceKey(p.info.InstanceID)).Err(); err != nil {
				p.logger.Warn().Err(err).Msg("failed to remove redis presence")
			}
			cancel()
			return
		case <-ticker.C:
			if err := p.refresh(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("failed to refresh redis presence")
			}
		}
	}
}

func (p *Presence) refresh(ctx context.Context) error {
	raw, err := json.Marshal(p.info)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, PresenceKey(p.info.InstanceID), raw, p.ttl).Err()
}

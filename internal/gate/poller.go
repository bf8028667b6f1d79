package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/preppal/internal/metrics"
)

// DefaultPollInterval matches the foreground cooldown monitor cadence.
const DefaultPollInterval = time.Second

// ExpiryCallback is invoked after an expired grant has been cleared, so
// foreground surfaces can reload and be evaluated again.
type ExpiryCallback func(ctx context.Context, expiredAt time.Time)

// Poller periodically clears an expired grant.
type Poller struct {
	grants   *GrantStore
	interval time.Duration
	onExpire ExpiryCallback
	now      func() time.Time
	logger   *slog.Logger
}

// NewPoller creates a grant expiry poller.
func NewPoller(grants *GrantStore, interval time.Duration, onExpire ExpiryCallback, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		grants:   grants,
		interval: interval,
		onExpire: onExpire,
		now:      time.Now,
		logger:   logger,
	}
}

// Start runs the poller in a background goroutine until ctx is done.
// The returned channel is closed once the goroutine has exited.
func (p *Poller) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(p.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		p.logger.Info("Grant poller started", "interval", p.interval)

		for {
			select {
			case <-ticker.C:
				p.tick(ctx)
			case <-ctx.Done():
				p.logger.Info("Grant poller shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func (p *Poller) tick(ctx context.Context) {
	now := p.now()
	cleared, err := p.grants.ClearIfExpired(ctx, now)
	if err != nil {
		p.logger.Error("Grant poller failed to check grant", "error", err)
		return
	}
	if !cleared {
		return
	}

	metrics.RecordGrantExpired()
	p.logger.Info("Grant expired, requesting reload")
	if p.onExpire != nil {
		p.onExpire(ctx, now)
	}
}

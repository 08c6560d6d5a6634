package session

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically purges expired outstanding records from a Store.
type Reaper struct {
	store    Store
	interval time.Duration
	grace    time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewReaper builds a Reaper from cfg. Records are purged once they are older
// than their expiry plus cfg.Leeway.
func NewReaper(cfg Config, store Store, now func() time.Time, log *slog.Logger) *Reaper {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		store:    store,
		interval: cfg.ReaperInterval,
		grace:    cfg.Leeway,
		timeout:  cfg.StoreTimeout,
		now:      now,
		log:      log,
	}
}

// Run purges on every tick until ctx is done. It returns nil on cancellation.
// A zero interval disables the reaper and Run blocks until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, _ = r.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce runs a single purge pass.
func (r *Reaper) PurgeOnce(ctx context.Context) (int64, error) {
	pctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.store.PurgeExpired(pctx, r.now().Add(-r.grace))
	if err != nil {
		r.log.Error("session.reaper.purge.fail", "err", err)
		return 0, storeErr("purge_expired", err)
	}
	if n > 0 {
		r.log.Info("session.reaper.purged", "count", n)
	}
	return n, nil
}

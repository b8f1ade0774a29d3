package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/entitlement/domain"
)

const expireBatchSize = 100

// Sweeper expires lapsed subscriptions in the background. Lazy expiry on
// read already guarantees correctness; the sweeper keeps the table tidy for
// reporting.
type Sweeper struct {
	svc      *Service
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Sweeper) Start() {
	go w.run()
}

func (w *Sweeper) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Sweeper) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			w.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep marks one batch of lapsed subscriptions expired.
func (w *Sweeper) Sweep(ctx context.Context) {
	now := w.svc.clock.Now()
	subs, err := w.svc.repo.ListExpiredActive(ctx, w.svc.db, now, expireBatchSize)
	if err != nil {
		w.svc.log.Error("list expired subscriptions", zap.Error(err))
		return
	}

	for _, sub := range subs {
		if err := w.svc.repo.UpdateStatus(ctx, w.svc.db, int64(sub.ID), domain.SubscriptionStatusExpired, now); err != nil {
			w.svc.log.Error("expire subscription",
				zap.Int64("subscription_id", int64(sub.ID)),
				zap.Error(err),
			)
			continue
		}
	}
	if len(subs) > 0 {
		w.svc.log.Info("expired lapsed subscriptions", zap.Int("count", len(subs)))
	}
}

package settlement

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reconcileBatchSize = 50

// Reconciler periodically retries unrelayed fallback settlements.
type Reconciler struct {
	log      *zap.Logger
	db       *gorm.DB
	repo     Repository
	bridge   Bridge
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewReconciler(log *zap.Logger, db *gorm.DB, repo Repository, bridge Bridge, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		log:      log.Named("settlement.reconciler"),
		db:       db,
		repo:     repo,
		bridge:   bridge,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Reconciler) Start() {
	go r.run()
}

func (r *Reconciler) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reconciler) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.interval)
			r.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep retries every unrelayed settlement once. Exported so tests and the
// admin surface can trigger a pass directly.
func (r *Reconciler) Sweep(ctx context.Context) {
	rows, err := r.repo.ListUnrelayed(ctx, r.db, reconcileBatchSize)
	if err != nil {
		r.log.Error("list unrelayed settlements", zap.Error(err))
		return
	}

	for _, row := range rows {
		var msg Message
		if err := json.Unmarshal(row.Message, &msg); err != nil {
			r.log.Error("corrupt fallback settlement payload",
				zap.Int64("id", int64(row.ID)),
				zap.Error(err),
			)
			continue
		}

		bridgeRef, err := r.bridge.Relay(ctx, row.Route, msg)
		if err != nil {
			if aerr := r.repo.RecordAttempt(ctx, r.db, int64(row.ID), err.Error()); aerr != nil {
				r.log.Error("record relay attempt", zap.Error(aerr))
			}
			continue
		}

		if err := r.repo.MarkRelayed(ctx, r.db, int64(row.ID), bridgeRef, time.Now().UTC()); err != nil {
			r.log.Error("mark settlement relayed", zap.Error(err))
			continue
		}
		r.log.Info("fallback settlement reconciled",
			zap.String("reference", row.Reference),
			zap.String("bridge_ref", bridgeRef),
		)
	}
}

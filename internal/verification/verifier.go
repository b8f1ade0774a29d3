// Package verification polls source chains until a payment transaction
// reaches its confirmation depth.
package verification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	obsmetrics "github.com/solacehealth/solace/internal/observability/metrics"
	"github.com/solacehealth/solace/internal/payment/domain"
)

// AdapterSource resolves the execution adapter for a chain.
type AdapterSource interface {
	Get(chainID string) (domain.Adapter, error)
}

// Config bounds the polling loop.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Verifier confirms broadcast transactions against per-chain depth
// requirements.
type Verifier struct {
	log      *zap.Logger
	chains   *chain.Registry
	adapters AdapterSource
	metrics  *obsmetrics.Metrics
	cfg      Config
}

func NewVerifier(log *zap.Logger, chains *chain.Registry, adapters AdapterSource, metrics *obsmetrics.Metrics, cfg Config) *Verifier {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Verifier{
		log:      log.Named("verification"),
		chains:   chains,
		adapters: adapters,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// WaitForConfirmation polls until the transaction reaches the chain's
// required depth. A transaction that is merely pending keeps polling; only a
// reverted transaction or the overall timeout fails the verification.
func (v *Verifier) WaitForConfirmation(ctx context.Context, chainID, reference string) (*domain.TransactionState, error) {
	chainCfg, err := v.chains.Get(chainID)
	if err != nil {
		return nil, err
	}
	adapter, err := v.adapters.Get(chainCfg.ID)
	if err != nil {
		return nil, err
	}
	required := uint64(chainCfg.RequiredConfirmations)

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(v.cfg.PollInterval)
	defer ticker.Stop()

	log := v.log.With(zap.String("chain", chainCfg.ID), zap.String("reference", reference))

	for {
		state, err := adapter.TransactionStatus(ctx, reference)
		v.metrics.RecordVerificationPoll(ctx, chainCfg.ID)
		switch {
		case err != nil:
			// Transient RPC failures keep polling until the deadline.
			log.Warn("status poll failed", zap.Error(err))
		case state.Failed:
			return state, fmt.Errorf("%w: %s on %s", domain.ErrTransactionReverted, reference, chainCfg.ID)
		case state.Found && state.Confirmations >= required:
			log.Info("transaction confirmed",
				zap.Uint64("confirmations", state.Confirmations),
				zap.Uint64("block_height", state.BlockHeight),
			)
			return state, nil
		default:
			log.Debug("awaiting confirmations",
				zap.Bool("found", state.Found),
				zap.Uint64("confirmations", state.Confirmations),
				zap.Uint64("required", required),
			)
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: %s on %s", domain.ErrVerificationTimeout, reference, chainCfg.ID)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

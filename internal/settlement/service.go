package settlement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
	obsmetrics "github.com/solacehealth/solace/internal/observability/metrics"
)

// Result is the outcome of a settlement attempt. Unreconciled settlements
// carry a locally generated reference until the reconciler delivers them.
type Result struct {
	Reference    string
	Route        Route
	Unreconciled bool
}

// Service relays settlements and absorbs bridge outages. Settle never fails;
// a payment is not held hostage by the bridge.
type Service struct {
	log       *zap.Logger
	db        *gorm.DB
	repo      Repository
	bridge    Bridge
	chains    *chain.Registry
	node      *snowflake.Node
	clock     clock.Clock
	metrics   *obsmetrics.Metrics
	destChain string
}

func NewService(log *zap.Logger, db *gorm.DB, repo Repository, bridge Bridge, chains *chain.Registry, node *snowflake.Node, clk clock.Clock, metrics *obsmetrics.Metrics, destChain string) *Service {
	return &Service{
		log:       log.Named("settlement"),
		db:        db,
		repo:      repo,
		bridge:    bridge,
		chains:    chains,
		node:      node,
		clock:     clk,
		metrics:   metrics,
		destChain: destChain,
	}
}

// Settle relays the message to the settlement chain. When the bridge is
// unavailable it persists the message with an unreconciled reference and
// returns that instead.
func (s *Service) Settle(ctx context.Context, msg Message) Result {
	msg.DestinationChainID = s.destChain

	route := RouteHyperbridge
	source, err := s.chains.Get(msg.SourceChainID)
	if err == nil {
		if dest, derr := s.chains.Get(s.destChain); derr == nil {
			route = SelectRoute(source, dest)
		}
	}

	reference, err := s.bridge.Relay(ctx, route, msg)
	if err == nil {
		s.log.Info("settlement relayed",
			zap.String("reference", reference),
			zap.String("route", string(route)),
			zap.String("source_chain", msg.SourceChainID),
		)
		return Result{Reference: reference, Route: route}
	}

	s.log.Warn("bridge unavailable, recording unreconciled settlement",
		zap.String("source_chain", msg.SourceChainID),
		zap.Error(err),
	)
	s.metrics.RecordBridgeFallback(ctx, msg.SourceChainID)

	fallbackRef := fmt.Sprintf("unreconciled-%s", s.node.Generate())
	payload, merr := json.Marshal(msg)
	if merr != nil {
		payload = []byte("{}")
	}

	errText := err.Error()
	row := &FallbackSettlement{
		ID:        s.node.Generate(),
		Reference: fallbackRef,
		Route:     route,
		Message:   payload,
		LastError: &errText,
		CreatedAt: s.clock.Now(),
		UpdatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		// Worst case the settlement exists only in the payment record; the
		// reference still lets operations reconcile by hand.
		s.log.Error("failed to persist fallback settlement", zap.Error(err))
	}

	return Result{Reference: fallbackRef, Route: route, Unreconciled: true}
}

package payment

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/config"
	obsmetrics "github.com/solacehealth/solace/internal/observability/metrics"
	"github.com/solacehealth/solace/internal/payment/adapters"
	"github.com/solacehealth/solace/internal/payment/quote"
	"github.com/solacehealth/solace/internal/payment/repository"
	"github.com/solacehealth/solace/internal/payment/service"
	"github.com/solacehealth/solace/internal/verification"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.New,
		quote.NewCalculator,
		adapters.NewRegistry,
		newVerifier,
		service.New,
	),
)

func newVerifier(log *zap.Logger, chains *chain.Registry, registry *adapters.Registry, metrics *obsmetrics.Metrics, cfg config.Config) *verification.Verifier {
	return verification.NewVerifier(log, chains, registry, metrics, verification.Config{
		PollInterval: cfg.VerifyPollInterval,
		Timeout:      cfg.VerifyTimeout,
	})
}

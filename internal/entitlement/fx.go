package entitlement

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/solacehealth/solace/internal/entitlement/domain"
	"github.com/solacehealth/solace/internal/entitlement/repository"
	"github.com/solacehealth/solace/internal/entitlement/service"
)

var Module = fx.Module("entitlement",
	fx.Provide(
		repository.New,
		service.New,
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) *service.Sweeper {
			return service.NewSweeper(s, 15*time.Minute)
		},
	),
	fx.Invoke(runSweeper),
)

func runSweeper(lc fx.Lifecycle, w *service.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			return nil
		},
	})
}

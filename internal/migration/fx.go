package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/access"
	"github.com/solacehealth/solace/internal/config"
	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
	paymentdomain "github.com/solacehealth/solace/internal/payment/domain"
	"github.com/solacehealth/solace/internal/seed"
	"github.com/solacehealth/solace/internal/settlement"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Dev sqlite and mysql deployments migrate through gorm.
			err := conn.AutoMigrate(
				&paymentdomain.PaymentRecord{},
				&settlement.FallbackSettlement{},
				&entdomain.Subscription{},
				&entdomain.UsageLedgerEntry{},
				&entdomain.EmergencyAccess{},
				&access.Therapist{},
			)
			if err != nil {
				return err
			}
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		if cfg.Environment != "production" {
			return seed.EnsureDemoTherapists(conn)
		}
		return nil
	}),
)

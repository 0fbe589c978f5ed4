// Package migration keeps the database schema in sync with the domain
// models at startup.
package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/sublyhq/subly/internal/balance/domain"
	certificatedomain "github.com/sublyhq/subly/internal/certificate/domain"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	paymentdomain "github.com/sublyhq/subly/internal/payment/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	providerdomain "github.com/sublyhq/subly/internal/provider/domain"
	subscriptiondomain "github.com/sublyhq/subly/internal/subscription/domain"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
)

// Migrate applies the schema for every persisted model.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&protocoldomain.GlobalConfig{},
		&vaultdomain.Account{},
		&oracledomain.Quote{},
		&balancedomain.UserAccount{},
		&balancedomain.StakeAccount{},
		&providerdomain.Provider{},
		&providerdomain.SubscriptionService{},
		&subscriptiondomain.UserSubscription{},
		&paymentdomain.PaymentRecord{},
		&eventsdomain.Event{},
		&certificatedomain.Certificate{},
	)
	if err != nil {
		return err
	}
	log.Info("database schema migrated")
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(Migrate),
)

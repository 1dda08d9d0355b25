package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ledgerdomain "github.com/lumeven/funnel/internal/ledger/domain"
	paymentdomain "github.com/lumeven/funnel/internal/payment/domain"
)

// Module migrates the schema on startup.
var Module = fx.Module("migration",
	fx.Invoke(Run),
)

func Run(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&ledgerdomain.Order{},
		&paymentdomain.EventRecord{},
	)
	if err != nil {
		return err
	}
	log.Info("schema migrated")
	return nil
}

package ledger

import (
	"go.uber.org/fx"

	"github.com/lumeven/funnel/internal/ledger/repository"
	"github.com/lumeven/funnel/internal/ledger/service"
)

var Module = fx.Module("ledger",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

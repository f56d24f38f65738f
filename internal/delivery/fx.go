package delivery

import (
	"github.com/brushline/leadrail/internal/delivery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("delivery",
	fx.Provide(
		service.NewNotifier,
		service.New,
		service.NewDispatcher,
	),
)

package drip

import (
	"github.com/brushline/leadrail/internal/drip/service"
	"go.uber.org/fx"
)

var Module = fx.Module("drip",
	fx.Provide(service.New),
)

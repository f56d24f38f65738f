package buyer

import (
	"github.com/brushline/leadrail/internal/buyer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("buyer.service",
	fx.Provide(service.New),
)

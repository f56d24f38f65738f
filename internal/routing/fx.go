package routing

import (
	"github.com/brushline/leadrail/internal/routing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("routing.service",
	fx.Provide(service.New),
)

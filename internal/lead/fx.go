package lead

import (
	"github.com/brushline/leadrail/internal/lead/repository"
	"github.com/brushline/leadrail/internal/lead/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lead",
	fx.Provide(
		repository.New,
		service.New,
	),
)

package adoption

import (
	"github.com/globalping/backoffice/internal/adoption/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adoption.service",
	fx.Provide(service.New),
)

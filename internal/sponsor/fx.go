package sponsor

import (
	"github.com/globalping/backoffice/internal/sponsor/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sponsor.service",
	fx.Provide(service.New),
)

package credits

import (
	"github.com/globalping/backoffice/internal/credits/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credits.service",
	fx.Provide(service.New),
)

package geocode

import (
	"github.com/globalping/backoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("geocode.client",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Resolver {
		return NewClient(cfg.GeonamesURL, cfg.GeonamesUsername, log)
	}),
)

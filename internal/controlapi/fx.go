package controlapi

import (
	"github.com/globalping/backoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("controlapi.client",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Client {
		return NewClient(cfg.ControlAPIURL, log)
	}),
)

package citysearch

import (
	"github.com/globalping/backoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("citysearch.index",
	fx.Provide(func(cfg config.Config, log *zap.Logger) (*Index, error) {
		return LoadCSV(cfg.GazetteerCSVPath, log.Named("citysearch"))
	}),
)

package gh

import (
	"github.com/globalping/backoffice/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("gh.client",
	fx.Provide(func(cfg config.Config) Client {
		return NewClient(cfg.GitHubServiceToken)
	}),
)

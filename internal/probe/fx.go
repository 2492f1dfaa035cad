package probe

import (
	"github.com/globalping/backoffice/internal/probe/repository"
	"github.com/globalping/backoffice/internal/probe/service"
	"go.uber.org/fx"
)

var Module = fx.Module("probe.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

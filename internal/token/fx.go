package token

import (
	"github.com/globalping/backoffice/internal/token/repository"
	"github.com/globalping/backoffice/internal/token/service"
	"go.uber.org/fx"
)

var Module = fx.Module("token.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

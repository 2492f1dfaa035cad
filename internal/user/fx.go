package user

import (
	"github.com/globalping/backoffice/internal/user/repository"
	"github.com/globalping/backoffice/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

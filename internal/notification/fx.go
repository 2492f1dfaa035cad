package notification

import (
	"github.com/globalping/backoffice/internal/notification/repository"
	"github.com/globalping/backoffice/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package account

import (
	"github.com/suscribo/suscribo/internal/account/repository"
	"github.com/suscribo/suscribo/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
